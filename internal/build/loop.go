/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package build

import (
	"context"
	"fmt"

	"github.com/nikandfor/errors"
	"github.com/nikandfor/tlog"

	"github.com/cloudwego/hlsched/internal/lim"
)

// Dependency groups as produced by the front end.
const (
	GroupInitial  = 0
	GroupFeedback = 1
)

// Descriptor is a raw, not yet wired, loop dependency.
type Descriptor struct {
	Source lim.BusID
	Target lim.PortID
	Group  int
}

type link struct {
	port lim.PortID
	bus  lim.BusID
}

// links keeps the dependencies of one class in arrival order, one per port.
type links struct {
	order []lim.PortID
	bus   map[lim.PortID]lim.BusID
}

func (self *links) put(port lim.PortID, bus lim.BusID) bool {
	if self.bus == nil {
		self.bus = make(map[lim.PortID]lim.BusID)
	}
	_, dup := self.bus[port]
	if !dup {
		self.order = append(self.order, port)
	}
	self.bus[port] = bus
	return dup
}

func (self *links) all() []link {
	ret := make([]link, 0, len(self.order))
	for _, p := range self.order {
		ret = append(ret, link{port: p, bus: self.bus[p]})
	}
	return ret
}

func (self *links) has(port lim.PortID) bool {
	_, ok := self.bus[port]
	return ok
}

// Wiring records what LoopWiring inserted into a loop.
type Wiring struct {
	Registers map[lim.PortID]lim.OpID
	Latches   map[lim.PortID]lim.OpID
	Outputs   []lim.DepID
}

// LoopWiring classifies the raw dependencies of a loop by the exit driving them and
// wires them into the loop body: loop carried values go through a data register,
// loop invariant values are captured once by a latch, and final values complete
// the loop.
func LoopWiring(ctx context.Context, d *lim.Design, loop lim.OpID, deps []Descriptor) (w *Wiring, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "loop wiring", "loop", d.Show(loop), "deps", len(deps))
	defer tr.Finish("err", &err)

	lp := d.Op(loop)
	if lp.Kind != lim.KindLoop || lp.Body == lim.NoOp {
		return nil, lim.EStructure(d, loop, "not a loop")
	}

	/* the exits classifying the dependencies */
	bd := d.Op(lp.Body)
	fbx := d.ExitOf(bd.ID, lim.FeedbackTag)
	cmx := d.ExitOf(bd.ID, lim.DoneTag)
	inx := d.MainExit(lp.InBuf)

	/* the body must have both of its exits */
	if fbx == lim.NoExit {
		return nil, lim.EMissingExit(d, bd.ID, lim.FeedbackTag)
	} else if cmx == lim.NoExit {
		return nil, lim.EMissingExit(d, bd.ID, lim.DoneTag)
	}

	var initial, feedback, output links
	for _, dep := range deps {
		if err = classify(ctx, d, bd.ID, dep, fbx, cmx, inx, &initial, &feedback, &output); err != nil {
			return nil, err
		}
	}

	w = &Wiring{
		Registers: make(map[lim.PortID]lim.OpID),
		Latches:   make(map[lim.PortID]lim.OpID),
	}

	if err = wireBody(ctx, d, lp, bd, &initial, &feedback, w); err != nil {
		return nil, errors.Wrap(err, "loop %v", lp.Name)
	}

	/* final values complete the loop */
	ob := d.OutBuf(loop, lim.DoneTag)
	if ob == lim.NoOp {
		return nil, lim.EMissingExit(d, loop, lim.DoneTag)
	}
	for _, v := range output.all() {
		if d.Port(v.port).Owner != ob {
			return nil, lim.EStructure(d, loop, "output dependency targets %v outside the loop completion", d.Port(v.port).Name)
		}
		w.Outputs = append(w.Outputs, d.Connect(d.Op(ob).Entries[0], v.bus, v.port))
	}

	if err = checkComplete(d, bd); err != nil {
		return nil, err
	}

	tr.Printw("wired", "registers", len(w.Registers), "latches", len(w.Latches), "outputs", len(w.Outputs))

	return w, nil
}

func classify(ctx context.Context, d *lim.Design, body lim.OpID, dep Descriptor, fbx, cmx, inx lim.ExitID, initial, feedback, output *links) error {
	tr := tlog.SpanFromContext(ctx)
	x := d.Bus(dep.Source).Exit

	switch x {
	case fbx:
		if feedback.put(dep.Target, dep.Source) {
			return lim.EStructure(d, body, "more than one feedback dependency on port %v", d.Port(dep.Target).Name)
		}
		if dep.Group != GroupFeedback {
			tr.Printw("feedback dependency in another group", "group", dep.Group, "port", dep.Target)
		}
	case cmx:
		if output.put(dep.Target, dep.Source) {
			return lim.EStructure(d, body, "more than one output dependency on port %v", d.Port(dep.Target).Name)
		}
	case inx:
		if initial.put(dep.Target, dep.Source) {
			tr.Printw("duplicate initial dependency, keeping the last", "port", dep.Target, "bus", dep.Source)
		}
		if dep.Group != GroupInitial {
			tr.Printw("initial dependency in another group", "group", dep.Group, "port", dep.Target)
		}
	default:
		return lim.EStructure(d, body, "unknown dependency structure: source %v of %v", d.Bus(dep.Source).Name, d.Show(d.BusOwner(dep.Source)))
	}

	return nil
}

func feedbackEntry(d *lim.Design, bd *lim.Operation) lim.EntryID {
	for _, e := range bd.Entries {
		if d.Entry(e).Feedback {
			return e
		}
	}
	return lim.NoEntry
}

func wireBody(ctx context.Context, d *lim.Design, lp, bd *lim.Operation, initial, feedback *links, w *Wiring) error {
	tr := tlog.SpanFromContext(ctx)
	ie := bd.Entries[0]
	fe := feedbackEntry(d, bd)

	if fe == lim.NoEntry {
		return lim.EStructure(d, bd.ID, "loop body has no feedback entry")
	}

	/* the initial entry is started by exactly one bus */
	gd := d.DepsOn(ie, bd.Go)
	if len(gd) != 1 {
		return lim.EStructure(d, bd.ID, "expected a single go dependency in the initial entry, found %d", len(gd))
	}
	start := d.Dep(gd[0]).Source

	/* check for targets */
	for _, v := range append(initial.all(), feedback.all()...) {
		if d.Port(v.port).Owner != bd.ID {
			return lim.EStructure(d, bd.ID, "dependency targets port %v outside the loop body", d.Port(v.port).Name)
		}
	}

	for _, v := range initial.all() {
		src := v.bus

		/* values not fed back are loop invariant, capture them once */
		if !feedback.has(v.port) {
			name := fmt.Sprintf("%s.latch.%s", lp.Name, d.Port(v.port).Name)
			la := d.Op(d.NewPrimitive(lim.KindLatch, lp.ID, name, 2, 1, lim.Zero))
			le := la.Entries[0]
			d.Entry(le).Drive = d.Bus(start).Exit
			d.AddDependency(le, lim.DepControl, start, la.Ports[0], 0)
			d.AddDependency(le, lim.DepData, src, la.Ports[1], 0)
			src = d.Exit(la.Exits[0]).Buses[0]
			d.Connect(fe, src, v.port)
			w.Latches[v.port] = la.ID
			tr.Printw("latch", "port", d.Port(v.port).Name, "latch", la.ID)
		}

		d.Connect(ie, src, v.port)
	}

	/* loop carried values go through a data register */
	for _, v := range feedback.all() {
		name := fmt.Sprintf("%s.reg.%s", lp.Name, d.Port(v.port).Name)
		rg := d.Op(d.NewPrimitive(lim.KindReg, lp.ID, name, 1, 1, lim.One))
		re := rg.Entries[0]
		d.Entry(re).Drive = d.Bus(v.bus).Exit
		d.AddDependency(re, lim.DepData, v.bus, rg.Ports[0], 0)
		d.AddDependency(fe, lim.DepData, d.Exit(rg.Exits[0]).Buses[0], v.port, 0)
		w.Registers[v.port] = rg.ID
		tr.Printw("register", "port", d.Port(v.port).Name, "reg", rg.ID)
	}

	return nil
}

// checkComplete verifies that every wired body input has exactly one driver in
// both the initial and the feedback entry.
func checkComplete(d *lim.Design, bd *lim.Operation) error {
	ie := bd.Entries[0]
	fe := feedbackEntry(d, bd)

	for _, p := range bd.Ports {
		ni := len(d.DepsOn(ie, p))
		nf := len(d.DepsOn(fe, p))

		switch {
		case ni == 0 && nf == 0:
			continue
		case ni == 0:
			return lim.EStructure(d, bd.ID, "port %v is fed back but has no initial value", d.Port(p).Name)
		case ni != 1 || nf != 1:
			return lim.EStructure(d, bd.ID, "port %v has %d initial and %d feedback drivers", d.Port(p).Name, ni, nf)
		}
	}

	return nil
}
