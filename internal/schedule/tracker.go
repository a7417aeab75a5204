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

package schedule

import (
    `sort`

    `github.com/cloudwego/hlsched/internal/lim`
)

type procSet map[int]struct{}

func (self procSet) add(ids ...int) {
    for _, v := range ids {
        self[v] = struct{}{}
    }
}

func (self procSet) merge(v procSet) {
    for k := range v {
        self[k] = struct{}{}
    }
}

func (self procSet) sorted() []int {
    ret := make([]int, 0, len(self))
    for k := range self {
        ret = append(ret, k)
    }
    sort.Ints(ret)
    return ret
}

// Tracker follows the components of one module in schedule order and works out
// which processes each of them is part of, opens or closes.
type Tracker struct {
    d      *lim.Design
    mod    lim.OpID
    procs  []*lim.Process
    ports  map[lim.PortID]procSet
    byProc procSet
    byComp []lim.OpID
}

// NewTracker creates a tracker of mod for the given processes.
func NewTracker(d *lim.Design, mod lim.OpID, procs []*lim.Process) *Tracker {
    return &Tracker {
        d      : d,
        mod    : mod,
        procs  : procs,
        ports  : make(map[lim.PortID]procSet),
        byProc : make(procSet),
    }
}

func (self *Tracker) process(id int) *lim.Process {
    for _, p := range self.procs {
        if p.ID == id {
            return p
        }
    }
    panic("schedule: invalid process id")
}

// Register adds the next component in schedule order.
func (self *Tracker) Register(op lim.OpID) {
    cd := newDeriver(self, op)
    in := cd.inProcesses()

    /* the processes flow with every bus of the component */
    self.markPorts(op, in)
    for _, p := range self.d.AllPorts(op) {
        delete(self.ports, p)
    }

    /* closing a process releases it */
    for _, id := range cd.closed.sorted() {
        self.process(id).AddStallSignal(op)
    }

    /* consumers of process data stall it */
    stalled := false
    for _, id := range cd.dataProcsToStall().sorted() {
        stalled = true
        self.process(id).AddStallSignal(op)
    }

    /* processes nothing can stall stall the module */
    if unc := cd.uncontrolledOpen(); len(unc) != 0 && !stalled {
        self.byProc.merge(unc)
    }

    /* so does uncontrolled data entering a process */
    if len(in) != 0 && len(cd.uncontrolledDataPorts()) != 0 {
        if !containsOp(self.byComp, op) {
            self.byComp = append(self.byComp, op)
        }
    }
}

func (self *Tracker) markPorts(op lim.OpID, procs procSet) {
    for _, b := range self.d.AllBuses(op) {
        for _, v := range self.d.Bus(b).Dependents {
            dep := self.d.Dep(v)
            set, ok := self.ports[dep.Target]
            if !ok {
                set = make(procSet)
                self.ports[dep.Target] = set
            }
            set.merge(procs)
        }
    }
}

// procsOf returns the processes reaching the port. Data searches also include the
// processes ended by the components driving it.
func (self *Tracker) procsOf(port lim.PortID, data bool) procSet {
    ret := make(procSet)
    deps := self.d.PortDeps(port)

    /* processes carried by the drivers */
    if len(deps) != 0 {
        ret.merge(self.ports[port])
    }

    /* processes ended by the drivers */
    if data {
        for _, v := range deps {
            src := self.d.BusOwner(self.d.Dep(v).Source)
            for _, p := range self.procs {
                if p.IsEndPoint(src) {
                    ret.add(p.ID)
                }
            }
        }
    }
    return ret
}

// ModuleStalls returns what must stall the GO of the module: processes whose
// start points are not stalled by anything else, and components taking
// uncontrolled data into a process.
func (self *Tracker) ModuleStalls() []lim.Stall {
    var ret []lim.Stall
    for _, id := range self.byProc.sorted() {
        ret = append(ret, lim.Stall {
            Process    : id,
            Components : self.process(id).StallPoints(),
        })
    }
    for _, op := range self.byComp {
        ret = append(ret, lim.Stall {
            Process    : -1,
            Components : []lim.OpID { op },
        })
    }
    return ret
}

// IsUntimed reports whether the bus carries a value that never changes.
func IsUntimed(d *lim.Design, bus lim.BusID) bool {
    return d.Bus(bus).Constant || d.Op(d.BusOwner(bus)).Kind == lim.KindConstant
}

type deriver struct {
    t        *Tracker
    op       lim.OpID
    initial  procSet
    data     procSet
    opened   procSet
    closed   procSet
    dataless []lim.PortID
}

func newDeriver(t *Tracker, op lim.OpID) *deriver {
    p := t.d.Op(op)
    ret := &deriver {
        t       : t,
        op      : op,
        initial : t.procsOf(p.Go, false),
        data    : make(procSet),
        opened  : make(procSet),
        closed  : make(procSet),
    }

    /* processes reaching every data port */
    for _, v := range p.Ports {
        if set := t.procsOf(v, true); len(set) == 0 {
            ret.dataless = append(ret.dataless, v)
        } else {
            ret.data.merge(set)
        }
    }

    /* processes this component is an end of */
    for _, ps := range t.procs {
        if ps.IsStartPoint(op) {
            ret.opened.add(ps.ID)
        }
        if ps.IsEndPoint(op) {
            ret.closed.add(ps.ID)
        }
    }

    return ret
}

// inProcesses returns the processes the component runs in.
func (self *deriver) inProcesses() procSet {
    ret := make(procSet)
    ret.merge(self.initial)
    ret.merge(self.opened)

    /* without control, the data decides */
    if len(ret) == 0 {
        ret.merge(self.data)
        return ret
    }

    /* closing a process leaves it */
    for k := range self.closed {
        delete(ret, k)
    }
    return ret
}

// dataProcsToStall returns every process whose data the component consumes. Being
// in a process does not make a component part of the control of its end point, so
// the processes it controls are not left out.
func (self *deriver) dataProcsToStall() procSet {
    return self.data
}

// uncontrolledOpen returns the processes the component opens without being
// started by any process.
func (self *deriver) uncontrolledOpen() procSet {
    if len(self.initial) == 0 && len(self.opened) != 0 {
        return self.opened
    } else {
        return nil
    }
}

// uncontrolledDataPorts returns the data ports outside of any process that are
// driven by something other than constants.
func (self *deriver) uncontrolledDataPorts() []lim.PortID {
    var ret []lim.PortID
    for _, p := range self.dataless {
        for _, v := range self.t.d.PortDeps(p) {
            if !IsUntimed(self.t.d, self.t.d.Dep(v).Source) {
                ret = append(ret, p)
                break
            }
        }
    }
    return ret
}
