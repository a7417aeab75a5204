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
    `context`
    `fmt`

    `github.com/nikandfor/tlog`

    `github.com/cloudwego/hlsched/internal/lim`
    `github.com/cloudwego/hlsched/internal/throughput`
)

// ResourceKey names what two accesses conflict on: a resource, or a nested loop
// which can only run one iteration at a time.
type ResourceKey struct {
    Resource lim.ResID
    Loop     lim.OpID
}

func (self ResourceKey) String() string {
    if self.Loop != lim.NoOp {
        return fmt.Sprintf("loop#%d", self.Loop)
    } else {
        return fmt.Sprintf("resource#%d", self.Resource)
    }
}

// FlopAnalysis is what AnalyzeLoopFlop found out about one loop body.
type FlopAnalysis struct {
    Body       lim.OpID
    Needed     bool
    Analyzable bool
    Reason     string
    Conflicts  map[ResourceKey][]Conflict
    keys       []ResourceKey
}

// Removable reports whether the flop can go without fixing anything.
func (self *FlopAnalysis) Removable() bool {
    return !self.Needed && self.Analyzable && len(self.Conflicts) == 0
}

// All returns every conflict, grouped by resource in order of discovery.
func (self *FlopAnalysis) All() []Conflict {
    var ret []Conflict
    for _, k := range self.keys {
        ret = append(ret, self.Conflicts[k]...)
    }
    return ret
}

type feedbackTuple struct {
    key    ResourceKey
    access lim.OpID
    path   []lim.OpID
    first  bool
    last   bool
}

type notAnalyzable struct {
    reason string
}

func (self notAnalyzable) Error() string {
    return "not analyzable: " + self.reason
}

type flopNotRemovable struct {
    reason string
}

func (self flopNotRemovable) Error() string {
    return "flop not removable: " + self.reason
}

type flopAnalyzer struct {
    d        *lim.Design
    lat      *throughput.LatencyCache
    tr       tlog.Span
    failFast bool
    res      *FlopAnalysis
    tuples   map[ResourceKey][]*feedbackTuple
}

// AnalyzeLoopFlop finds the resources accessed both in the first and in the last
// cycle of a loop body. With failFast it stops at the first conflict.
func AnalyzeLoopFlop(ctx context.Context, d *lim.Design, body lim.OpID, failFast bool) (*FlopAnalysis, error) {
    bd := d.Op(body)
    if !bd.Kind.IsLoopBody() || bd.Body == lim.NoOp {
        return nil, lim.EStructure(d, body, "not a loop body")
    }

    /* a combinational body needs the flop to break the loop */
    ret := &FlopAnalysis {
        Body      : body,
        Conflicts : make(map[ResourceKey][]Conflict),
    }
    if x := d.MainExit(bd.Body); x == lim.NoExit {
        return nil, lim.EMissingExit(d, bd.Body, lim.DoneTag)
    } else if d.Exit(x).Latency.Min <= 0 {
        ret.Needed = true
        ret.Reason = "body latency " + d.Exit(x).Latency.String()
        return ret, nil
    }

    /* latencies local to every module */
    fa := &flopAnalyzer {
        d        : d,
        lat      : throughput.NewLocalLatency(d),
        tr       : tlog.SpanFromContext(ctx),
        failFast : failFast,
        res      : ret,
        tuples   : make(map[ResourceKey][]*feedbackTuple),
    }
    if err := fa.lat.Compute(bd.Body, lim.Zero); err != nil {
        return nil, err
    }

    /* walk the body */
    switch err := fa.module(bd.Body, lim.Zero, []lim.OpID { bd.Body }).(type) {
        case nil              : ret.Analyzable = true
        case flopNotRemovable : ret.Analyzable, ret.Reason = true, err.reason
        case notAnalyzable    : ret.Reason = err.reason
        default               : return nil, err
    }

    fa.tr.Printw("loop flop analysis", "body", d.Show(body), "analyzable", ret.Analyzable, "conflicts", len(ret.keys), "reason", ret.Reason)
    return ret, nil
}

func (self *flopAnalyzer) module(mod lim.OpID, cur lim.Latency, path []lim.OpID) error {
    for _, c := range self.d.Op(mod).Children {
        if err := self.component(c, cur, path); err != nil {
            return err
        }
    }
    return nil
}

func (self *flopAnalyzer) component(op lim.OpID, cur lim.Latency, path []lim.OpID) error {
    p := self.d.Op(op)
    switch p.Kind {
        case lim.KindMemoryRead, lim.KindMemoryWrite:
            return self.markInput(op, ResourceKey { Resource: p.Resource, Loop: lim.NoOp }, cur, path)

        case lim.KindFifoRead, lim.KindFifoWrite, lim.KindPinRead, lim.KindPinWrite:
            return self.markSpan(op, ResourceKey { Resource: p.Resource, Loop: lim.NoOp }, cur, path)

        case lim.KindRegisterRead, lim.KindRegisterWrite:
            return nil

        case lim.KindLoop:
            if err := self.markSpan(op, ResourceKey { Resource: lim.NoRes, Loop: op }, cur, path); err != nil {
                return err
            }
            return self.dive(op, cur, path)

        case lim.KindTaskCall:
            return notAnalyzable { "task call " + self.d.Show(op) }
    }

    /* the remaining modules are walked through */
    switch {
        case p.Kind.IsModule()   : return self.dive(op, cur, path)
        case p.Kind.IsHardware() : return notAnalyzable { "unexpected " + self.d.Show(op) }
        default                  : return nil
    }
}

func (self *flopAnalyzer) dive(mod lim.OpID, cur lim.Latency, path []lim.OpID) error {
    if len(self.d.PortDeps(self.d.Op(mod).Go)) == 0 {
        return nil
    }

    /* the module starts somewhere inside its owner */
    start, ok := self.lat.Input(mod)
    if !ok {
        return notAnalyzable { "latency of " + self.d.Show(mod) }
    }

    sub := append(path[:len(path):len(path)], mod)
    return self.module(mod, start.AddTo(cur), sub)
}

func (self *flopAnalyzer) markInput(op lim.OpID, key ResourceKey, cur lim.Latency, path []lim.OpID) error {
    if lat, ok := self.lat.Input(op); !ok {
        return notAnalyzable { "latency of " + self.d.Show(op) }
    } else {
        return self.mark(op, key, lat, lat, cur, path)
    }
}

func (self *flopAnalyzer) markSpan(op lim.OpID, key ResourceKey, cur lim.Latency, path []lim.OpID) error {
    early, ok := self.lat.Input(op)
    if !ok {
        return notAnalyzable { "latency of " + self.d.Show(op) }
    }
    late, ok := self.lat.Done(op)
    if !ok {
        return notAnalyzable { "latency of " + self.d.Show(op) }
    }
    return self.mark(op, key, early, late, cur, path)
}

func (self *flopAnalyzer) mark(op lim.OpID, key ResourceKey, early lim.Latency, late lim.Latency, cur lim.Latency, path []lim.OpID) error {
    last, err := self.isLast(op, late, path)
    if err != nil {
        return err
    }

    /* first when it may start together with the body */
    tp := &feedbackTuple {
        key    : key,
        access : op,
        path   : append([]lim.OpID(nil), path...),
        first  : early.AddTo(cur).Min == 0,
        last   : last,
    }
    if !tp.first && !tp.last {
        return nil
    }

    /* an access in both cycles collides with itself */
    if tp.first && tp.last {
        if err = self.conflict(tp, tp); err != nil {
            return err
        }
    }

    /* and with the opposite accesses seen so far */
    for _, v := range self.tuples[key] {
        if v.first && tp.last {
            err = self.conflict(v, tp)
        } else if tp.first && v.last {
            err = self.conflict(tp, v)
        }
        if err != nil {
            return err
        }
    }

    self.tuples[key] = append(self.tuples[key], tp)
    return nil
}

func (self *flopAnalyzer) conflict(first *feedbackTuple, last *feedbackTuple) error {
    if _, ok := self.res.Conflicts[first.key]; !ok {
        self.res.keys = append(self.res.keys, first.key)
    }

    /* record the conflict */
    self.res.Conflicts[first.key] = append(self.res.Conflicts[first.key], Conflict {
        HeadAccess : first.access,
        HeadPath   : first.path,
        TailAccess : last.access,
        TailPath   : last.path,
    })

    self.tr.Printw("loop flop conflict", "resource", first.key, "first", self.d.Show(first.access), "last", self.d.Show(last.access))
    if self.failFast {
        return flopNotRemovable { fmt.Sprintf("%s accessed first by %s and last by %s", first.key, self.d.Show(first.access), self.d.Show(last.access)) }
    } else {
        return nil
    }
}

// isLast walks up from op: op is in the last cycle unless some enclosing level
// completes every exit strictly after it.
func (self *flopAnalyzer) isLast(op lim.OpID, late lim.Latency, path []lim.OpID) (bool, error) {
    comp, lat := op, late
    for i := len(path) - 1; i >= 0; i-- {
        owner := self.d.Op(self.d.Op(comp).Owner)
        after := true

        /* every exit of the owner must complete later */
        for _, x := range owner.Exits {
            ex := self.d.Exit(x)
            if ex.Tag.Type == lim.ExitSideband {
                continue
            }
            olat, ok := self.lat.Input(ex.Peer)
            if !ok {
                return false, notAnalyzable { "latency of " + self.d.Show(ex.Peer) }
            }
            after = after && olat.IsGT(lat)
        }
        if after {
            return false, nil
        } else if i == 0 {
            break
        }

        /* move up to the enclosing component */
        comp = path[i]
        lat = lim.Zero
        found := false
        for _, x := range self.d.Op(comp).Exits {
            ex := self.d.Exit(x)
            if ex.Tag.Type == lim.ExitSideband {
                continue
            }
            v, ok := self.lat.Bus(ex.Done)
            if !ok {
                return false, notAnalyzable { "latency of " + self.d.Show(comp) }
            }
            if !found || v.IsGT(lat) {
                lat, found = v, true
            }
        }
    }
    return true, nil
}
