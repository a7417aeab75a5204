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
    `sort`

    `github.com/nikandfor/tlog`

    `github.com/cloudwego/hlsched/internal/lim`
)

type processIdentifier struct {
    d      *lim.Design
    first  map[lim.ResID][]lim.OpID
    last   map[lim.ResID][]lim.OpID
    nonagg map[lim.ResID]bool
}

func newProcessIdentifier(d *lim.Design) *processIdentifier {
    return &processIdentifier {
        d      : d,
        first  : make(map[lim.ResID][]lim.OpID),
        last   : make(map[lim.ResID][]lim.OpID),
        nonagg : make(map[lim.ResID]bool),
    }
}

// IdentifyProcesses creates a process for every resource of the task whose first
// and last accessors differ, and records them in the design.
func IdentifyProcesses(ctx context.Context, d *lim.Design, tk *lim.Task) ([]*lim.Process, error) {
    var ret []*lim.Process
    pi := newProcessIdentifier(d)
    tr := tlog.SpanFromContext(ctx)

    /* walk the task body */
    if err := pi.module(tk.Call); err != nil {
        return nil, err
    }

    /* a single access needs no stalling */
    for _, res := range pi.keys() {
        start, end := pi.first[res], pi.last[res]
        if sameOps(start, end) {
            continue
        }

        /* create the process */
        ps, err := d.NewProcess(res, start, end)
        if err != nil {
            return nil, err
        }

        ret = append(ret, ps)
        tr.Printw("process", "id", ps.ID, "resource", d.Resource(res).Name, "context", d.Show(ps.Context), "start", start, "end", end)
    }

    return ret, nil
}

func (self *processIdentifier) keys() []lim.ResID {
    ret := make([]lim.ResID, 0, len(self.last))
    for k := range self.first {
        ret = append(ret, k)
    }
    for k := range self.last {
        if _, ok := self.first[k]; !ok {
            ret = append(ret, k)
        }
    }
    sort.Slice(ret, func(i int, j int) bool { return ret[i] < ret[j] })
    return ret
}

func (self *processIdentifier) register(res lim.ResID, accs []lim.OpID) {
    if self.nonagg[res] {
        if _, ok := self.first[res]; !ok {
            self.first[res] = accs
        }
    } else {
        self.first[res] = unionOps(self.first[res], accs)
    }
    self.last[res] = accs
}

// joint registers every accessor found by the sub identifiers as a single access.
func (self *processIdentifier) joint(subs ...*processIdentifier) {
    seen := make(map[lim.ResID]bool)
    for _, s := range subs {
        for _, k := range s.keys() {
            seen[k] = true
        }
    }

    /* one register per resource */
    keys := make([]lim.ResID, 0, len(seen))
    for k := range seen {
        keys = append(keys, k)
    }
    sort.Slice(keys, func(i int, j int) bool { return keys[i] < keys[j] })

    for _, k := range keys {
        var accs []lim.OpID
        for _, s := range subs {
            accs = unionOps(accs, s.first[k])
            accs = unionOps(accs, s.last[k])
        }
        self.register(k, accs)
    }

    /* keep the aggregation state */
    for _, s := range subs {
        for k := range s.nonagg {
            self.nonagg[k] = true
        }
    }
}

func (self *processIdentifier) module(mod lim.OpID) error {
    order, err := self.d.ScheduleOrder(mod)
    if err != nil {
        return err
    }
    for _, c := range order {
        if err = self.component(c); err != nil {
            return err
        }
    }
    return nil
}

func (self *processIdentifier) component(op lim.OpID) error {
    p := self.d.Op(op)
    switch {
        case p.Kind == lim.KindRegisterRead : return self.access(p, false)
        case p.Kind.IsAccess()              : return self.access(p, true)
        case p.Kind == lim.KindBranch       : return self.branch(p)
        case p.Kind == lim.KindTaskCall     : return self.taskCall(p)
        case p.Kind.IsModule()              : return self.module(op)
        default                             : return nil
    }
}

func (self *processIdentifier) access(p *lim.Operation, nonagg bool) error {
    if p.Resource == lim.NoRes {
        return lim.EStructure(self.d, p.ID, "access without a resource")
    }
    if nonagg {
        self.nonagg[p.Resource] = true
    }
    self.register(p.Resource, []lim.OpID { p.ID })
    return nil
}

func (self *processIdentifier) branch(p *lim.Operation) error {
    if err := self.component(p.Decision); err != nil {
        return err
    }

    /* both sides may run, register them together */
    ts := newProcessIdentifier(self.d)
    fs := newProcessIdentifier(self.d)
    if err := ts.module(p.True); err != nil {
        return err
    }
    if err := fs.module(p.False); err != nil {
        return err
    }

    self.joint(ts, fs)
    return nil
}

// taskCall makes the call itself the accessor of every resource the callee uses.
func (self *processIdentifier) taskCall(p *lim.Operation) error {
    sub := newProcessIdentifier(self.d)
    if p.Body == lim.NoOp {
        return lim.EStructure(self.d, p.ID, "task call without a body")
    }
    if err := sub.module(p.Body); err != nil {
        return err
    }

    for k := range sub.nonagg {
        self.nonagg[k] = true
    }
    for _, k := range sub.keys() {
        self.register(k, []lim.OpID { p.ID })
    }
    return nil
}

func unionOps(a []lim.OpID, b []lim.OpID) []lim.OpID {
    ret := append([]lim.OpID(nil), a...)
    for _, v := range b {
        if !containsOp(ret, v) {
            ret = append(ret, v)
        }
    }
    sort.Slice(ret, func(i int, j int) bool { return ret[i] < ret[j] })
    return ret
}

func sameOps(a []lim.OpID, b []lim.OpID) bool {
    if len(a) != len(b) {
        return false
    }
    for _, v := range a {
        if !containsOp(b, v) {
            return false
        }
    }
    return true
}
