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

package throughput

import (
    `context`

    `github.com/nikandfor/errors`
    `github.com/nikandfor/tlog`

    `github.com/cloudwego/hlsched/internal/lim`
)

// Result is the throughput of one task.
type Result struct {
    Task    *lim.Task
    Limits  []Limit
    Spacing lim.Spacing
}

type taskAnalysis struct {
    d     *lim.Design
    lat   *LatencyCache
    loops []Limit
    order []lim.ResID
    res   map[lim.ResID]*ResourceLimit
    mem   map[lim.ResID]*MemAddrLimit
}

// Analyze computes the minimum spacing between two GOs of every task and records
// it as the task's GoSpacing.
func Analyze(ctx context.Context, d *lim.Design) (ret []*Result, err error) {
    tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "throughput analysis", "tasks", len(d.Tasks))
    defer tr.Finish("err", &err)

    for _, tk := range d.Tasks {
        rs, err := analyzeTask(ctx, d, tk)
        if err != nil {
            return nil, errors.Wrap(err, "task %v", tk.Name)
        }

        tk.GoSpacing = rs.Spacing
        ret = append(ret, rs)
    }

    return ret, nil
}

func analyzeTask(ctx context.Context, d *lim.Design, tk *lim.Task) (*Result, error) {
    tr := tlog.SpanFromContext(ctx)
    rs := &Result { Task: tk }

    /* unbalanced tasks are limited by their own latency */
    if !tk.Balanced {
        x := d.MainExit(tk.Call)
        if x == lim.NoExit {
            return nil, lim.EMissingExit(d, tk.Call, lim.DoneTag)
        }
        if lat := d.Exit(x).Latency; lat.IsOpen() {
            rs.Spacing = lim.Indeterminate
        } else {
            rs.Spacing = lim.Spacing(lat.Max)
        }
        tr.Printw("unbalanced task", "task", tk.Name, "spacing", rs.Spacing)
        return rs, nil
    }

    ta := &taskAnalysis {
        d   : d,
        lat : NewGlobalLatency(d),
        res : make(map[lim.ResID]*ResourceLimit),
        mem : make(map[lim.ResID]*MemAddrLimit),
    }

    /* absolute latencies from the task GO */
    if err := ta.lat.Compute(tk.Call, lim.Zero); err != nil {
        return nil, err
    }
    if err := ta.module(tk.Call, lim.NoOp); err != nil {
        return nil, err
    }

    /* the slowest limit wins */
    rs.Limits = ta.limits()
    for _, l := range rs.Limits {
        rs.Spacing = rs.Spacing.Max(l.Spacing())
        if tr.If("dump_throughput") {
            tr.Printw("limit", "task", tk.Name, "limit", l.String())
        }
    }

    tr.Printw("balanced task", "task", tk.Name, "limits", len(rs.Limits), "spacing", rs.Spacing)
    return rs, nil
}

func (self *taskAnalysis) limits() []Limit {
    ret := append([]Limit(nil), self.loops...)
    for _, r := range self.order {
        if l, ok := self.mem[r]; ok {
            ret = append(ret, l)
        }
        ret = append(ret, self.res[r])
    }
    return ret
}

// module walks the children of mod in data flow order. outer is the outermost
// iterative loop enclosing mod, if any.
func (self *taskAnalysis) module(mod lim.OpID, outer lim.OpID) error {
    order, err := self.d.ScheduleOrder(mod)
    if err != nil {
        return err
    }

    for _, c := range order {
        switch p := self.d.Op(c); {
            case p.Kind == lim.KindLoop     : err = self.loop(c, outer)
            case p.Kind == lim.KindTaskCall : continue
            case p.Kind.IsModule()          : err = self.module(c, outer)
            case p.Kind.IsAccess()          : err = self.access(c, outer)
        }
        if err != nil {
            return err
        }
    }

    return nil
}

func (self *taskAnalysis) loop(op lim.OpID, outer lim.OpID) error {
    if !self.d.IsIterative(op) {
        return self.module(op, outer)
    }

    /* the loop must drain before the task restarts */
    x := self.d.MainExit(op)
    if x == lim.NoExit {
        return lim.EMissingExit(self.d, op, lim.DoneTag)
    }
    self.loops = append(self.loops, &LoopLimit {
        Loop    : self.d.Op(op).Name,
        Latency : self.d.Exit(x).Latency,
    })

    if outer == lim.NoOp {
        outer = op
    }
    return self.module(op, outer)
}

func (self *taskAnalysis) access(op lim.OpID, outer lim.OpID) error {
    p := self.d.Op(op)
    head, tail, err := self.span(op, outer)
    if err != nil {
        return err
    }

    /* one limit per resource, in order of first access */
    rs := self.d.Resource(p.Resource)
    rl, ok := self.res[rs.ID]
    if !ok {
        rl = &ResourceLimit { Resource: rs }
        self.res[rs.ID] = rl
        self.order = append(self.order, rs.ID)
    }

    /* memories have a single address port */
    if rs.Kind == lim.Memory {
        ml, ok := self.mem[rs.ID]
        if !ok {
            ml = &MemAddrLimit { Resource: rs }
            self.mem[rs.ID] = ml
        }
        ml.mark(head, tail)
    }

    rl.mark(p.Kind.IsWrite(), head, tail)
    return nil
}

// span returns the head and tail latencies of an access. Inside a loop the
// whole loop stands for the access, since any iteration may touch the resource.
func (self *taskAnalysis) span(op lim.OpID, outer lim.OpID) (lim.Latency, lim.Latency, error) {
    if outer == lim.NoOp {
        lat, ok := self.lat.Input(op)
        if !ok {
            return lim.Zero, lim.Zero, lim.EStructure(self.d, op, "access was not scheduled")
        }
        return lat, lat, nil
    }

    head, ok := self.lat.Input(outer)
    if !ok {
        return lim.Zero, lim.Zero, lim.EStructure(self.d, outer, "loop was not scheduled")
    }
    tail, ok := self.lat.Done(outer)
    if !ok {
        return lim.Zero, lim.Zero, lim.EMissingExit(self.d, outer, lim.DoneTag)
    }
    return head, tail, nil
}
