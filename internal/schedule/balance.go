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

    `github.com/nikandfor/errors`
    `github.com/nikandfor/tlog`

    `github.com/cloudwego/hlsched/internal/lim`
    `github.com/cloudwego/hlsched/internal/opts`
)

// BalanceAction is what the balancer did to a branch.
type BalanceAction uint8

const (
    Balanced BalanceAction = iota
    DelayTrue
    DelayFalse
    DelayBranch
)

func (self BalanceAction) String() string {
    switch self {
        case Balanced    : return "balanced"
        case DelayTrue   : return "delay_true"
        case DelayFalse  : return "delay_false"
        case DelayBranch : return "delay_branch"
        default          : return "invalid"
    }
}

// BalanceRecord describes one branch seen inside a loop.
type BalanceRecord struct {
    Branch    lim.OpID
    True      []lim.Latency
    False     []lim.Latency
    Action    BalanceAction
    Latencies []lim.Latency
}

// Balancer makes sure the two sides of a branch inside a loop never complete one
// combinationally and the other after a clock: the faster side, or the whole
// branch when the sides cannot be classified, is delayed by one clock.
type Balancer struct {
    Records []BalanceRecord
}

type balancer struct {
    d   *lim.Design
    tr  tlog.Span
    rec []BalanceRecord
}

func (self *Balancer) Apply(ctx context.Context, d *lim.Design, o *opts.Options) (err error) {
    if self.Records = nil; !o.BalanceLoops {
        return nil
    }

    tr, _ := tlog.SpawnFromContextAndWrap(ctx, "branch balancing", "tasks", len(d.Tasks))
    defer tr.Finish("err", &err)

    /* every task starts outside of any loop */
    bl := &balancer { d: d, tr: tr }
    for _, tk := range d.Tasks {
        if _, err = bl.component(tk.Call, false); err != nil {
            return errors.Wrap(err, "task %v", tk.Name)
        }
    }

    self.Records = bl.rec
    return nil
}

// component returns the exit latencies observed by visiting op.
func (self *balancer) component(op lim.OpID, inLoop bool) ([]lim.Latency, error) {
    p := self.d.Op(op)
    switch p.Kind {
        case lim.KindLoop      : return self.module(op, true)
        case lim.KindBranch    : return self.branch(op, inLoop)
        case lim.KindCall      : return self.module(op, inLoop)
        case lim.KindTaskCall  : return self.taskCall(op, inLoop)
        case lim.KindBlock     : return self.module(op, inLoop)
        case lim.KindDecision  : return self.module(op, inLoop)
        case lim.KindWhileBody : return self.module(op, inLoop)
        case lim.KindUntilBody : return self.module(op, inLoop)
        case lim.KindForBody   : return self.module(op, inLoop)
    }

    /* hardware primitives are created after scheduling */
    if p.Kind.IsHardware() || p.Kind == lim.KindInvalid {
        return nil, lim.EUnsupported(self.d, op, "branch balancing")
    }

    /* everything else reports its exits */
    ret := make([]lim.Latency, 0, len(p.Exits))
    for _, x := range p.Exits {
        ret = append(ret, self.d.Exit(x).Latency)
    }
    return ret, nil
}

func (self *balancer) children(op lim.OpID, inLoop bool, skip ...lim.OpID) ([]lim.Latency, error) {
    var ret []lim.Latency
    for _, c := range self.d.Op(op).Children {
        if !containsOp(skip, c) {
            if lats, err := self.component(c, inLoop); err != nil {
                return nil, err
            } else {
                ret = append(ret, lats...)
            }
        }
    }
    return ret, nil
}

// module reduces the latencies of every child of op.
func (self *balancer) module(op lim.OpID, inLoop bool) ([]lim.Latency, error) {
    if lats, err := self.children(op, inLoop); err != nil {
        return nil, err
    } else {
        return self.exit(op, lats), nil
    }
}

// taskCall visits the call itself and the body of the called task.
func (self *balancer) taskCall(op lim.OpID, inLoop bool) ([]lim.Latency, error) {
    lats, err := self.children(op, inLoop)
    if err != nil {
        return nil, err
    }

    /* the called body */
    if body := self.d.Op(op).Body; body != lim.NoOp {
        if sub, err := self.module(body, inLoop); err != nil {
            return nil, err
        } else {
            lats = append(lats, sub...)
        }
    }
    return self.exit(op, lats), nil
}

// exit keeps the latest of the latencies seen inside op, plus ONE when a child of
// op is already delayed by a resource dependency.
func (self *balancer) exit(op lim.OpID, lats []lim.Latency) []lim.Latency {
    if self.delayed(op) {
        lats = append(lats, lim.One)
    }
    return lim.Latest(lats)
}

func (self *balancer) delayed(op lim.OpID) bool {
    for _, c := range self.d.Op(op).Children {
        for _, v := range self.d.PortDeps(self.d.Op(c).Go) {
            if dep := self.d.Dep(v); dep.Kind == lim.DepResource && dep.MinClocks > 0 {
                return true
            }
        }
    }
    return false
}

func (self *balancer) branch(op lim.OpID, inLoop bool) ([]lim.Latency, error) {
    if !inLoop {
        return self.module(op, inLoop)
    }

    /* both sides are classified on their own */
    p := self.d.Op(op)
    ts, err := self.module(p.True, true)
    if err != nil {
        return nil, err
    }
    fs, err := self.module(p.False, true)
    if err != nil {
        return nil, err
    }

    /* the rest of the branch */
    lats, err := self.children(op, true, p.True, p.False)
    if err != nil {
        return nil, err
    }

    tc, tq := combinational(ts), sequential(ts)
    fc, fq := combinational(fs), sequential(fs)
    rec := BalanceRecord {
        Branch : op,
        True   : ts,
        False  : fs,
    }

    /* pick the side to delay */
    switch {
        case tc && !tq && fc && !fq : rec.Action = Balanced
        case !tc && tq && !fc && fq : rec.Action = Balanced
        case tc && fq               : rec.Action, err = DelayTrue, self.delay(p.True)
        case tq && fc               : rec.Action, err = DelayFalse, self.delay(p.False)
        default                     : rec.Action, err = DelayBranch, self.delay(op)
    }
    if err != nil {
        return nil, err
    }

    /* a delayed side now takes a clock */
    lats = append(lats, ts...)
    lats = append(lats, fs...)
    if rec.Action != Balanced {
        lats = append(lats, lim.One)
    }

    rec.Latencies = lats
    self.rec = append(self.rec, rec)
    self.tr.Printw("branch", "branch", self.d.Show(op), "true", ts, "false", fs, "action", rec.Action)
    return self.exit(op, lats), nil
}

// delay makes the done of mod wait at least one clock after its go.
func (self *balancer) delay(mod lim.OpID) error {
    p := self.d.Op(mod)
    if len(p.Exits) != 1 {
        return lim.EStructure(self.d, mod, "cannot delay a module with %d exits", len(p.Exits))
    }

    /* from the module GO to the OutBuf GO */
    src := self.d.Port(p.Go).Peer
    ob := self.d.Op(self.d.Exit(p.Exits[0]).Peer)

    /* already delayed */
    for _, v := range self.d.PortDeps(ob.Go) {
        if dep := self.d.Dep(v); dep.Kind == lim.DepResource && dep.Source == src && dep.MinClocks > 0 {
            return nil
        }
    }

    self.d.ConnectResource(ob.Entries[0], src, ob.Go, 1)
    return nil
}

// combinational reports whether every latency is exactly zero.
func combinational(lats []lim.Latency) bool {
    for _, v := range lats {
        if v != lim.Zero {
            return false
        }
    }
    return true
}

// sequential reports whether any latency takes at least a clock.
func sequential(lats []lim.Latency) bool {
    for _, v := range lats {
        if v.Min > 0 {
            return true
        }
    }
    return false
}

func containsOp(ops []lim.OpID, op lim.OpID) bool {
    for _, v := range ops {
        if v == op {
            return true
        }
    }
    return false
}
