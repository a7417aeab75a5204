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

    `github.com/nikandfor/tlog`

    `github.com/cloudwego/hlsched/internal/lim`
    `github.com/cloudwego/hlsched/internal/opts`
)

// LoopFlopRemoval drops the register between two iterations of a loop wherever
// no resource is accessed by both of them in the same clock.
type LoopFlopRemoval struct {
    Removed []lim.OpID
    Fixed   int
}

func (self *LoopFlopRemoval) Apply(ctx context.Context, d *lim.Design, o *opts.Options) (err error) {
    self.Fixed = 0
    self.Removed = nil

    /* check for options */
    if !o.RemoveLoopFlop {
        return nil
    }

    tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "loop_flop_removal", "policy", opts.PolicyName(o.LoopFixPolicy))
    defer tr.Finish("err", &err)

    /* every loop still carrying its flop */
    for _, p := range d.Ops {
        if p.Kind != lim.KindLoop || !p.FlopNeeded || !d.IsIterative(p.ID) {
            continue
        }

        /* try to remove it */
        ok, err := self.loop(ctx, d, p, o)
        if err != nil {
            return err
        }

        /* keep track of what changed */
        if ok {
            self.Removed = append(self.Removed, p.ID)
            tr.Printw("flop removed", "loop", d.Show(p.ID))
        }
    }

    return nil
}

func (self *LoopFlopRemoval) loop(ctx context.Context, d *lim.Design, lp *lim.Operation, o *opts.Options) (bool, error) {
    fa, err := AnalyzeLoopFlop(ctx, d, lp.Body, o.FailFastFlopAna)
    if err != nil {
        return false, err
    }

    /* nothing can be done about these */
    if fa.Needed || !fa.Analyzable {
        return false, nil
    }

    /* fail fast analysis only knows about the first conflict */
    if len(fa.Conflicts) != 0 {
        if o.FailFastFlopAna {
            return false, nil
        }

        /* conflicts must be resolved */
        cs, err := NewConflictSet(o.LoopFixPolicy, fa.All(), Identity(d))
        if err != nil {
            return false, err
        }
        if !cs.Resolves() {
            return false, nil
        }

        /* delay the accesses */
        n, err := cs.Resolve(d)
        if err != nil {
            return false, err
        }

        self.Fixed += n
        tlog.SpanFromContext(ctx).Printw("conflicts resolved", "loop", d.Show(lp.ID), "conflicts", cs.Len(), "delayed", n, "first", cs.FixFirst())
    }

    removeFlop(d, lp)
    return true, nil
}

// removeFlop bypasses every register of the loop: the control register restarting
// the body and the data registers carrying values between iterations.
func removeFlop(d *lim.Design, lp *lim.Operation) {
    lp.FlopNeeded = false
    for _, c := range lp.Children {
        rg := d.Op(c)
        if rg.Kind != lim.KindReg {
            continue
        }

        /* the value the register captures */
        in := d.PortDeps(rg.Ports[0])
        if len(in) != 1 {
            continue
        }

        /* its readers now read the value directly */
        src := d.Dep(in[0]).Source
        out := d.Exit(rg.Exits[0]).Buses[0]
        for _, v := range append([]lim.DepID(nil), d.Bus(out).Dependents...) {
            d.Relocate(v, src)
        }
    }
}
