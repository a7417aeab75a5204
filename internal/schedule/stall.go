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

    `github.com/davecgh/go-spew/spew`
    `github.com/nikandfor/errors`
    `github.com/nikandfor/tlog`

    `github.com/cloudwego/hlsched/internal/lim`
    `github.com/cloudwego/hlsched/internal/opts`
)

// StallTracking identifies the processes of every task and annotates the modules
// and process start points with their stall sources.
type StallTracking struct {
    Processes int
}

func (self *StallTracking) Apply(ctx context.Context, d *lim.Design, _ *opts.Options) (err error) {
    tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "stall_tracking")
    defer tr.Finish("err", &err)

    /* start over on every run */
    d.Processes = nil
    for _, p := range d.Ops {
        p.Stalls = nil
    }

    /* one task at a time */
    for _, tk := range d.Tasks {
        procs, err := IdentifyProcesses(ctx, d, tk)
        if err != nil {
            return errors.Wrap(err, "task %v", tk.Name)
        }
        if err = trackModule(ctx, d, tk.Call, procs); err != nil {
            return errors.Wrap(err, "task %v", tk.Name)
        }
    }

    self.Processes = len(d.Processes)
    if tr.If("dump_stalls") {
        tr.Printw("processes", "dump", spew.Sdump(d.Processes))
    }
    return nil
}

// trackModule registers the components of mod in schedule order, nested modules
// being tracked before they register with their owner.
func trackModule(ctx context.Context, d *lim.Design, mod lim.OpID, procs []*lim.Process) error {
    p := d.Op(mod)
    order, err := d.ScheduleOrder(mod)
    if err != nil {
        return err
    }

    /* the InBuf goes first */
    tk := NewTracker(d, mod, procs)
    tk.Register(p.InBuf)

    /* then everything else */
    for _, c := range order {
        cp := d.Op(c)
        if c == p.InBuf {
            continue
        }
        if cp.Kind.IsModule() && cp.Kind != lim.KindTaskCall {
            if err = trackModule(ctx, d, c, procs); err != nil {
                return err
            }
        }
        tk.Register(c)
    }

    /* annotate the module */
    if p.Stalls = tk.ModuleStalls(); len(p.Stalls) != 0 {
        tlog.SpanFromContext(ctx).Printw("module stalled", "module", d.Show(mod), "stalls", len(p.Stalls))
    }
    return nil
}
