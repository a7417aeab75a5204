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
    `github.com/cloudwego/hlsched/internal/throughput`
)

type Pass interface {
    Apply(context.Context, *lim.Design, *opts.Options) error
}

type PassDescriptor struct {
    New  func() Pass
    Name string
}

// Passes run in this order; each one relies on the structure the previous ones left.
var Passes = [...]PassDescriptor {
    { Name: "Branch Balancing"    , New: func() Pass { return new(Balancer) } },
    { Name: "Loop Flop Removal"   , New: func() Pass { return new(LoopFlopRemoval) } },
    { Name: "Throughput Analysis" , New: func() Pass { return new(Throughput) } },
    { Name: "Stall Tracking"      , New: func() Pass { return new(StallTracking) } },
}

// Run executes every pass over the design.
func Run(ctx context.Context, d *lim.Design, o *opts.Options) (err error) {
    tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "schedule", "design", d.Name, "options", o.String())
    defer tr.Finish("err", &err)

    for _, p := range Passes {
        if err = p.New().Apply(ctx, d, o); err != nil {
            return errors.Wrap(err, "%s", p.Name)
        }
    }

    return nil
}

// Throughput records the spacing of every task.
type Throughput struct {
    Results []*throughput.Result
}

func (self *Throughput) Apply(ctx context.Context, d *lim.Design, _ *opts.Options) (err error) {
    self.Results, err = throughput.Analyze(ctx, d)
    return
}
