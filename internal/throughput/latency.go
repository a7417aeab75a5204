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
    `github.com/cloudwego/hlsched/internal/lim`
)

// LatencyCache records when the buses of a module become valid. A global cache
// measures every bus from the start of the outermost module it was computed for;
// a local cache measures every bus from the start of the module owning it.
type LatencyCache struct {
    d     *lim.Design
    local bool
    bus   map[lim.BusID]lim.Latency
    input map[lim.OpID]lim.Latency
}

// NewGlobalLatency creates a cache measuring from the start of the computed module.
func NewGlobalLatency(d *lim.Design) *LatencyCache {
    return newLatencyCache(d, false)
}

// NewLocalLatency creates a cache measuring every bus within its own module.
func NewLocalLatency(d *lim.Design) *LatencyCache {
    return newLatencyCache(d, true)
}

func newLatencyCache(d *lim.Design, local bool) *LatencyCache {
    return &LatencyCache {
        d     : d,
        local : local,
        bus   : make(map[lim.BusID]lim.Latency),
        input : make(map[lim.OpID]lim.Latency),
    }
}

// Compute records the latencies of every bus inside mod, given the latency at
// which mod itself starts.
func (self *LatencyCache) Compute(mod lim.OpID, base lim.Latency) error {
    self.input[mod] = base
    if self.local {
        base = lim.Zero
    }
    return self.module(mod, base)
}

func (self *LatencyCache) module(mod lim.OpID, base lim.Latency) error {
    order, err := self.d.ScheduleOrder(mod)
    if err != nil {
        return err
    }

    for _, c := range order {
        p := self.d.Op(c)
        in, err := self.inputOf(c, base)
        if err != nil {
            return err
        }

        /* module contents first, task calls belong to another task */
        self.input[c] = in
        if p.Kind.IsModule() && p.Kind != lim.KindTaskCall {
            sub := in
            if self.local {
                sub = lim.Zero
            }
            if err = self.module(c, sub); err != nil {
                return err
            }
        }

        /* every bus of an exit completes with the exit */
        for _, x := range p.Exits {
            ex := self.d.Exit(x)
            if ex.Tag.Type == lim.ExitSideband {
                continue
            }
            lat := ex.Latency.AddTo(in)
            self.bus[ex.Done] = lat
            for _, b := range ex.Buses {
                self.bus[b] = lat
            }
        }
    }

    return nil
}

func (self *LatencyCache) inputOf(op lim.OpID, base lim.Latency) (lim.Latency, error) {
    var lats []lim.Latency
    p := self.d.Op(op)

    /* every driver outside of the feedback path */
    for _, e := range p.Entries {
        en := self.d.Entry(e)
        if en.Feedback {
            continue
        }
        for _, v := range en.Deps {
            dep := self.d.Dep(v)
            lat, ok := self.bus[dep.Source]
            if !ok {
                return lim.Zero, lim.EStructure(self.d, op, "latency of %v is not known yet", self.d.Bus(dep.Source).Name)
            }
            if dep.MinClocks > 0 {
                lat = lim.Fixed(dep.MinClocks).AddTo(lat)
            }
            lats = append(lats, lat)
        }
    }

    /* undriven components start with their module */
    if len(lats) == 0 {
        return base, nil
    }

    switch p.Kind {
        case lim.KindMux        : return lim.Or(lats...), nil
        case lim.KindScoreboard : return lim.And(lats...), nil
        default                 : return lim.And(lim.Latest(lats)...), nil
    }
}

// Input returns the latency at which op starts.
func (self *LatencyCache) Input(op lim.OpID) (lim.Latency, bool) {
    lat, ok := self.input[op]
    return lat, ok
}

// Bus returns the latency at which the bus becomes valid.
func (self *LatencyCache) Bus(bus lim.BusID) (lim.Latency, bool) {
    lat, ok := self.bus[bus]
    return lat, ok
}

// Done returns the latency of the done bus of the main exit of op.
func (self *LatencyCache) Done(op lim.OpID) (lim.Latency, bool) {
    if x := self.d.MainExit(op); x == lim.NoExit {
        return lim.Zero, false
    } else {
        return self.Bus(self.d.Exit(x).Done)
    }
}
