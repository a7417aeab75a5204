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
    `fmt`

    `github.com/cloudwego/hlsched/internal/lim`
)

// Limit is one lower bound on the spacing of a task.
type Limit interface {
    Spacing() lim.Spacing
    String() string
}

// LoopLimit keeps an iterative loop from being re-entered before it drains.
type LoopLimit struct {
    Loop    string
    Latency lim.Latency
}

func (self *LoopLimit) Spacing() lim.Spacing {
    if self.Latency.IsOpen() {
        return lim.Indeterminate
    } else {
        return lim.Spacing(self.Latency.Max)
    }
}

func (self *LoopLimit) String() string {
    return fmt.Sprintf("loop %s: %s", self.Loop, self.Spacing())
}

// resourceMark spans the earliest head to the latest tail. The span does not
// depend on the order accesses are marked in, and never shrinks as more are.
type resourceMark struct {
    heads []lim.Latency
    tails []lim.Latency
}

func (self *resourceMark) head(lat lim.Latency) {
    self.heads = append(self.heads, lat)
}

func (self *resourceMark) tail(lat lim.Latency) {
    self.tails = append(self.tails, lat)
}

// before reports whether every head starts strictly after lat.
func (self *resourceMark) before(lat lim.Latency) bool {
    for _, v := range self.heads {
        if !v.IsGT(lat) {
            return false
        }
    }
    return true
}

func (self *resourceMark) spacing() lim.Spacing {
    if len(self.heads) == 0 {
        return 0
    }

    ret := lim.Spacing(0)
    base := lim.Earliest(self.heads).Min

    /* an open tail never drains, unless it ends before anything starts */
    for _, v := range self.tails {
        if v.IsOpen() {
            if !self.before(v) {
                return lim.Indeterminate
            }
        } else if n := lim.Spacing(v.Max - base); n > ret {
            ret = n
        }
    }
    return ret
}

// ResourceLimit spans complementary accesses of a resource: the first read to
// the last write and the first write to the last read. Resources that cannot
// serve parallel reads also span reads to reads.
type ResourceLimit struct {
    Resource *lim.Resource
    reads    resourceMark
    writes   resourceMark
}

func (self *ResourceLimit) mark(write bool, head lim.Latency, tail lim.Latency) {
    if write {
        self.writes.head(head)
        self.reads.tail(tail)
    } else {
        self.reads.head(head)
        self.writes.tail(tail)
        if !self.Resource.ParallelReads {
            self.reads.tail(tail)
        }
    }
}

func (self *ResourceLimit) Spacing() lim.Spacing {
    return self.reads.spacing().Max(self.writes.spacing())
}

func (self *ResourceLimit) String() string {
    return fmt.Sprintf("%s %s: %s", self.Resource.Kind, self.Resource.Name, self.Spacing())
}

// MemAddrLimit spans the first to the last access of a memory, since every
// access contends for the single address port.
type MemAddrLimit struct {
    Resource *lim.Resource
    all      resourceMark
}

func (self *MemAddrLimit) mark(head lim.Latency, tail lim.Latency) {
    self.all.head(head)
    self.all.tail(tail)
}

func (self *MemAddrLimit) Spacing() lim.Spacing {
    return self.all.spacing()
}

func (self *MemAddrLimit) String() string {
    return fmt.Sprintf("memory address %s: %s", self.Resource.Name, self.Spacing())
}
