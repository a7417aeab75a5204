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

package lim

import (
    `fmt`
)

// Unknown marks an unbounded maximum clock count.
const Unknown = -1

// Latency is the timing of an Exit relative to its owner's GO. A latency with an
// Unknown maximum is open; open latencies coming from different unbounded sources
// carry different keys and cannot be ordered against each other.
type Latency struct {
    Min int
    Max int
    Key int
}

var (
    Zero = Latency { Min: 0, Max: 0 }
    One  = Latency { Min: 1, Max: 1 }
)

// Fixed returns the closed latency of exactly n clocks.
func Fixed(n int) Latency {
    return Range(n, n)
}

// Range returns the closed latency [min, max].
func Range(min int, max int) Latency {
    if min < 0 || max < min {
        panic(fmt.Sprintf("lim: invalid latency: %d, %d", min, max))
    } else {
        return Latency { Min: min, Max: max }
    }
}

// Open returns a latency of at least min clocks with no known upper bound.
func Open(min int, key int) Latency {
    if min < 0 {
        panic(fmt.Sprintf("lim: invalid latency: %d", min))
    } else {
        return Latency { Min: min, Max: Unknown, Key: key }
    }
}

func (self Latency) IsOpen() bool {
    return self.Max == Unknown
}

func (self Latency) IsFixed() bool {
    return self.Max != Unknown && self.Min == self.Max
}

func maxGE(a int, b int) bool {
    return a == Unknown || (b != Unknown && a >= b)
}

// IsGE reports whether self completes no earlier than v on every path.
func (self Latency) IsGE(v Latency) bool {
    if self == v {
        return true
    } else if self.IsOpen() && v.IsOpen() && self.Key != v.Key {
        return false
    } else {
        return self.Min >= v.Min && maxGE(self.Max, v.Max)
    }
}

// IsGT reports whether self is strictly later than v.
func (self Latency) IsGT(v Latency) bool {
    return self != v && self.IsGE(v)
}

// AddTo returns the latency of self measured from the start of base.
func (self Latency) AddTo(base Latency) Latency {
    ret := Latency {
        Min: self.Min + base.Min,
        Max: Unknown,
        Key: base.Key,
    }
    if self.IsOpen() {
        ret.Key = self.Key
    } else if !base.IsOpen() {
        ret.Max = self.Max + base.Max
    }
    return ret
}

// Or is the latency of whichever of the inputs completes, as for a mux.
func Or(lats ...Latency) Latency {
    return combine(lats, func(a int, b int) int {
        if a < b { return a } else { return b }
    })
}

// And is the latency of all the inputs completing, as for a scoreboard.
func And(lats ...Latency) Latency {
    return combine(lats, func(a int, b int) int {
        if a > b { return a } else { return b }
    })
}

func combine(lats []Latency, pick func(int, int) int) Latency {
    if len(lats) == 0 {
        return Zero
    }

    /* fold every latency */
    ret := lats[0]
    for _, v := range lats[1:] {
        ret.Min = pick(ret.Min, v.Min)
        if ret.IsOpen() {
            continue
        } else if v.IsOpen() {
            ret.Max, ret.Key = Unknown, v.Key
        } else if v.Max > ret.Max {
            ret.Max = v.Max
        }
    }
    return ret
}

// Latest reduces lats to the latencies no other latency dominates, keeping any that
// cannot be ordered against the rest. The first occurrence of equal latencies wins.
func Latest(lats []Latency) []Latency {
    ret := make([]Latency, 0, len(lats))
    for _, v := range lats {
        if dominated(ret, v) {
            continue
        }

        /* drop everything the new latency dominates */
        keep := ret[:0]
        for _, s := range ret {
            if !v.IsGE(s) {
                keep = append(keep, s)
            }
        }
        ret = append(keep, v)
    }
    return ret
}

func dominated(set []Latency, v Latency) bool {
    for _, s := range set {
        if s.IsGE(v) {
            return true
        }
    }
    return false
}

// Earliest returns the latency with the smallest minimum, or Zero for an empty set.
func Earliest(lats []Latency) Latency {
    if len(lats) == 0 {
        return Zero
    }
    ret := lats[0]
    for _, v := range lats[1:] {
        if v.Min < ret.Min {
            ret = v
        }
    }
    return ret
}

// MaxOf returns the largest maximum in the set, or Unknown when any is open.
func MaxOf(lats []Latency) int {
    ret := 0
    for _, v := range lats {
        if v.IsOpen() {
            return Unknown
        } else if v.Max > ret {
            ret = v.Max
        }
    }
    return ret
}

func (self Latency) String() string {
    switch {
        case self.IsOpen()  : return fmt.Sprintf("<%d, ?>#%d", self.Min, self.Key)
        case self.IsFixed() : return fmt.Sprintf("<%d>", self.Min)
        default             : return fmt.Sprintf("<%d, %d>", self.Min, self.Max)
    }
}

// Spacing is the minimum number of clocks between successive invocations of a task.
type Spacing int

// Indeterminate means the caller must wait for DONE before re-issuing GO.
const Indeterminate Spacing = -1

func (self Spacing) IsIndeterminate() bool {
    return self < 0
}

// Max returns the larger spacing. Indeterminate dominates.
func (self Spacing) Max(v Spacing) Spacing {
    if self.IsIndeterminate() || v.IsIndeterminate() {
        return Indeterminate
    } else if v > self {
        return v
    } else {
        return self
    }
}

func (self Spacing) String() string {
    if self.IsIndeterminate() {
        return "indeterminate"
    } else {
        return fmt.Sprintf("%d", int(self))
    }
}
