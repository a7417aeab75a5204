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
    `fmt`
    `sort`

    `github.com/cloudwego/hlsched/internal/lim`
    `github.com/cloudwego/hlsched/internal/opts`
)

// Conflict is a resource accessed both in the first and in the last cycle of a
// loop body, which makes two iterations collide once the loop flop is gone.
type Conflict struct {
    HeadAccess lim.OpID
    HeadPath   []lim.OpID
    TailAccess lim.OpID
    TailPath   []lim.OpID
}

// Correlation maps the components an analysis saw to the live components to
// change.
type Correlation map[lim.OpID]lim.OpID

// Identity returns the correlation of a design with itself.
func Identity(d *lim.Design) Correlation {
    ret := make(Correlation, len(d.Ops))
    for _, p := range d.Ops {
        ret[p.ID] = p.ID
    }
    return ret
}

// PolicyError occures when a conflict set is created with an unknown policy.
type PolicyError struct {
    Policy int
}

func (self PolicyError) Error() string {
    return fmt.Sprintf("illegal loop flop conflict resolution policy: %d", self.Policy)
}

// ConflictSet resolves the conflicts of one loop with a single policy.
type ConflictSet struct {
    policy    int
    first     bool
    conflicts []Conflict
    corr      Correlation
}

// NewConflictSet decides, once for the whole set, whether conflicts are fixed by
// delaying their head accesses or their tail accesses.
func NewConflictSet(policy int, conflicts []Conflict, corr Correlation) (*ConflictSet, error) {
    heads, tails := distinctAccesses(conflicts)
    ret := &ConflictSet {
        policy    : policy,
        conflicts : conflicts,
        corr      : corr,
    }

    /* pick the fix */
    switch policy {
        case opts.FixNone     : break
        case opts.FirstAlways : ret.first = true
        case opts.LastAlways  : ret.first = false
        case opts.FixFewest   : ret.first = heads <= tails
        case opts.FixMost     : ret.first = heads > tails
        default               : return nil, PolicyError { policy }
    }
    return ret, nil
}

func distinctAccesses(conflicts []Conflict) (int, int) {
    heads := make(map[lim.OpID]struct{})
    tails := make(map[lim.OpID]struct{})
    for _, c := range conflicts {
        heads[c.HeadAccess] = struct{}{}
        tails[c.TailAccess] = struct{}{}
    }
    return len(heads), len(tails)
}

// Resolves reports whether Resolve changes anything.
func (self *ConflictSet) Resolves() bool {
    return self.policy != opts.FixNone
}

// FixFirst reports whether head accesses are delayed, as opposed to tail accesses.
func (self *ConflictSet) FixFirst() bool {
    return self.Resolves() && self.first
}

func (self *ConflictSet) Len() int {
    return len(self.conflicts)
}

// FixableAccessPathComponents returns the modules enclosing the accesses Resolve
// would delay. The accesses themselves are not part of their paths.
func (self *ConflictSet) FixableAccessPathComponents() []lim.OpID {
    if !self.Resolves() {
        return nil
    }

    /* union of the paths */
    set := make(map[lim.OpID]struct{})
    for _, c := range self.conflicts {
        path := c.TailPath
        if self.first {
            path = c.HeadPath
        }
        for _, v := range path {
            set[v] = struct{}{}
        }
    }

    /* stable order */
    ret := make([]lim.OpID, 0, len(set))
    for v := range set {
        ret = append(ret, v)
    }
    sort.Slice(ret, func(i int, j int) bool { return ret[i] < ret[j] })
    return ret
}

// Resolve inserts one resource dependency per distinct delayed access and returns
// how many were inserted.
func (self *ConflictSet) Resolve(d *lim.Design) (int, error) {
    if !self.Resolves() {
        return 0, nil
    }

    n := 0
    done := make(map[lim.OpID]bool)
    for _, c := range self.conflicts {
        acc := c.TailAccess
        if self.first {
            acc = c.HeadAccess
        }

        /* delay every access only once */
        if done[acc] {
            continue
        }

        /* find the live access */
        live, ok := self.corr[acc]
        if !ok {
            return n, lim.EMissingCorrelation(d, acc)
        }

        /* delay it */
        var err error
        if done[acc] = true; self.first {
            err = delayFirst(d, live)
        } else {
            err = delayLast(d, live)
        }
        if err != nil {
            return n, err
        }
        n++
    }
    return n, nil
}

// delayFirst makes the access start at least one clock after its owner.
func delayFirst(d *lim.Design, acc lim.OpID) error {
    p := d.Op(acc)
    if p.Owner == lim.NoOp {
        return lim.EStructure(d, acc, "access has no owner")
    }
    src := d.Port(d.Op(p.Owner).Go).Peer
    d.ConnectResource(p.Entries[0], src, p.Go, 1)
    return nil
}

// delayLast makes the owner of the access complete at least one clock after it.
func delayLast(d *lim.Design, acc lim.OpID) error {
    p := d.Op(acc)
    if p.Owner == lim.NoOp {
        return lim.EStructure(d, acc, "access has no owner")
    }

    /* the exits involved */
    mx := d.MainExit(p.Owner)
    ax := d.MainExit(acc)
    if mx == lim.NoExit {
        return lim.EMissingExit(d, p.Owner, lim.DoneTag)
    } else if ax == lim.NoExit {
        return lim.EMissingExit(d, acc, lim.DoneTag)
    }

    /* the OutBuf completing the owner waits */
    ob := d.Op(d.Exit(mx).Peer)
    d.ConnectResource(ob.Entries[0], d.Exit(ax).Done, ob.Go, 1)
    return nil
}
