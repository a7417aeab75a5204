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
    `testing`

    `github.com/brianvoe/gofakeit/v6`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`

    `github.com/cloudwego/hlsched/internal/lim`
    `github.com/cloudwego/hlsched/internal/opts`
)

type conflictDesign struct {
    *lim.Design
    blk lim.OpID
    rd  lim.OpID
    wr  lim.OpID
}

func newConflictDesign() *conflictDesign {
    d := lim.NewDesign("conflict")
    tk := d.NewTask("task", 0, 0, lim.Fixed(4), true)
    blk := d.Op(tk.Call).Body
    mem := d.NewResource(lim.Memory, "mem", false)
    rd := d.NewAccess(lim.KindMemoryRead, blk, "rd", mem, lim.Fixed(1))
    wr := d.NewAccess(lim.KindMemoryWrite, blk, "wr", mem, lim.Fixed(1))
    d.Start(rd, startOf(d, blk))
    d.Start(wr, doneOf(d, rd))
    return &conflictDesign { Design: d, blk: blk, rd: rd, wr: wr }
}

func (self *conflictDesign) conflicts() []Conflict {
    return []Conflict {{
        HeadAccess : self.rd,
        HeadPath   : []lim.OpID { self.blk },
        TailAccess : self.wr,
        TailPath   : []lim.OpID { self.blk },
    }}
}

func resourceDeps(d *lim.Design, port lim.PortID) []*lim.Dependency {
    var ret []*lim.Dependency
    for _, v := range d.PortDeps(port) {
        if dep := d.Dep(v); dep.Kind == lim.DepResource {
            ret = append(ret, dep)
        }
    }
    return ret
}

func TestConflictSet_Policies(t *testing.T) {
    one := []Conflict {
        { HeadAccess: 1, TailAccess: 2 },
        { HeadAccess: 1, TailAccess: 3 },
    }
    for _, v := range []struct {
        policy  int
        resolve bool
        first   bool
    } {
        { opts.FixNone     , false, false },
        { opts.FirstAlways , true , true  },
        { opts.LastAlways  , true , false },
        { opts.FixFewest   , true , true  },
        { opts.FixMost     , true , false },
    } {
        cs, err := NewConflictSet(v.policy, one, nil)
        require.NoError(t, err)
        assert.Equal(t, v.resolve, cs.Resolves(), opts.PolicyName(v.policy))
        assert.Equal(t, v.first, cs.FixFirst(), opts.PolicyName(v.policy))
        assert.Equal(t, 2, cs.Len())
    }
}

func TestConflictSet_IllegalPolicy(t *testing.T) {
    _, err := NewConflictSet(42, nil, nil)
    var pe PolicyError
    require.ErrorAs(t, err, &pe)
    assert.Equal(t, 42, pe.Policy)
}

func TestConflictSet_Symmetry(t *testing.T) {
    fk := gofakeit.New(20221024)
    for i := 0; i < 200; i++ {
        var conflicts []Conflict
        for n := fk.IntRange(1, 8); n > 0; n-- {
            conflicts = append(conflicts, Conflict {
                HeadAccess : lim.OpID(fk.IntRange(0, 5)),
                TailAccess : lim.OpID(fk.IntRange(6, 11)),
            })
        }

        /* the fewest and the most always pick opposite sides */
        fw, err := NewConflictSet(opts.FixFewest, conflicts, nil)
        require.NoError(t, err)
        fm, err := NewConflictSet(opts.FixMost, conflicts, nil)
        require.NoError(t, err)
        require.NotEqual(t, fw.FixFirst(), fm.FixFirst())

        /* and the fewest really is not more */
        heads, tails := distinctAccesses(conflicts)
        if fw.FixFirst() {
            require.LessOrEqual(t, heads, tails)
        } else {
            require.Less(t, tails, heads)
        }
    }
}

func TestConflictSet_ResolveFirst(t *testing.T) {
    d := newConflictDesign()
    cs, err := NewConflictSet(opts.FirstAlways, append(d.conflicts(), d.conflicts()...), Identity(d.Design))
    require.NoError(t, err)
    assert.Equal(t, []lim.OpID { d.blk }, cs.FixableAccessPathComponents())

    /* the head access starts a clock after its block */
    n, err := cs.Resolve(d.Design)
    require.NoError(t, err)
    assert.Equal(t, 1, n)
    deps := resourceDeps(d.Design, d.Op(d.rd).Go)
    require.Len(t, deps, 1)
    assert.Equal(t, startOf(d.Design, d.blk), deps[0].Source)
    assert.Equal(t, 1, deps[0].MinClocks)
}

func TestConflictSet_ResolveLast(t *testing.T) {
    d := newConflictDesign()
    cs, err := NewConflictSet(opts.LastAlways, d.conflicts(), Identity(d.Design))
    require.NoError(t, err)
    assert.Equal(t, []lim.OpID { d.blk }, cs.FixableAccessPathComponents())

    /* the block completes a clock after the tail access */
    n, err := cs.Resolve(d.Design)
    require.NoError(t, err)
    assert.Equal(t, 1, n)
    ob := d.Op(d.OutBuf(d.blk, lim.DoneTag))
    deps := resourceDeps(d.Design, ob.Go)
    require.Len(t, deps, 1)
    assert.Equal(t, doneOf(d.Design, d.wr), deps[0].Source)
}

func TestConflictSet_FixablePaths(t *testing.T) {
    conflicts := []Conflict {
        { HeadAccess: 7, HeadPath: []lim.OpID { 3, 5 }, TailAccess: 8, TailPath: []lim.OpID { 3 } },
        { HeadAccess: 9, HeadPath: []lim.OpID { 3, 4 }, TailAccess: 8, TailPath: []lim.OpID { 3, 6 } },
    }

    /* only the paths of the delayed side, never the accesses */
    fs, err := NewConflictSet(opts.FirstAlways, conflicts, nil)
    require.NoError(t, err)
    assert.Equal(t, []lim.OpID { 3, 4, 5 }, fs.FixableAccessPathComponents())
    ls, err := NewConflictSet(opts.LastAlways, conflicts, nil)
    require.NoError(t, err)
    assert.Equal(t, []lim.OpID { 3, 6 }, ls.FixableAccessPathComponents())
}

func TestConflictSet_FixNone(t *testing.T) {
    d := newConflictDesign()
    cs, err := NewConflictSet(opts.FixNone, d.conflicts(), Identity(d.Design))
    require.NoError(t, err)
    nd := len(d.Deps)
    n, err := cs.Resolve(d.Design)
    require.NoError(t, err)
    assert.Zero(t, n)
    assert.Equal(t, nd, len(d.Deps))
    assert.Empty(t, cs.FixableAccessPathComponents())
}

func TestConflictSet_MissingCorrelation(t *testing.T) {
    d := newConflictDesign()
    cs, err := NewConflictSet(opts.FirstAlways, d.conflicts(), Correlation {})
    require.NoError(t, err)
    _, err = cs.Resolve(d.Design)
    var se lim.StructureError
    require.ErrorAs(t, err, &se)
}
