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
    `sort`

    `github.com/oleiade/lane`
)

// ProcessPoint is one end of a process: a set of candidate components of which
// control flow lets only one run, together with the child of the process context
// that contains all of them.
type ProcessPoint struct {
    Candidates []OpID
    Context    OpID
    Critical   OpID
}

// ProcessStartPoint is a ProcessPoint that can be stalled.
type ProcessStartPoint struct {
    ProcessPoint
    StallSignals []OpID
}

// StallPoint is the component whose GO must wait on the stall signals.
func (self *ProcessStartPoint) StallPoint() OpID {
    return self.Critical
}

// Process is a region bounded by the first and the last accesses of a resource
// that must not overlap with another run of itself.
type Process struct {
    ID          int
    Resource    ResID
    Context     OpID
    StartPoints []*ProcessStartPoint
    End         ProcessPoint
}

func sortedIDs(ops []OpID) []OpID {
    ret := append([]OpID(nil), ops...)
    sort.Slice(ret, func(i int, j int) bool { return ret[i] < ret[j] })
    return ret
}

// hierarchy returns the owner chain of op as a stack with the outermost owner
// on top.
func (self *Design) hierarchy(op OpID) *lane.Stack {
    st := lane.NewStack()
    for p := self.Op(op).Owner; p != NoOp; p = self.Op(p).Owner {
        st.Push(p)
    }
    return st
}

// ProcessContext returns the deepest Block owning every one of the components.
func (self *Design) ProcessContext(ops []OpID) (OpID, error) {
    if len(ops) == 0 {
        return NoOp, EStructure(self, NoOp, "process without accessors")
    }

    /* owner chains, outermost first */
    ctx := NoOp
    sts := make([]*lane.Stack, len(ops))
    for i, op := range ops {
        sts[i] = self.hierarchy(op)
    }

    /* walk down while every chain agrees */
    for {
        var head interface{}
        for _, st := range sts {
            if st.Empty() {
                goto done
            } else if head == nil {
                head = st.Head()
            } else if st.Head() != head {
                goto done
            }
        }

        /* every chain shares this owner */
        for _, st := range sts {
            st.Pop()
        }

        /* only blocks can be process contexts */
        if op := head.(OpID); self.Op(op).Kind == KindBlock {
            ctx = op
        }
    }

done:
    if ctx == NoOp {
        return NoOp, EStructure(self, ops[0], "no common block owning the process accessors")
    } else {
        return ctx, nil
    }
}

// CriticalContext returns the ancestor of op directly owned by ctx, which may be
// op itself.
func (self *Design) CriticalContext(op OpID, ctx OpID) (OpID, error) {
    for p := op; p != NoOp; p = self.Op(p).Owner {
        if self.Op(p).Owner == ctx {
            return p, nil
        }
    }
    return NoOp, EStructure(self, op, "not contained in process context %s", self.Show(ctx))
}

// NewProcessPoint validates that every candidate lies under the same child of ctx.
func (self *Design) NewProcessPoint(ops []OpID, ctx OpID) (ProcessPoint, error) {
    ret := ProcessPoint {
        Candidates : sortedIDs(ops),
        Context    : ctx,
        Critical   : NoOp,
    }

    /* every candidate must agree on the critical context */
    for _, op := range ret.Candidates {
        if cc, err := self.CriticalContext(op, ctx); err != nil {
            return ret, err
        } else if ret.Critical == NoOp {
            ret.Critical = cc
        } else if ret.Critical != cc {
            return ret, EStructure(self, op, "process point spans %s and %s", self.Show(ret.Critical), self.Show(cc))
        }
    }
    return ret, nil
}

// NewProcess creates the process of res between the start and end accessors and
// records it in the design.
func (self *Design) NewProcess(res ResID, start []OpID, end []OpID) (*Process, error) {
    ctx, err := self.ProcessContext(append(append([]OpID(nil), start...), end...))
    if err != nil {
        return nil, err
    }

    /* group the start accessors by their critical context */
    var keys []OpID
    groups := make(map[OpID][]OpID)
    for _, op := range sortedIDs(start) {
        cc, err := self.CriticalContext(op, ctx)
        if err != nil {
            return nil, err
        }
        if _, ok := groups[cc]; !ok {
            keys = append(keys, cc)
        }
        groups[cc] = append(groups[cc], op)
    }

    /* the process itself */
    ps := &Process {
        ID       : len(self.Processes),
        Resource : res,
        Context  : ctx,
    }

    /* start points */
    for _, cc := range keys {
        pt, err := self.NewProcessPoint(groups[cc], ctx)
        if err != nil {
            return nil, err
        }
        ps.StartPoints = append(ps.StartPoints, &ProcessStartPoint { ProcessPoint: pt })
    }

    /* end point */
    if ps.End, err = self.NewProcessPoint(end, ctx); err != nil {
        return nil, err
    }

    self.Processes = append(self.Processes, ps)
    return ps, nil
}

func (self *Process) IsStartPoint(op OpID) bool {
    for _, sp := range self.StartPoints {
        if sp.Critical == op {
            return true
        }
    }
    return false
}

func (self *Process) IsEndPoint(op OpID) bool {
    return self.End.Critical == op
}

// AddStallSignal makes op a stall source of every start point.
func (self *Process) AddStallSignal(op OpID) {
    for _, sp := range self.StartPoints {
        if !containsOp(sp.StallSignals, op) {
            sp.StallSignals = append(sp.StallSignals, op)
        }
    }
}

// StallPoints returns the components stalled by the process.
func (self *Process) StallPoints() []OpID {
    ret := make([]OpID, 0, len(self.StartPoints))
    for _, sp := range self.StartPoints {
        ret = append(ret, sp.StallPoint())
    }
    return ret
}

func containsOp(ops []OpID, op OpID) bool {
    for _, v := range ops {
        if v == op {
            return true
        }
    }
    return false
}
