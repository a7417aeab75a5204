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
    `testing`

    `github.com/davecgh/go-spew/spew`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

func indexOf(ops []OpID, op OpID) int {
    for i, v := range ops {
        if v == op {
            return i
        }
    }
    return -1
}

func TestBuilder_Task(t *testing.T) {
    d := NewDesign("test")
    tk := d.NewTask("task", 2, 1, Fixed(3), true)
    cp := d.Op(tk.Call)
    require.Equal(t, KindCall, cp.Kind)
    require.NotEqual(t, NoOp, cp.Body)
    assert.Equal(t, KindBlock, d.Op(cp.Body).Kind)
    assert.Equal(t, tk.Call, d.Op(cp.Body).Owner)
    assert.Len(t, d.Op(cp.Body).Ports, 2)
    assert.Equal(t, Fixed(3), d.Exit(d.MainExit(tk.Call)).Latency)

    /* peers are symmetric */
    ix := d.InBufExit(tk.Call)
    assert.Equal(t, ix.Done, d.Port(cp.Go).Peer)
    assert.Equal(t, cp.Go, d.Bus(ix.Done).Peer)
    for i, p := range cp.Ports {
        assert.Equal(t, ix.Buses[i], d.Port(p).Peer)
        assert.Equal(t, p, d.Bus(ix.Buses[i]).Peer)
    }
}

func TestBuilder_Branch(t *testing.T) {
    d := NewDesign("test")
    tk := d.NewTask("task", 1, 1, Fixed(3), true)
    br := d.Op(d.NewBranch(d.Op(tk.Call).Body, "br", 1, 1, Zero))
    require.NotEqual(t, NoOp, br.Decision)
    assert.Equal(t, KindDecision, d.Op(br.Decision).Kind)
    assert.Equal(t, br.ID, d.Op(br.True).Owner)
    assert.Equal(t, br.ID, d.Op(br.False).Owner)
    assert.NotEqual(t, NoExit, d.ExitOf(br.Decision, TrueTag))
    assert.NotEqual(t, NoExit, d.ExitOf(br.Decision, FalseTag))
    assert.Equal(t, NoExit, d.MainExit(br.Decision))

    /* one OutBuf entry per side */
    ob := d.Op(d.OutBuf(br.ID, DoneTag))
    require.Len(t, ob.Entries, 2)
    assert.Equal(t, d.MainExit(br.True), d.Entry(ob.Entries[0]).Drive)
    assert.Equal(t, d.MainExit(br.False), d.Entry(ob.Entries[1]).Drive)
    assert.Len(t, d.PortDeps(ob.Go), 2)
    assert.Len(t, d.PortDeps(ob.Ports[0]), 2)

    /* decision, then the sides, then the OutBuf */
    order, err := d.ScheduleOrder(br.ID)
    require.NoError(t, err)
    require.Len(t, order, len(br.Children))
    assert.Less(t, indexOf(order, br.InBuf), indexOf(order, br.Decision))
    assert.Less(t, indexOf(order, br.Decision), indexOf(order, br.True))
    assert.Less(t, indexOf(order, br.Decision), indexOf(order, br.False))
    assert.Less(t, indexOf(order, br.True), indexOf(order, ob.ID))
    assert.Less(t, indexOf(order, br.False), indexOf(order, ob.ID))
}

func TestBuilder_Loop(t *testing.T) {
    d := NewDesign("test")
    tk := d.NewTask("task", 1, 1, Fixed(3), true)
    lp := d.Op(d.NewLoop(d.Op(tk.Call).Body, "lp", 2, 1, Fixed(8)))
    require.NotEqual(t, NoOp, lp.Body)
    bd := d.Op(lp.Body)
    assert.Equal(t, KindWhileBody, bd.Kind)
    assert.True(t, lp.FlopNeeded)
    assert.True(t, d.IsIterative(lp.ID))
    assert.Equal(t, KindReg, d.Op(lp.Control).Kind)
    assert.Equal(t, KindBlock, d.Op(bd.Body).Kind)

    /* both exits of the body */
    fb := d.ExitOf(bd.ID, FeedbackTag)
    require.NotEqual(t, NoExit, fb)
    require.NotEqual(t, NoExit, d.ExitOf(bd.ID, DoneTag))
    assert.Len(t, d.Exit(fb).Buses, 2)

    /* the feedback entry restarts the body from the control register */
    require.Len(t, bd.Entries, 2)
    fe := d.Entry(bd.Entries[1])
    assert.True(t, fe.Feedback)
    assert.Equal(t, fb, fe.Drive)
    gd := d.DepsOn(fe.ID, bd.Go)
    require.Len(t, gd, 1)
    assert.Equal(t, lp.Control, d.BusOwner(d.Dep(gd[0]).Source))

    /* feedback does not order the children */
    order, err := d.ScheduleOrder(lp.ID)
    require.NoError(t, err)
    assert.Less(t, indexOf(order, bd.ID), indexOf(order, lp.Control))
    order, err = d.ScheduleOrder(bd.ID)
    require.NoError(t, err)
    assert.Less(t, indexOf(order, bd.Decision), indexOf(order, bd.Body))
}

func TestBuilder_Access(t *testing.T) {
    d := NewDesign("test")
    tk := d.NewTask("task", 0, 0, Fixed(3), true)
    body := d.Op(tk.Call).Body
    mem := d.NewResource(Memory, "mem", false)
    reg := d.NewResource(Register, "reg", true)

    /* memory accesses take an address */
    rd := d.Op(d.NewAccess(KindMemoryRead, body, "rd", mem, Fixed(2)))
    wr := d.Op(d.NewAccess(KindMemoryWrite, body, "wr", mem, Fixed(1)))
    assert.Len(t, rd.Ports, 1)
    assert.Len(t, d.Exit(rd.Exits[0]).Buses, 1)
    assert.Len(t, wr.Ports, 2)
    assert.Len(t, d.Exit(wr.Exits[0]).Buses, 0)
    assert.Equal(t, []OpID { rd.ID, wr.ID }, d.Resource(mem).Accesses)

    /* registers do not */
    rr := d.Op(d.NewAccess(KindRegisterRead, body, "rr", reg, Zero))
    assert.Len(t, rr.Ports, 0)
    assert.Equal(t, reg, rr.Resource)

    /* kinds must match */
    assert.Panics(t, func() { d.NewAccess(KindFifoRead, body, "bad", mem, Zero) })
    assert.Panics(t, func() { d.NewPrimitive(KindBlock, body, "bad", 0, 0, Zero) })
}

func TestBuilder_Dependencies(t *testing.T) {
    d := NewDesign("test")
    tk := d.NewTask("task", 0, 0, Fixed(3), true)
    body := d.Op(tk.Call).Body
    a := d.Op(d.NewPrimitive(KindOp, body, "a", 1, 1, Fixed(1)))
    b := d.Op(d.NewPrimitive(KindOp, body, "b", 1, 1, Fixed(1)))
    c := d.Op(d.NewConstant(body, "c", 42))
    cb := d.Exit(c.Exits[0]).Buses[0]
    ab := d.Exit(a.Exits[0]).Buses[0]

    /* kinds follow the target port */
    dd := d.Connect(b.Entries[0], ab, b.Ports[0])
    cd := d.Connect(b.Entries[0], d.Exit(a.Exits[0]).Done, b.Go)
    assert.Equal(t, DepData, d.Dep(dd).Kind)
    assert.Equal(t, DepControl, d.Dep(cd).Kind)
    assert.Equal(t, []DepID { dd }, d.Bus(ab).Dependents)
    assert.True(t, d.Bus(cb).Constant)

    /* relocation moves the dependent */
    d.Relocate(dd, cb)
    assert.Empty(t, d.Bus(ab).Dependents)
    assert.Equal(t, []DepID { dd }, d.Bus(cb).Dependents)
    assert.Equal(t, cb, d.Dep(dd).Source)

    /* only resource dependencies carry clocks */
    assert.Panics(t, func() { d.AddDependency(b.Entries[0], DepData, ab, b.Ports[0], 1) })
    assert.Panics(t, func() { d.AddDependency(b.Entries[0], DepData, ab, a.Ports[0], 0) })
    rd := d.ConnectResource(b.Entries[0], ab, b.Go, 2)
    assert.Equal(t, 2, d.Dep(rd).MinClocks)
}

func TestScheduleOrder_Cycle(t *testing.T) {
    d := NewDesign("test")
    tk := d.NewTask("task", 0, 0, Fixed(3), true)
    body := d.Op(tk.Call).Body
    a := d.Op(d.NewPrimitive(KindOp, body, "a", 1, 1, Fixed(1)))
    b := d.Op(d.NewPrimitive(KindOp, body, "b", 1, 1, Fixed(1)))
    d.Connect(a.Entries[0], d.Exit(b.Exits[0]).Buses[0], a.Ports[0])
    d.Connect(b.Entries[0], d.Exit(a.Exits[0]).Buses[0], b.Ports[0])
    _, err := d.ScheduleOrder(body)
    var se StructureError
    require.ErrorAs(t, err, &se)
    spew.Dump(se)
}

func TestScheduleOrder_Ties(t *testing.T) {
    d := NewDesign("test")
    tk := d.NewTask("task", 0, 0, Fixed(3), true)
    body := d.Op(tk.Call).Body
    a := d.NewPrimitive(KindOp, body, "a", 0, 0, Fixed(1))
    b := d.NewPrimitive(KindOp, body, "b", 0, 0, Fixed(1))
    c := d.NewPrimitive(KindOp, body, "c", 0, 0, Fixed(1))
    d.Start(b, d.Exit(d.MainExit(c)).Done)

    /* independent children keep creation order */
    order, err := d.ScheduleOrder(body)
    require.NoError(t, err)
    assert.Less(t, indexOf(order, a), indexOf(order, c))
    assert.Less(t, indexOf(order, c), indexOf(order, b))
    assert.Less(t, indexOf(order, d.Op(body).InBuf), indexOf(order, a))
}
