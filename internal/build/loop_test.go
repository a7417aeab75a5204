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

package build

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/hlsched/internal/lim"
)

type loopDesign struct {
	*lim.Design
	loop *lim.Operation
	body *lim.Operation
	in   *lim.Exit
	fb   *lim.Exit
	done *lim.Exit
	ob   *lim.Operation
}

// newLoopDesign builds x = 0; while (...) x = x + a; with x on body port 0 and a
// on body port 1.
func newLoopDesign() *loopDesign {
	d := lim.NewDesign("loop")
	tk := d.NewTask("task", 1, 1, lim.Fixed(10), true)
	lp := d.Op(d.NewLoop(d.Op(tk.Call).Body, "lp", 2, 1, lim.Fixed(6)))
	bd := d.Op(lp.Body)
	return &loopDesign{
		Design: d,
		loop:   lp,
		body:   bd,
		in:     d.InBufExit(lp.ID),
		fb:     d.Exit(d.ExitOf(bd.ID, lim.FeedbackTag)),
		done:   d.Exit(d.ExitOf(bd.ID, lim.DoneTag)),
		ob:     d.Op(d.OutBuf(lp.ID, lim.DoneTag)),
	}
}

func TestLoopWiring_Register(t *testing.T) {
	d := newLoopDesign()
	x := d.body.Ports[0]
	w, err := LoopWiring(context.Background(), d.Design, d.loop.ID, []Descriptor{
		{Source: d.in.Buses[0], Target: x, Group: GroupInitial},
		{Source: d.fb.Buses[0], Target: x, Group: GroupFeedback},
	})
	require.NoError(t, err)
	require.Len(t, w.Registers, 1)
	assert.Empty(t, w.Latches)

	/* the register carries the value between iterations */
	rg := d.Op(w.Registers[x])
	assert.Equal(t, lim.KindReg, rg.Kind)
	assert.Equal(t, d.loop.ID, rg.Owner)
	assert.Equal(t, lim.One, d.Exit(rg.Exits[0]).Latency)
	assert.Equal(t, d.fb.ID, d.Entry(rg.Entries[0]).Drive)

	/* feedback entry reads the register, initial entry the loop input */
	fe, ie := d.body.Entries[1], d.body.Entries[0]
	fd := d.DepsOn(fe, x)
	require.Len(t, fd, 1)
	assert.Equal(t, rg.ID, d.BusOwner(d.Dep(fd[0]).Source))
	id := d.DepsOn(ie, x)
	require.Len(t, id, 1)
	assert.Equal(t, d.in.Buses[0], d.Dep(id[0]).Source)
}

func TestLoopWiring_Latch(t *testing.T) {
	d := newLoopDesign()
	x, a := d.body.Ports[0], d.body.Ports[1]
	w, err := LoopWiring(context.Background(), d.Design, d.loop.ID, []Descriptor{
		{Source: d.in.Buses[0], Target: x, Group: GroupInitial},
		{Source: d.in.Buses[1], Target: a, Group: GroupInitial},
		{Source: d.fb.Buses[0], Target: x, Group: GroupFeedback},
		{Source: d.done.Buses[0], Target: d.ob.Ports[0], Group: GroupInitial},
	})
	require.NoError(t, err)
	require.Len(t, w.Registers, 1)
	require.Len(t, w.Latches, 1)
	require.Len(t, w.Outputs, 1)

	/* the latch captures a once, enabled by the loop start */
	la := d.Op(w.Latches[a])
	assert.Equal(t, lim.KindLatch, la.Kind)
	en := d.PortDeps(la.Ports[0])
	require.Len(t, en, 1)
	assert.Equal(t, lim.DepControl, d.Dep(en[0]).Kind)
	assert.Equal(t, d.in.Done, d.Dep(en[0]).Source)

	/* both entries read the latch */
	lb := d.Exit(la.Exits[0]).Buses[0]
	for _, e := range d.body.Entries {
		deps := d.DepsOn(e, a)
		require.Len(t, deps, 1)
		assert.Equal(t, lb, d.Dep(deps[0]).Source)
	}

	/* the final value completes the loop */
	assert.Equal(t, d.done.Buses[0], d.Dep(w.Outputs[0]).Source)
	assert.Equal(t, d.ob.Ports[0], d.Dep(w.Outputs[0]).Target)
}

func TestLoopWiring_Errors(t *testing.T) {
	var se lim.StructureError
	ctx := context.Background()

	/* not coming from any of the loop exits */
	d := newLoopDesign()
	c := d.Op(d.NewConstant(d.loop.ID, "zero", 0))
	_, err := LoopWiring(ctx, d.Design, d.loop.ID, []Descriptor{
		{Source: d.Exit(c.Exits[0]).Buses[0], Target: d.body.Ports[0], Group: GroupInitial},
	})
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Reason, "unknown dependency structure")

	/* fed back twice */
	d = newLoopDesign()
	_, err = LoopWiring(ctx, d.Design, d.loop.ID, []Descriptor{
		{Source: d.in.Buses[0], Target: d.body.Ports[0], Group: GroupInitial},
		{Source: d.fb.Buses[0], Target: d.body.Ports[0], Group: GroupFeedback},
		{Source: d.fb.Buses[1], Target: d.body.Ports[0], Group: GroupFeedback},
	})
	require.ErrorAs(t, err, &se)

	/* fed back without a value to start from */
	d = newLoopDesign()
	_, err = LoopWiring(ctx, d.Design, d.loop.ID, []Descriptor{
		{Source: d.fb.Buses[0], Target: d.body.Ports[0], Group: GroupFeedback},
	})
	require.ErrorAs(t, err, &se)

	/* not a loop */
	_, err = LoopWiring(ctx, d.Design, d.body.ID, nil)
	require.ErrorAs(t, err, &se)
}

func TestLoopWiring_DuplicateInitial(t *testing.T) {
	d := newLoopDesign()
	x := d.body.Ports[0]
	w, err := LoopWiring(context.Background(), d.Design, d.loop.ID, []Descriptor{
		{Source: d.in.Buses[0], Target: x, Group: GroupInitial},
		{Source: d.in.Buses[1], Target: x, Group: GroupInitial},
		{Source: d.fb.Buses[0], Target: x, Group: GroupFeedback},
	})
	require.NoError(t, err)
	require.Len(t, w.Registers, 1)

	/* the last one wins */
	id := d.DepsOn(d.body.Entries[0], x)
	require.Len(t, id, 1)
	assert.Equal(t, d.in.Buses[1], d.Dep(id[0]).Source)
}
