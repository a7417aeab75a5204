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

package debug

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/hlsched/internal/lim"
)

func newDesign() (*lim.Design, lim.OpID, lim.OpID, lim.OpID) {
	d := lim.NewDesign("debug")
	tk := d.NewTask("task", 0, 0, lim.Fixed(4), true)
	blk := d.Op(tk.Call).Body
	mem := d.NewResource(lim.Memory, "mem", false)
	wr := d.NewAccess(lim.KindMemoryWrite, blk, "wr", mem, lim.One)
	rd := d.NewAccess(lim.KindMemoryRead, blk, "rd", mem, lim.One)
	d.Start(wr, d.InBufExit(blk).Done)
	d.Start(rd, d.InBufExit(blk).Done)
	d.ConnectResource(d.Op(rd).Entries[0], d.Exit(d.MainExit(wr)).Done, d.Op(rd).Go, 1)
	return d, tk.Call, wr, rd
}

func TestGetStats(t *testing.T) {
	d, _, _, _ := newDesign()
	st := GetStats(d)
	assert.Equal(t, 2, st.Modules)
	assert.Equal(t, 2, st.Accesses)
	assert.Equal(t, 4, st.Primitives)
	assert.Equal(t, DepStats{Control: 4, Resource: 1}, st.Deps)
	assert.Zero(t, st.Processes)
	assert.Zero(t, st.Stalled)
}

func TestDump(t *testing.T) {
	d, _, _, _ := newDesign()
	s := Dump(d)
	assert.Contains(t, s, `Name: (string) (len=2) "rd"`)
	assert.NotContains(t, s, "0xc0")
	assert.NotContains(t, s, "8 ops")
	assert.Contains(t, s, "Ops: ([]*lim.Operation) (len=8)")
}

func TestWriteDot(t *testing.T) {
	d, call, wr, rd := newDesign()
	buf := new(bytes.Buffer)
	require.NoError(t, WriteDot(buf, d, call))
	s := buf.String()
	assert.Contains(t, s, "digraph LIM {")
	assert.Contains(t, s, fmt.Sprintf(`subgraph cluster_%d`, call))
	assert.Contains(t, s, fmt.Sprintf(`op_%d -> op_%d [ label = "1" color = "red" ]`, wr, rd))
	assert.Contains(t, s, "memory_read")
}
