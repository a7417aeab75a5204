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

    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

type processDesign struct {
    *Design
    body OpID
    br   *Operation
    res  ResID
    rt   OpID
    rf   OpID
    wr   OpID
}

func newProcessDesign() *processDesign {
    d := NewDesign("process")
    tk := d.NewTask("task", 1, 0, Fixed(4), true)
    body := d.Op(tk.Call).Body
    res := d.NewResource(Memory, "mem", false)
    br := d.Op(d.NewBranch(body, "br", 1, 0, Zero))
    return &processDesign {
        Design : d,
        body   : body,
        br     : br,
        res    : res,
        rt     : d.NewAccess(KindMemoryRead, br.True, "rt", res, Fixed(1)),
        rf     : d.NewAccess(KindMemoryRead, br.False, "rf", res, Fixed(1)),
        wr     : d.NewAccess(KindMemoryWrite, body, "wr", res, Fixed(1)),
    }
}

func TestProcess_Context(t *testing.T) {
    d := newProcessDesign()
    ctx, err := d.ProcessContext([]OpID { d.rt, d.rf })
    require.NoError(t, err)
    assert.Equal(t, d.body, ctx)
    ctx, err = d.ProcessContext([]OpID { d.rt })
    require.NoError(t, err)
    assert.Equal(t, d.br.True, ctx)
    _, err = d.ProcessContext(nil)
    assert.Error(t, err)
}

func TestProcess_Point(t *testing.T) {
    d := newProcessDesign()
    pt, err := d.NewProcessPoint([]OpID { d.rf, d.rt }, d.body)
    require.NoError(t, err)
    assert.Equal(t, d.br.ID, pt.Critical)
    assert.Equal(t, []OpID { d.rt, d.rf }, pt.Candidates)

    /* candidates must share their critical context */
    _, err = d.NewProcessPoint([]OpID { d.rt, d.wr }, d.body)
    var se StructureError
    require.ErrorAs(t, err, &se)
}

func TestProcess_New(t *testing.T) {
    d := newProcessDesign()
    ps, err := d.NewProcess(d.res, []OpID { d.rt, d.rf }, []OpID { d.wr })
    require.NoError(t, err)
    require.Len(t, d.Processes, 1)
    assert.Equal(t, 0, ps.ID)
    assert.Equal(t, d.body, ps.Context)
    require.Len(t, ps.StartPoints, 1)
    assert.True(t, ps.IsStartPoint(d.br.ID))
    assert.False(t, ps.IsStartPoint(d.rt))
    assert.True(t, ps.IsEndPoint(d.wr))
    assert.Equal(t, []OpID { d.br.ID }, ps.StallPoints())

    /* stall signals are kept once */
    ps.AddStallSignal(d.wr)
    ps.AddStallSignal(d.wr)
    assert.Equal(t, []OpID { d.wr }, ps.StartPoints[0].StallSignals)
}
