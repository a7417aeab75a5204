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
    `gonum.org/v1/gonum/graph/simple`
    `gonum.org/v1/gonum/graph/topo`
)

// ScheduleOrder returns the children of mod in data flow order: every child comes
// after the siblings driving it through a non-feedback entry. Ties keep creation
// order.
func (self *Design) ScheduleOrder(mod OpID) ([]OpID, error) {
    m := self.Op(mod)
    g := simple.NewDirectedGraph()

    /* one node per child */
    for _, c := range m.Children {
        g.AddNode(simple.Node(c))
    }

    /* edges from every driving sibling */
    for _, c := range m.Children {
        for _, e := range self.Op(c).Entries {
            if en := self.Entry(e); !en.Feedback {
                for _, d := range en.Deps {
                    if src := self.BusOwner(self.Dep(d).Source); src != c && self.Op(src).Owner == mod {
                        g.SetEdge(g.NewEdge(simple.Node(src), simple.Node(c)))
                    }
                }
            }
        }
    }

    /* no combinational cycles */
    if _, err := topo.Sort(g); err != nil {
        return nil, EStructure(self, mod, "combinational cycle between children: %v", err)
    }

    /* count the drivers of every child */
    deg := make(map[int64]int, len(m.Children))
    for _, c := range m.Children {
        deg[int64(c)] = g.To(int64(c)).Len()
    }

    /* the first ready child in creation order goes next */
    ret := make([]OpID, 0, len(m.Children))
    for len(ret) < len(m.Children) {
        for _, c := range m.Children {
            if id := int64(c); deg[id] == 0 {
                deg[id] = -1
                ret = append(ret, c)
                for it := g.From(id); it.Next(); {
                    deg[it.Node().ID()]--
                }
                break
            }
        }
    }
    return ret, nil
}
