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
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/oleiade/lane"

	"github.com/cloudwego/hlsched/internal/lim"
)

// A Stats records statistics about a scheduling graph.
type Stats struct {
	Modules    int
	Primitives int
	Accesses   int
	Deps       DepStats
	Processes  int
	Stalled    int
}

// A DepStats records how many dependencies of every kind a graph has.
type DepStats struct {
	Data     int
	Control  int
	Resource int
}

// GetStats returns statistics of the design.
func GetStats(d *lim.Design) Stats {
	ret := Stats{Processes: len(d.Processes)}
	for _, p := range d.Ops {
		switch {
		case p.Kind.IsModule():
			ret.Modules++
		case p.Kind.IsAccess():
			ret.Accesses++
		default:
			ret.Primitives++
		}
		if len(p.Stalls) != 0 {
			ret.Stalled++
		}
	}
	for _, v := range d.Deps {
		switch v.Kind {
		case lim.DepData:
			ret.Deps.Data++
		case lim.DepControl:
			ret.Deps.Control++
		case lim.DepResource:
			ret.Deps.Resource++
		}
	}
	return ret
}

var config = spew.ConfigState{
	Indent:                  "    ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
}

// Dump returns a readable dump of the whole arena.
func Dump(d *lim.Design) string {
	return config.Sdump(d)
}

func dotNode(d *lim.Design, op lim.OpID) string {
	p := d.Op(op)
	buf := []string{fmt.Sprintf("%s<br/>%s", p.Name, p.Kind)}
	for _, x := range p.Exits {
		ex := d.Exit(x)
		buf = append(buf, fmt.Sprintf("%s %s", ex.Tag, ex.Latency))
	}
	if p.Kind == lim.KindLoop && !p.FlopNeeded {
		buf = append(buf, "no flop")
	}
	if len(p.Stalls) != 0 {
		buf = append(buf, fmt.Sprintf("%d stalls", len(p.Stalls)))
	}
	return strings.Join(buf, "<br/>")
}

// WriteDot renders root and everything nested in it as a Graphviz graph. Modules
// are clusters and every dependency is an edge.
func WriteDot(w io.Writer, d *lim.Design, root lim.OpID) error {
	q := lane.NewQueue()
	n := make(map[lim.OpID]bool)
	buf := []string{
		"digraph LIM {",
		`    graph [ fontname = "Fira Code" compound = "true" ]`,
		`    node [ fontname = "Fira Code" fontsize = "12" shape = "box" ]`,
		`    edge [ fontname = "Fira Code" fontsize = "10" ]`,
	}

	/* nodes, one cluster per module */
	for q.Enqueue(root); !q.Empty(); {
		op := q.Dequeue().(lim.OpID)
		p := d.Op(op)
		n[op] = true
		buf = append(buf, fmt.Sprintf(`    op_%d [ label = < %s > ]`, op, dotNode(d, op)))
		if len(p.Children) != 0 {
			buf = append(buf, fmt.Sprintf(`    subgraph cluster_%d { label = "%s"`, op, p.Name))
			for _, c := range p.Children {
				buf = append(buf, fmt.Sprintf(`        op_%d`, c))
			}
			buf = append(buf, "    }")
		}
		for _, c := range p.Children {
			if !n[c] {
				q.Enqueue(c)
			}
		}
	}

	/* edges between rendered nodes */
	for _, v := range d.Deps {
		src := d.BusOwner(v.Source)
		dst := d.Port(v.Target).Owner
		if !n[src] || !n[dst] {
			continue
		}
		switch v.Kind {
		case lim.DepControl:
			buf = append(buf, fmt.Sprintf(`    op_%d -> op_%d [ style = "dashed" ]`, src, dst))
		case lim.DepResource:
			buf = append(buf, fmt.Sprintf(`    op_%d -> op_%d [ label = "%d" color = "red" ]`, src, dst, v.MinClocks))
		default:
			buf = append(buf, fmt.Sprintf(`    op_%d -> op_%d`, src, dst))
		}
	}

	buf = append(buf, "}")
	_, err := io.WriteString(w, strings.Join(buf, "\n")+"\n")
	return err
}
