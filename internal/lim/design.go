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
    `strings`
)

type (
    OpID    int
    PortID  int
    BusID   int
    ExitID  int
    EntryID int
    DepID   int
    ResID   int
)

const (
    NoOp    OpID    = -1
    NoPort  PortID  = -1
    NoBus   BusID   = -1
    NoExit  ExitID  = -1
    NoEntry EntryID = -1
    NoRes   ResID   = -1
)

// Port is an input terminal.
type Port struct {
    ID    PortID
    Owner OpID
    Name  string
    IsGo  bool
    Peer  BusID     // module ports: the InBuf bus presenting this port inside the module
}

// Bus is an output terminal, owned by an Exit.
type Bus struct {
    ID         BusID
    Exit       ExitID
    Name       string
    IsDone     bool
    Constant   bool
    Peer       PortID   // module buses: the OutBuf port driving this bus
    Dependents []DepID
}

// Exit is one completion path of an Operation.
type Exit struct {
    ID      ExitID
    Owner   OpID
    Tag     ExitTag
    Buses   []BusID
    Done    BusID
    Latency Latency
    Peer    OpID        // module exits: the OutBuf that completes this exit
}

// Entry is one way an Operation can be entered. It owns the dependencies that drive
// the Operation's ports along that path.
type Entry struct {
    ID       EntryID
    Owner    OpID
    Drive    ExitID
    Feedback bool
    Deps     []DepID
}

// Dependency is a typed edge from a Bus to a Port.
type Dependency struct {
    ID        DepID
    Kind      DepKind
    Entry     EntryID
    Source    BusID
    Target    PortID
    MinClocks int
}

// Resource is shared mutable state.
type Resource struct {
    ID            ResID
    Kind          ResourceKind
    Name          string
    ParallelReads bool
    Accesses      []OpID
}

// Stall is one back-pressure source of a module. Process is -1 when the stall
// comes from a single component instead of the start points of a process.
type Stall struct {
    Process    int
    Components []OpID
}

// Operation is a graph node.
type Operation struct {
    ID      OpID
    Kind    Kind
    Name    string
    Owner   OpID
    Go      PortID
    Ports   []PortID
    Exits   []ExitID
    Entries []EntryID

    /* module structure */
    Children []OpID
    InBuf    OpID

    /* branches and loop bodies */
    Decision OpID
    True     OpID
    False    OpID
    Body     OpID
    Update   OpID

    /* loops */
    Control    OpID
    FlopNeeded bool

    /* accesses */
    Resource ResID

    /* constants */
    Value int64

    Stalls []Stall
}

// Task is an externally invocable unit wrapping a Call.
type Task struct {
    ID        int
    Name      string
    Call      OpID
    Balanced  bool
    GoSpacing Spacing
}

// Design is the arena holding a whole scheduling graph. Elements are addressed by
// their index and are never removed.
type Design struct {
    Name      string
    Ops       []*Operation
    Ports     []*Port
    Buses     []*Bus
    Exits     []*Exit
    Entries   []*Entry
    Deps      []*Dependency
    Resources []*Resource
    Tasks     []*Task
    Processes []*Process
}

func NewDesign(name string) *Design {
    return &Design { Name: name }
}

func (self *Design) Op(id OpID) *Operation {
    if id < 0 || int(id) >= len(self.Ops) {
        panic(fmt.Sprintf("lim: invalid operation id: %d", id))
    } else {
        return self.Ops[id]
    }
}

func (self *Design) Port(id PortID) *Port {
    if id < 0 || int(id) >= len(self.Ports) {
        panic(fmt.Sprintf("lim: invalid port id: %d", id))
    } else {
        return self.Ports[id]
    }
}

func (self *Design) Bus(id BusID) *Bus {
    if id < 0 || int(id) >= len(self.Buses) {
        panic(fmt.Sprintf("lim: invalid bus id: %d", id))
    } else {
        return self.Buses[id]
    }
}

func (self *Design) Exit(id ExitID) *Exit {
    if id < 0 || int(id) >= len(self.Exits) {
        panic(fmt.Sprintf("lim: invalid exit id: %d", id))
    } else {
        return self.Exits[id]
    }
}

func (self *Design) Entry(id EntryID) *Entry {
    if id < 0 || int(id) >= len(self.Entries) {
        panic(fmt.Sprintf("lim: invalid entry id: %d", id))
    } else {
        return self.Entries[id]
    }
}

func (self *Design) Dep(id DepID) *Dependency {
    if id < 0 || int(id) >= len(self.Deps) {
        panic(fmt.Sprintf("lim: invalid dependency id: %d", id))
    } else {
        return self.Deps[id]
    }
}

func (self *Design) Resource(id ResID) *Resource {
    if id < 0 || int(id) >= len(self.Resources) {
        panic(fmt.Sprintf("lim: invalid resource id: %d", id))
    } else {
        return self.Resources[id]
    }
}

// BusOwner returns the Operation whose exit carries the bus.
func (self *Design) BusOwner(id BusID) OpID {
    return self.Exit(self.Bus(id).Exit).Owner
}

// ExitOf returns the exit of op with the tag, or NoExit.
func (self *Design) ExitOf(op OpID, tag ExitTag) ExitID {
    for _, x := range self.Op(op).Exits {
        if self.Exit(x).Tag == tag {
            return x
        }
    }
    return NoExit
}

// MainExit returns the DONE exit of op, or its only exit when it has no DONE exit.
func (self *Design) MainExit(op OpID) ExitID {
    if x := self.ExitOf(op, DoneTag); x != NoExit {
        return x
    } else if p := self.Op(op); len(p.Exits) == 1 {
        return p.Exits[0]
    } else {
        return NoExit
    }
}

// DepsOn returns the dependencies of the entry targeting the port.
func (self *Design) DepsOn(entry EntryID, port PortID) []DepID {
    var ret []DepID
    for _, d := range self.Entry(entry).Deps {
        if self.Dep(d).Target == port {
            ret = append(ret, d)
        }
    }
    return ret
}

// PortDeps returns the dependencies targeting the port across every entry of its owner.
func (self *Design) PortDeps(port PortID) []DepID {
    var ret []DepID
    for _, e := range self.Op(self.Port(port).Owner).Entries {
        ret = append(ret, self.DepsOn(e, port)...)
    }
    return ret
}

// AllPorts returns the go port followed by the data ports.
func (self *Design) AllPorts(op OpID) []PortID {
    p := self.Op(op)
    return append([]PortID { p.Go }, p.Ports...)
}

// AllBuses returns every bus of every exit of op, done buses included.
func (self *Design) AllBuses(op OpID) []BusID {
    var ret []BusID
    for _, x := range self.Op(op).Exits {
        e := self.Exit(x)
        ret = append(ret, e.Done)
        ret = append(ret, e.Buses...)
    }
    return ret
}

// IsOwnedBy reports whether op is nested, at any depth, inside mod.
func (self *Design) IsOwnedBy(op OpID, mod OpID) bool {
    for p := self.Op(op).Owner; p != NoOp; p = self.Op(p).Owner {
        if p == mod {
            return true
        }
    }
    return false
}

// Owners returns the owner chain of op, innermost first.
func (self *Design) Owners(op OpID) []OpID {
    var ret []OpID
    for p := self.Op(op).Owner; p != NoOp; p = self.Op(p).Owner {
        ret = append(ret, p)
    }
    return ret
}

// IsIterative reports whether the loop restarts its body through the feedback exit.
func (self *Design) IsIterative(loop OpID) bool {
    lp := self.Op(loop)
    if lp.Kind != KindLoop || lp.Body == NoOp {
        return false
    }

    /* the feedback exit must complete into something */
    fb := self.ExitOf(lp.Body, FeedbackTag)
    if fb == NoExit || self.Exit(fb).Peer == NoOp {
        return false
    }
    for _, e := range self.Op(self.Exit(fb).Peer).Entries {
        if len(self.Entry(e).Deps) != 0 {
            return true
        }
    }
    return false
}

// Show formats op as "name(kind)#id".
func (self *Design) Show(op OpID) string {
    if op == NoOp {
        return "<none>"
    }
    p := self.Op(op)
    return fmt.Sprintf("%s(%s)#%d", p.Name, p.Kind, p.ID)
}

// ShowOwners formats the owner chain of op.
func (self *Design) ShowOwners(op OpID) string {
    var buf []string
    for _, p := range self.Owners(op) {
        buf = append(buf, self.Show(p))
    }
    if len(buf) == 0 {
        return "<top>"
    } else {
        return strings.Join(buf, " <- ")
    }
}

func (self *Design) String() string {
    return fmt.Sprintf("design %q: %d ops, %d deps, %d resources, %d tasks",
        self.Name,
        len(self.Ops),
        len(self.Deps),
        len(self.Resources),
        len(self.Tasks),
    )
}
