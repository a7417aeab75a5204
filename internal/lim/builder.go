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
)

func (self *Design) addOp(kind Kind, owner OpID, name string) *Operation {
    p := &Operation {
        ID       : OpID(len(self.Ops)),
        Kind     : kind,
        Name     : name,
        Owner    : owner,
        InBuf    : NoOp,
        Decision : NoOp,
        True     : NoOp,
        False    : NoOp,
        Body     : NoOp,
        Update   : NoOp,
        Control  : NoOp,
        Resource : NoRes,
    }

    /* every operation has a GO port */
    self.Ops = append(self.Ops, p)
    p.Go = self.addPort(p.ID, "go", true)

    /* link into the owner */
    if owner != NoOp {
        m := self.Op(owner)
        m.Children = append(m.Children, p.ID)
    }
    return p
}

func (self *Design) addPort(op OpID, name string, isGo bool) PortID {
    id := PortID(len(self.Ports))
    self.Ports = append(self.Ports, &Port {
        ID    : id,
        Owner : op,
        Name  : name,
        IsGo  : isGo,
        Peer  : NoBus,
    })
    return id
}

func (self *Design) addPorts(op OpID, n int) {
    p := self.Op(op)
    for i := 0; i < n; i++ {
        p.Ports = append(p.Ports, self.addPort(op, fmt.Sprintf("d%d", i), false))
    }
}

func (self *Design) addBus(exit ExitID, name string, done bool) BusID {
    id := BusID(len(self.Buses))
    self.Buses = append(self.Buses, &Bus {
        ID     : id,
        Exit   : exit,
        Name   : name,
        IsDone : done,
        Peer   : NoPort,
    })
    return id
}

// AddExit adds an exit with a done bus and nbus data buses to op.
func (self *Design) AddExit(op OpID, tag ExitTag, lat Latency, nbus int) ExitID {
    id := ExitID(len(self.Exits))
    ex := &Exit {
        ID      : id,
        Owner   : op,
        Tag     : tag,
        Latency : lat,
        Peer    : NoOp,
    }

    /* add the exit before its buses so they can refer to it */
    self.Exits = append(self.Exits, ex)
    ex.Done = self.addBus(id, tag.String() + ".done", true)

    /* data buses */
    for i := 0; i < nbus; i++ {
        ex.Buses = append(ex.Buses, self.addBus(id, fmt.Sprintf("%s.q%d", tag, i), false))
    }

    /* link into the owner */
    p := self.Op(op)
    p.Exits = append(p.Exits, id)
    return id
}

// AddEntry adds an entry to op, enabled by the completion of drive.
func (self *Design) AddEntry(op OpID, drive ExitID) EntryID {
    id := EntryID(len(self.Entries))
    self.Entries = append(self.Entries, &Entry {
        ID    : id,
        Owner : op,
        Drive : drive,
    })
    p := self.Op(op)
    p.Entries = append(p.Entries, id)
    return id
}

// AddDependency appends a dependency from src to dst into the entry.
func (self *Design) AddDependency(entry EntryID, kind DepKind, src BusID, dst PortID, clocks int) DepID {
    e := self.Entry(entry)
    id := DepID(len(self.Deps))

    /* the entry must belong to the target */
    if self.Port(dst).Owner != e.Owner {
        panic(fmt.Sprintf("lim: dependency target %d is not a port of %s", dst, self.Show(e.Owner)))
    }

    /* resource dependencies are the only ones carrying a delay */
    if clocks < 0 || (clocks != 0 && kind != DepResource) {
        panic(fmt.Sprintf("lim: invalid %s dependency delay: %d", kind, clocks))
    }

    /* add to the entry and to the bus */
    self.Deps = append(self.Deps, &Dependency {
        ID        : id,
        Kind      : kind,
        Entry     : entry,
        Source    : src,
        Target    : dst,
        MinClocks : clocks,
    })
    e.Deps = append(e.Deps, id)
    b := self.Bus(src)
    b.Dependents = append(b.Dependents, id)
    return id
}

// Connect adds a Control dependency when dst is a GO port and a Data dependency
// otherwise.
func (self *Design) Connect(entry EntryID, src BusID, dst PortID) DepID {
    if self.Port(dst).IsGo {
        return self.AddDependency(entry, DepControl, src, dst, 0)
    } else {
        return self.AddDependency(entry, DepData, src, dst, 0)
    }
}

// ConnectResource adds a resource dependency enforcing at least clocks cycles
// between src and dst.
func (self *Design) ConnectResource(entry EntryID, src BusID, dst PortID, clocks int) DepID {
    return self.AddDependency(entry, DepResource, src, dst, clocks)
}

// Relocate moves the source of a dependency to another bus.
func (self *Design) Relocate(dep DepID, src BusID) {
    d := self.Dep(dep)
    old := self.Bus(d.Source)

    /* remove from the old dependents */
    keep := old.Dependents[:0]
    for _, v := range old.Dependents {
        if v != dep {
            keep = append(keep, v)
        }
    }

    /* add to the new bus */
    old.Dependents = keep
    d.Source = src
    b := self.Bus(src)
    b.Dependents = append(b.Dependents, dep)
}

// SetLatency replaces the latency of the main exit of op.
func (self *Design) SetLatency(op OpID, lat Latency) {
    if x := self.MainExit(op); x == NoExit {
        panic("lim: no main exit on " + self.Show(op))
    } else {
        self.Exit(x).Latency = lat
    }
}

// NewPrimitive creates an operation with nin data ports and a single DONE exit
// carrying nout buses.
func (self *Design) NewPrimitive(kind Kind, owner OpID, name string, nin int, nout int, lat Latency) OpID {
    if kind.IsModule() {
        panic("lim: not a primitive kind: " + kind.String())
    }
    p := self.addOp(kind, owner, name)
    self.addPorts(p.ID, nin)
    self.AddEntry(p.ID, NoExit)
    self.AddExit(p.ID, DoneTag, lat, nout)
    return p.ID
}

// NewConstant creates a constant with one combinational output.
func (self *Design) NewConstant(owner OpID, name string, value int64) OpID {
    id := self.NewPrimitive(KindConstant, owner, name, 0, 1, Zero)
    op := self.Op(id)
    op.Value = value
    self.Bus(self.Exit(op.Exits[0]).Buses[0]).Constant = true
    return id
}

// NewResource declares a piece of shared state.
func (self *Design) NewResource(kind ResourceKind, name string, parallelReads bool) ResID {
    id := ResID(len(self.Resources))
    self.Resources = append(self.Resources, &Resource {
        ID            : id,
        Kind          : kind,
        Name          : name,
        ParallelReads : parallelReads,
    })
    return id
}

// NewAccess creates a read or write of res. Memory accesses take an address port,
// writes take a value port, and reads produce one result bus.
func (self *Design) NewAccess(kind Kind, owner OpID, name string, res ResID, lat Latency) OpID {
    r := self.Resource(res)
    rd, wr := r.Kind.AccessKinds()

    /* check for access kind */
    if kind != rd && kind != wr {
        panic(fmt.Sprintf("lim: %s cannot access %s %q", kind, r.Kind, r.Name))
    }

    /* memories have an address port */
    nin, nout := 0, 0
    if r.Kind == Memory {
        nin++
    }

    /* writes take the value, reads produce it */
    if kind.IsRead() {
        nout++
    } else {
        nin++
    }

    /* create the access */
    id := self.NewPrimitive(kind, owner, name, nin, nout, lat)
    self.Op(id).Resource = res
    r.Accesses = append(r.Accesses, id)
    return id
}

func (self *Design) newModule(kind Kind, owner OpID, name string, nin int) *Operation {
    p := self.addOp(kind, owner, name)
    self.addPorts(p.ID, nin)
    self.AddEntry(p.ID, NoExit)

    /* the InBuf presents the module ports inside the module */
    ib := self.addOp(KindInBuf, p.ID, name + ".inbuf")
    ix := self.AddExit(ib.ID, DoneTag, Zero, nin)
    self.AddEntry(ib.ID, NoExit)

    /* link the peers */
    ex := self.Exit(ix)
    p.InBuf = ib.ID
    self.Port(p.Go).Peer = ex.Done
    self.Bus(ex.Done).Peer = p.Go

    /* data ports */
    for i, v := range p.Ports {
        self.Port(v).Peer = ex.Buses[i]
        self.Bus(ex.Buses[i]).Peer = v
    }
    return p
}

// AddModuleExit adds an exit to a module together with the OutBuf completing it.
func (self *Design) AddModuleExit(mod OpID, tag ExitTag, lat Latency, nbus int) ExitID {
    x := self.AddExit(mod, tag, lat, nbus)
    ex := self.Exit(x)
    ob := self.addOp(KindOutBuf, mod, self.Op(mod).Name + ".outbuf." + tag.String())

    /* the OutBuf ports drive the exit buses */
    self.addPorts(ob.ID, nbus)
    self.AddEntry(ob.ID, NoExit)
    self.Port(ob.Go).Peer = ex.Done
    self.Bus(ex.Done).Peer = ob.Go

    /* data ports */
    for i, v := range ob.Ports {
        self.Port(v).Peer = ex.Buses[i]
        self.Bus(ex.Buses[i]).Peer = v
    }

    ex.Peer = ob.ID
    return x
}

// NewModule creates a module of the given kind with nin data ports and a DONE
// exit carrying nout buses. The contents are left to the caller.
func (self *Design) NewModule(kind Kind, owner OpID, name string, nin int, nout int, lat Latency) OpID {
    if !kind.IsModule() {
        panic("lim: not a module kind: " + kind.String())
    }
    p := self.newModule(kind, owner, name, nin)
    self.AddModuleExit(p.ID, DoneTag, lat, nout)
    return p.ID
}

// NewBlock creates an empty sequential block.
func (self *Design) NewBlock(owner OpID, name string, nin int, nout int, lat Latency) OpID {
    return self.NewModule(KindBlock, owner, name, nin, nout, lat)
}

// InBufExit returns the single exit of the module's InBuf.
func (self *Design) InBufExit(mod OpID) *Exit {
    return self.Exit(self.Op(self.Op(mod).InBuf).Exits[0])
}

// OutBuf returns the OutBuf completing the exit of mod with the tag.
func (self *Design) OutBuf(mod OpID, tag ExitTag) OpID {
    if x := self.ExitOf(mod, tag); x == NoExit {
        return NoOp
    } else {
        return self.Exit(x).Peer
    }
}

// Start wires the GO of op to the bus with a Control dependency in its first entry.
func (self *Design) Start(op OpID, src BusID) DepID {
    p := self.Op(op)
    return self.AddDependency(p.Entries[0], DepControl, src, p.Go, 0)
}

// Finish wires the done bus of op into the OutBuf completing the exit of mod with
// the tag.
func (self *Design) Finish(mod OpID, tag ExitTag, op OpID) DepID {
    ob := self.Op(self.OutBuf(mod, tag))
    return self.AddDependency(ob.Entries[0], DepControl, self.Exit(self.MainExit(op)).Done, ob.Go, 0)
}

func (self *Design) newDecision(owner OpID, name string) OpID {
    p := self.newModule(KindDecision, owner, name, 1)
    self.AddModuleExit(p.ID, TrueTag, Zero, 0)
    self.AddModuleExit(p.ID, FalseTag, Zero, 0)
    self.Finish(p.ID, TrueTag, p.InBuf)
    self.Finish(p.ID, FalseTag, p.InBuf)
    return p.ID
}

// NewBranch creates a branch with a decision and two empty sides. Both sides take
// the data inputs of the branch and produce its outputs.
func (self *Design) NewBranch(owner OpID, name string, nin int, nout int, lat Latency) OpID {
    br := self.newModule(KindBranch, owner, name, nin)
    ix := self.InBufExit(br.ID)
    bx := self.AddModuleExit(br.ID, DoneTag, lat, nout)

    /* decision first */
    br.Decision = self.newDecision(br.ID, name + ".decision")
    self.Start(br.Decision, ix.Done)

    /* both sides */
    br.True = self.NewBlock(br.ID, name + ".true", nin, nout, Zero)
    br.False = self.NewBlock(br.ID, name + ".false", nin, nout, Zero)

    /* each side is entered by its decision exit */
    for _, v := range [...]struct { side OpID; tag ExitTag } {{ br.True, TrueTag }, { br.False, FalseTag }} {
        sp := self.Op(v.side)
        dx := self.Exit(self.ExitOf(br.Decision, v.tag))
        self.Start(v.side, dx.Done)
        for i, p := range sp.Ports {
            self.Connect(sp.Entries[0], ix.Buses[i], p)
        }
    }

    /* the OutBuf has one entry per side */
    ob := self.Op(self.Exit(bx).Peer)
    self.Entry(ob.Entries[0]).Drive = self.MainExit(br.True)
    self.AddEntry(ob.ID, self.MainExit(br.False))
    for i, side := range [...]OpID { br.True, br.False } {
        sx := self.Exit(self.MainExit(side))
        self.AddDependency(ob.Entries[i], DepControl, sx.Done, ob.Go, 0)
        for j, p := range ob.Ports {
            self.Connect(ob.Entries[i], sx.Buses[j], p)
        }
    }
    return br.ID
}

// NewLoop creates an iterative loop with nin loop carried values and nout results.
// The loop body is a WhileBody made of a decision and a body block; the body
// completes through its feedback exit and the decision's false exit completes the
// loop. The flop between iterations starts out as required.
func (self *Design) NewLoop(owner OpID, name string, nin int, nout int, lat Latency) OpID {
    lp := self.newModule(KindLoop, owner, name, nin)
    lx := self.InBufExit(lp.ID)
    self.AddModuleExit(lp.ID, DoneTag, lat, nout)

    /* the loop body and its exits */
    bd := self.newModule(KindWhileBody, lp.ID, name + ".body", nin)
    bx := self.InBufExit(bd.ID)
    fb := self.AddModuleExit(bd.ID, FeedbackTag, Zero, nin)
    self.AddModuleExit(bd.ID, DoneTag, Zero, nout)

    /* the feedback entry is enabled by the feedback exit */
    fe := self.AddEntry(bd.ID, fb)
    self.Entry(fe).Feedback = true
    self.Entry(bd.Entries[0]).Drive = self.Op(lp.InBuf).Exits[0]

    /* decision, then the block */
    bd.Decision = self.newDecision(bd.ID, name + ".decision")
    bd.Body = self.NewBlock(bd.ID, name + ".block", nin, nin, Zero)
    self.Start(bd.Decision, bx.Done)
    self.Start(bd.Body, self.Exit(self.ExitOf(bd.Decision, TrueTag)).Done)

    /* block inputs come from the body inputs */
    bp := self.Op(bd.Body)
    for i, p := range bp.Ports {
        self.Connect(bp.Entries[0], bx.Buses[i], p)
    }

    /* block outputs are the feedback values */
    fo := self.Op(self.Exit(fb).Peer)
    self.Finish(bd.ID, FeedbackTag, bd.Body)
    for i, p := range fo.Ports {
        self.Connect(fo.Entries[0], self.Exit(self.MainExit(bd.Body)).Buses[i], p)
    }

    /* the false exit of the decision completes the loop */
    co := self.Op(self.OutBuf(bd.ID, DoneTag))
    self.AddDependency(co.Entries[0], DepControl, self.Exit(self.ExitOf(bd.Decision, FalseTag)).Done, co.Go, 0)

    /* the loop starts the body, and the control flop restarts it */
    lp.Body = bd.ID
    lp.FlopNeeded = true
    self.Start(bd.ID, lx.Done)
    lp.Control = self.NewPrimitive(KindReg, lp.ID, name + ".control", 1, 1, One)
    cr := self.Op(lp.Control)
    self.Entry(cr.Entries[0]).Drive = fb
    self.Connect(cr.Entries[0], self.Exit(fb).Done, cr.Ports[0])
    self.AddDependency(fe, DepControl, self.Exit(cr.Exits[0]).Buses[0], bd.Go, 0)

    /* body completion completes the loop */
    self.Finish(lp.ID, DoneTag, bd.ID)
    return lp.ID
}

// NewTask creates a task whose call runs a procedure body block.
func (self *Design) NewTask(name string, nin int, nout int, lat Latency, balanced bool) *Task {
    call := self.NewModule(KindCall, NoOp, name, nin, nout, lat)
    cp := self.Op(call)
    cx := self.InBufExit(call)

    /* the procedure body */
    cp.Body = self.NewBlock(call, name + ".body", nin, nout, lat)
    bp := self.Op(cp.Body)
    self.Start(cp.Body, cx.Done)
    for i, p := range bp.Ports {
        self.Connect(bp.Entries[0], cx.Buses[i], p)
    }

    /* body outputs are the call outputs */
    ob := self.Op(self.OutBuf(call, DoneTag))
    self.Finish(call, DoneTag, cp.Body)
    for i, p := range ob.Ports {
        self.Connect(ob.Entries[0], self.Exit(self.MainExit(cp.Body)).Buses[i], p)
    }

    /* register the task */
    tk := &Task {
        ID       : len(self.Tasks),
        Name     : name,
        Call     : call,
        Balanced : balanced,
    }
    self.Tasks = append(self.Tasks, tk)
    return tk
}

// NewTaskCall creates a call of another task from inside owner.
func (self *Design) NewTaskCall(owner OpID, name string, task *Task) OpID {
    cp := self.Op(task.Call)
    cx := self.Exit(self.MainExit(task.Call))
    id := self.NewModule(KindTaskCall, owner, name, len(cp.Ports), len(cx.Buses), cx.Latency)
    self.Op(id).Body = cp.Body
    return id
}
