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

// Kind is the tag of an Operation. Every analysis switches on it.
type Kind uint8

const (
    KindInvalid Kind = iota

    /* modules */
    KindBlock
    KindBranch
    KindDecision
    KindLoop
    KindWhileBody
    KindUntilBody
    KindForBody
    KindCall
    KindTaskCall

    /* primitives */
    KindInBuf
    KindOutBuf
    KindConstant
    KindOp
    KindMux
    KindLatch
    KindReg
    KindNoOp

    /* resource accesses */
    KindMemoryRead
    KindMemoryWrite
    KindRegisterRead
    KindRegisterWrite
    KindFifoRead
    KindFifoWrite
    KindPinRead
    KindPinWrite

    /* hardware primitives produced by later phases */
    KindScoreboard
    KindKicker
    KindReferee
    KindGateway
    KindMemoryBank
    KindTriBuf
    KindIPCoreCall
)

var _KindNames = [...]string {
    KindInvalid       : "invalid",
    KindBlock         : "block",
    KindBranch        : "branch",
    KindDecision      : "decision",
    KindLoop          : "loop",
    KindWhileBody     : "while_body",
    KindUntilBody     : "until_body",
    KindForBody       : "for_body",
    KindCall          : "call",
    KindTaskCall      : "task_call",
    KindInBuf         : "inbuf",
    KindOutBuf        : "outbuf",
    KindConstant      : "constant",
    KindOp            : "op",
    KindMux           : "mux",
    KindLatch         : "latch",
    KindReg           : "reg",
    KindNoOp          : "noop",
    KindMemoryRead    : "memory_read",
    KindMemoryWrite   : "memory_write",
    KindRegisterRead  : "register_read",
    KindRegisterWrite : "register_write",
    KindFifoRead      : "fifo_read",
    KindFifoWrite     : "fifo_write",
    KindPinRead       : "pin_read",
    KindPinWrite      : "pin_write",
    KindScoreboard    : "scoreboard",
    KindKicker        : "kicker",
    KindReferee       : "referee",
    KindGateway       : "gateway",
    KindMemoryBank    : "memory_bank",
    KindTriBuf        : "tribuf",
    KindIPCoreCall    : "ipcore_call",
}

func (self Kind) String() string {
    if int(self) < len(_KindNames) && _KindNames[self] != "" {
        return _KindNames[self]
    } else {
        return fmt.Sprintf("kind(%d)", self)
    }
}

// IsModule reports whether operations of this kind own a nested sub-graph.
func (self Kind) IsModule() bool {
    return self >= KindBlock && self <= KindTaskCall
}

func (self Kind) IsLoopBody() bool {
    return self == KindWhileBody || self == KindUntilBody || self == KindForBody
}

// IsAccess reports whether operations of this kind reference a Resource.
func (self Kind) IsAccess() bool {
    return self >= KindMemoryRead && self <= KindPinWrite
}

func (self Kind) IsRead() bool {
    switch self {
        case KindMemoryRead, KindRegisterRead, KindFifoRead, KindPinRead : return true
        default                                                          : return false
    }
}

func (self Kind) IsWrite() bool {
    return self.IsAccess() && !self.IsRead()
}

// IsHardware reports the primitives that only appear after the scheduling phase.
func (self Kind) IsHardware() bool {
    return self >= KindScoreboard && self <= KindIPCoreCall
}

// ResourceKind classifies shared state.
type ResourceKind uint8

const (
    Memory ResourceKind = iota
    Register
    Pin
    Fifo
)

func (self ResourceKind) String() string {
    switch self {
        case Memory   : return "memory"
        case Register : return "register"
        case Pin      : return "pin"
        case Fifo     : return "fifo"
        default       : return fmt.Sprintf("resource(%d)", self)
    }
}

// AccessKinds returns the read and write kinds used to access a resource of this kind.
func (self ResourceKind) AccessKinds() (Kind, Kind) {
    switch self {
        case Memory   : return KindMemoryRead, KindMemoryWrite
        case Register : return KindRegisterRead, KindRegisterWrite
        case Pin      : return KindPinRead, KindPinWrite
        case Fifo     : return KindFifoRead, KindFifoWrite
        default       : panic("lim: invalid resource kind: " + self.String())
    }
}

// DepKind is the tag of a Dependency.
type DepKind uint8

const (
    DepData DepKind = iota
    DepControl
    DepResource
)

func (self DepKind) String() string {
    switch self {
        case DepData     : return "data"
        case DepControl  : return "control"
        case DepResource : return "resource"
        default          : return fmt.Sprintf("dep(%d)", self)
    }
}

// ExitType is the completion class of an Exit.
type ExitType uint8

const (
    ExitDone ExitType = iota
    ExitReturn
    ExitException
    ExitSideband
)

func (self ExitType) String() string {
    switch self {
        case ExitDone      : return "done"
        case ExitReturn    : return "return"
        case ExitException : return "exception"
        case ExitSideband  : return "sideband"
        default            : return fmt.Sprintf("exit(%d)", self)
    }
}

// ExitTag names one completion path of an Operation.
type ExitTag struct {
    Type  ExitType
    Label string
}

var (
    DoneTag     = ExitTag { Type: ExitDone }
    FeedbackTag = ExitTag { Type: ExitDone, Label: "#feedback#" }
    TrueTag     = ExitTag { Type: ExitDone, Label: "true" }
    FalseTag    = ExitTag { Type: ExitDone, Label: "false" }
)

func (self ExitTag) String() string {
    if self.Label == "" {
        return self.Type.String()
    } else {
        return self.Type.String() + ":" + self.Label
    }
}
