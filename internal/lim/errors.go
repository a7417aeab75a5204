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

// StructureError occures when the graph violates a structural invariant, either
// because the front end produced a malformed graph or because an earlier pass did.
type StructureError struct {
    Node   string
    Owners string
    Reason string
}

func (self StructureError) Error() string {
    if self.Node == "" {
        return fmt.Sprintf("StructureError: %s", self.Reason)
    } else {
        return fmt.Sprintf("StructureError(%s in %s): %s", self.Node, self.Owners, self.Reason)
    }
}

// UnsupportedError occures when an analysis reaches a kind of node it has no
// defined behavior for.
type UnsupportedError struct {
    Node     string
    Kind     Kind
    Owners   string
    Analysis string
}

func (self UnsupportedError) Error() string {
    return fmt.Sprintf("internal error: %s: unexpected traversal of %s %s in %s", self.Analysis, self.Kind, self.Node, self.Owners)
}

func EStructure(d *Design, op OpID, reason string, args ...interface{}) StructureError {
    if op == NoOp {
        return StructureError {
            Reason: fmt.Sprintf(reason, args...),
        }
    } else {
        return StructureError {
            Node   : d.Show(op),
            Owners : d.ShowOwners(op),
            Reason : fmt.Sprintf(reason, args...),
        }
    }
}

func EUnsupported(d *Design, op OpID, analysis string) UnsupportedError {
    return UnsupportedError {
        Node     : d.Show(op),
        Kind     : d.Op(op).Kind,
        Owners   : d.ShowOwners(op),
        Analysis : analysis,
    }
}

func EMissingExit(d *Design, op OpID, tag ExitTag) StructureError {
    return EStructure(d, op, "missing %s exit", tag)
}

func EMissingCorrelation(d *Design, op OpID) StructureError {
    return EStructure(d, op, "no correlated component in the live graph")
}
