/*
 * Copyright 2023 CloudWeGo Authors
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

package ir

// Opcode is the call-shaped IR opcode a call site originates from. The ABI
// layer needs it to tell plain calls, indirect calls and tail calls apart.
type Opcode uint8

const (
    OpCall Opcode = iota
    OpCallIndirect
    OpReturnCall
    OpReturnCallIndirect
)

func (self Opcode) IsIndirect() bool {
    return self == OpCallIndirect || self == OpReturnCallIndirect
}

func (self Opcode) IsTailCall() bool {
    return self == OpReturnCall || self == OpReturnCallIndirect
}

func (self Opcode) String() string {
    switch self {
        case OpCall               : return "call"
        case OpCallIndirect       : return "call_indirect"
        case OpReturnCall         : return "return_call"
        case OpReturnCallIndirect : return "return_call_indirect"
        default                   : panic("ir: invalid call opcode")
    }
}

// RelocDistance hints how far a direct call destination may be from the call
// instruction, which decides the relocation kind the target emits.
type RelocDistance uint8

const (
    RelocNear RelocDistance = iota
    RelocFar
)

func (self RelocDistance) String() string {
    if self == RelocNear {
        return "near"
    } else {
        return "far"
    }
}

// SizedSlot is an explicit stack slot declared by the function, with a size
// known at compile time.
type SizedSlot struct {
    Size uint32
}

// DynamicSlot is a stack slot holding one dynamic-length vector; its byte
// size is resolved by the target when the frame is laid out.
type DynamicSlot struct {
    Type Type
}

// Function is the container instruction selection hands to the ABI layer:
// the signature plus the declared stack slots. The body itself never passes
// through this package.
type Function struct {
    Name         string
    Sig          *Signature
    SizedSlots   []SizedSlot
    DynamicSlots []DynamicSlot
}
