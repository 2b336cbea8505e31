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

import (
    `fmt`
    `strings`
)

// Purpose tags what one parameter or return value is for. Every slot of one
// argument carries the same purpose.
type Purpose uint8

const (
    PurposeNormal Purpose = iota
    PurposeStructArg      // passed through a caller-allocated buffer
    PurposeStructRet      // pointer to the caller-provided return area
    PurposeVMContext      // runtime context pointer threaded through calls
    PurposeStackLimit     // stack-limit value checked in the prologue
)

func (self Purpose) String() string {
    switch self {
        case PurposeNormal     : return "normal"
        case PurposeStructArg  : return "sarg"
        case PurposeStructRet  : return "sret"
        case PurposeVMContext  : return "vmctx"
        case PurposeStackLimit : return "stack_limit"
        default                : panic("ir: invalid argument purpose")
    }
}

// CallConv identifies one calling convention.
type CallConv uint8

const (
    // Fast is the internal convention, modelled after the Go internal ABI
    // register assignment.
    Fast CallConv = iota

    // SystemV is the System V AMD64 psABI.
    SystemV

    // Tail is the tail-call convention: callee pops its own stack arguments
    // so frames can be replaced in place.
    Tail
)

func (self CallConv) Valid() bool {
    return self <= Tail
}

// TailCalleePop reports whether the callee pops its incoming stack arguments
// before returning.
func (self CallConv) TailCalleePop() bool {
    return self == Tail
}

// SupportsTailCalls reports whether a tail call may target this convention.
func (self CallConv) SupportsTailCalls() bool {
    return self == Tail
}

func (self CallConv) String() string {
    switch self {
        case Fast    : return "fast"
        case SystemV : return "system_v"
        case Tail    : return "tail"
        default      : return "???"
    }
}

// Param is one formal parameter or return value.
type Param struct {
    Type       Type
    Ext        Ext
    Purpose    Purpose
    StructSize uint32 // PurposeStructArg only: byte size of the buffer
}

func MkParam(vt Type) Param {
    return Param{Type: vt}
}

func MkStructParam(size uint32) Param {
    return Param{Type: P64, Purpose: PurposeStructArg, StructSize: size}
}

func (self Param) String() string {
    if self.Purpose == PurposeNormal {
        return self.Type.String()
    } else if self.Purpose == PurposeStructArg {
        return fmt.Sprintf("%s[%s:%d]", self.Type, self.Purpose, self.StructSize)
    } else {
        return fmt.Sprintf("%s[%s]", self.Type, self.Purpose)
    }
}

// Signature is a function signature as instruction selection sees it. One
// Signature value may be referenced by many call sites, the interner keys on
// the reference.
type Signature struct {
    Params   []Param
    Rets     []Param
    CallConv CallConv
}

// Clone deep-copies the signature. Interned signatures are shared by
// reference and never mutated, so legalization that needs to alter one must
// start from a copy.
func (self *Signature) Clone() *Signature {
    return &Signature {
        Params   : append([]Param(nil), self.Params...),
        Rets     : append([]Param(nil), self.Rets...),
        CallConv : self.CallConv,
    }
}

func (self *Signature) String() string {
    pp := make([]string, 0, len(self.Params))
    rr := make([]string, 0, len(self.Rets))
    for _, p := range self.Params { pp = append(pp, p.String()) }
    for _, r := range self.Rets   { rr = append(rr, r.String()) }
    return fmt.Sprintf("(%s) -> (%s) [%s]", strings.Join(pp, ", "), strings.Join(rr, ", "), self.CallConv)
}

// StackLimitParam returns the index of the stack-limit parameter, or -1.
func (self *Signature) StackLimitParam() int {
    for i, p := range self.Params {
        if p.Purpose == PurposeStackLimit {
            return i
        }
    }
    return -1
}
