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

package abi

import (
    `fmt`
    `strings`

    `github.com/cloudwego/abigen/internal/ir`
    `github.com/cloudwego/abigen/internal/reg`
)

type ArgSlotKind uint8

const (
    SlotReg ArgSlotKind = iota
    SlotStack
)

// ArgSlot is one register-sized part of an argument or return value: either
// a real register or an offset into the arg/ret stack space. Immutable once
// created.
type ArgSlot struct {
    Kind   ArgSlotKind
    Reg    reg.RealReg // SlotReg only
    Offset int32       // SlotStack only
    Type   ir.Type
    Ext    ir.Ext
}

func MkRegSlot(r reg.RealReg, vt ir.Type, ext ir.Ext) ArgSlot {
    return ArgSlot {
        Kind : SlotReg,
        Reg  : r,
        Type : vt,
        Ext  : ext,
    }
}

func MkStackSlot(offset int32, vt ir.Type, ext ir.Ext) ArgSlot {
    return ArgSlot {
        Kind   : SlotStack,
        Offset : offset,
        Type   : vt,
        Ext    : ext,
    }
}

func (self ArgSlot) String() string {
    if self.Kind == SlotReg {
        return fmt.Sprintf("%s:%s", self.Reg, self.Type)
    } else {
        return fmt.Sprintf("%d(sp):%s", self.Offset, self.Type)
    }
}

type ArgKind uint8

const (
    // ArgSlots is a value split across one or more register-sized slots.
    ArgSlots ArgKind = iota

    // ArgStruct is a value passed through an implicit caller-allocated
    // buffer; the IR-level value is the pointer to that buffer.
    ArgStruct

    // ArgImplicitPtr is like ArgStruct except the IR-level value has the
    // pointee's own type and is loaded through the pointer during argument
    // setup.
    ArgImplicitPtr
)

// Arg is the assigned location of one formal argument or return value. A
// struct-style Arg never mixes with slot parts.
type Arg struct {
    Kind    ArgKind
    Purpose ir.Purpose
    Slots   []ArgSlot // ArgSlots only
    Pointer *ArgSlot  // optional pointer slot for ArgStruct/ArgImplicitPtr
    Offset  int32     // buffer offset inside the arg space
    Size    uint32    // buffer size in bytes
    Type    ir.Type   // ArgImplicitPtr only: the pointee type
}

func MkSlotsArg(purpose ir.Purpose, slots ...ArgSlot) Arg {
    if len(slots) == 0 {
        panic("abi: slots argument must have at least one slot")
    }
    return Arg {
        Kind    : ArgSlots,
        Purpose : purpose,
        Slots   : slots,
    }
}

func MkStructArg(pointer *ArgSlot, offset int32, size uint32) Arg {
    return Arg {
        Kind    : ArgStruct,
        Purpose : ir.PurposeStructArg,
        Pointer : pointer,
        Offset  : offset,
        Size    : size,
    }
}

func MkImplicitPtrArg(pointer ArgSlot, offset int32, vt ir.Type) Arg {
    return Arg {
        Kind    : ArgImplicitPtr,
        Purpose : ir.PurposeNormal,
        Pointer : &pointer,
        Offset  : offset,
        Size    : vt.Bytes(),
        Type    : vt,
    }
}

func (self *Arg) String() string {
    switch self.Kind {
        case ArgSlots       : return self.formatSlots()
        case ArgStruct      : return fmt.Sprintf("{sarg,+%d,#%d,%s}", self.Offset, self.Size, self.formatPointer())
        case ArgImplicitPtr : return fmt.Sprintf("{iptr,+%d,%s,%s}", self.Offset, self.Type, self.formatPointer())
        default             : panic("abi: invalid argument kind")
    }
}

func (self *Arg) formatSlots() string {
    nb := len(self.Slots)
    mm := make([]string, nb)

    /* convert each part */
    for i := 0; i < nb; i++ {
        mm[i] = self.Slots[i].String()
    }

    /* join them together */
    return fmt.Sprintf("{%s,%s}", self.Purpose, strings.Join(mm, ","))
}

func (self *Arg) formatPointer() string {
    if self.Pointer == nil {
        return "-"
    } else {
        return self.Pointer.String()
    }
}

type StackAModeKind uint8

const (
    // AModeIncomingArg addresses the caller-provided incoming argument area,
    // above this function's own frame.
    AModeIncomingArg StackAModeKind = iota

    // AModeSlot addresses this frame's own fixed storage, relative to the
    // nominal stack pointer.
    AModeSlot

    // AModeOutgoingArg addresses the outgoing argument area of an imminent
    // call, at the bottom of the frame.
    AModeOutgoingArg
)

// StackAMode is an addressing intent, not a concrete operand: the target
// resolves it against the frame layout at emission time.
type StackAMode struct {
    Kind   StackAModeKind
    Offset int64
}

func IncomingArg(offset int64) StackAMode {
    return StackAMode{Kind: AModeIncomingArg, Offset: offset}
}

func SlotOffset(offset int64) StackAMode {
    return StackAMode{Kind: AModeSlot, Offset: offset}
}

func OutgoingArg(offset int64) StackAMode {
    return StackAMode{Kind: AModeOutgoingArg, Offset: offset}
}

func (self StackAMode) String() string {
    switch self.Kind {
        case AModeIncomingArg : return fmt.Sprintf("incoming_arg+%d", self.Offset)
        case AModeSlot        : return fmt.Sprintf("nominal_sp+%d", self.Offset)
        case AModeOutgoingArg : return fmt.Sprintf("outgoing_arg+%d", self.Offset)
        default               : panic("abi: invalid stack addressing mode")
    }
}

// ArgVec accumulates assigned locations into the signature arena. Formal
// arguments must all be pushed before any synthetic one so the first N
// locations keep lining up with the first N IR parameters.
type ArgVec struct {
    dest      *[]Arg
    start     int
    synthetic bool
}

func MakeArgVec(dest *[]Arg) ArgVec {
    return ArgVec {
        dest  : dest,
        start : len(*dest),
    }
}

func (self *ArgVec) Push(v Arg) {
    if self.synthetic {
        panic("abi: formal argument pushed after a synthetic one")
    } else {
        *self.dest = append(*self.dest, v)
    }
}

func (self *ArgVec) PushSynthetic(v Arg) {
    self.synthetic = true
    *self.dest = append(*self.dest, v)
}

func (self *ArgVec) Len() int {
    return len(*self.dest) - self.start
}

func (self *ArgVec) Args() []Arg {
    return (*self.dest)[self.start:]
}
