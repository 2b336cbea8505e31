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

    `github.com/cloudwego/abigen/internal/ir`
    `github.com/cloudwego/abigen/internal/opts`
    `github.com/cloudwego/abigen/internal/reg`
)

// Inst is one generated pseudo-instruction. The generic engine only collects
// and orders them, the target gives them meaning and encoding.
type Inst interface {
    fmt.Stringer
}

// InstBuf accumulates generated instructions in emission order.
type InstBuf struct {
    buf []Inst
}

func (self *InstBuf) Len() int {
    return len(self.buf)
}

func (self *InstBuf) Push(v Inst) {
    self.buf = append(self.buf, v)
}

func (self *InstBuf) PushAll(vv []Inst) {
    self.buf = append(self.buf, vv...)
}

func (self *InstBuf) Insts() []Inst {
    return self.buf
}

// RegPair binds a virtual register to the real register the ABI pins it to.
// Direction depends on context: argument setup defines the vreg from the
// preg, return setup moves the vreg into the preg.
type RegPair struct {
    VReg reg.VReg
    PReg reg.RealReg
}

func (self RegPair) String() string {
    return fmt.Sprintf("%s=%s", self.VReg, self.PReg)
}

type CallDestKind uint8

const (
    CallDirect CallDestKind = iota
    CallIndirect
)

// CallDest is where a call transfers to: a relocated symbol or a register.
type CallDest struct {
    Kind     CallDestKind
    Sym      string
    Distance ir.RelocDistance
    Reg      reg.VReg
}

func DirectDest(sym string, distance ir.RelocDistance) CallDest {
    return CallDest {
        Kind     : CallDirect,
        Sym      : sym,
        Distance : distance,
    }
}

func IndirectDest(rn reg.VReg) CallDest {
    return CallDest {
        Kind : CallIndirect,
        Reg  : rn,
    }
}

func (self CallDest) String() string {
    if self.Kind == CallDirect {
        return fmt.Sprintf("%s[%s]", self.Sym, self.Distance)
    } else {
        return fmt.Sprintf("*%s", self.Reg)
    }
}

// Role distinguishes the argument pass from the return pass of location
// assignment.
type Role uint8

const (
    RoleArg Role = iota
    RoleRet
)

func (self Role) String() string {
    if self == RoleArg {
        return "args"
    } else {
        return "rets"
    }
}

// MachineSpec is the one capability interface a target backend supplies. The
// generic engine is written entirely against it and never special-cases a
// target by name.
type MachineSpec interface {
    /* machine environment */
    WordBits() uint32
    WordType() ir.Type
    StackAlign(cc ir.CallConv) uint32
    SpillSlotSize() uint32
    SpillSlotsPerReg(class reg.Class, vt ir.Type) uint32
    DynamicTypeSize(vt ir.Type) (uint32, error)
    CallerSavedRegs(cc ir.CallConv) reg.Set
    CalleeSavedRegs(cc ir.CallConv) reg.Set
    StackLimitTempReg() reg.VReg

    // ComputeArgLocs assigns a location to every parameter of one role in a
    // single pass, appending to av. Registers are used before stack overflow
    // within the role. If addRetAreaPtr is set, one synthetic return-area
    // pointer argument is appended after all formals and its index returned,
    // otherwise the returned index is -1.
    ComputeArgLocs(cc ir.CallConv, params []ir.Param, role Role, addRetAreaPtr bool, av *ArgVec) (uint32, int, error)

    /* value movement */
    GenLoadStack(mem StackAMode, into reg.VReg, vt ir.Type) Inst
    GenStoreStack(mem StackAMode, from reg.VReg, vt ir.Type) Inst
    GenMove(into reg.VReg, from reg.VReg, vt ir.Type) Inst
    GenExtend(into reg.VReg, from reg.VReg, signed bool, fromBits uint32, toBits uint32) Inst
    GenGetStackAddr(mem StackAMode, into reg.VReg) Inst
    GenLoadBaseOffset(into reg.VReg, base reg.VReg, offset int32, vt ir.Type) Inst
    GenStoreBaseOffset(base reg.VReg, offset int32, from reg.VReg, vt ir.Type) Inst
    GenAddImm(into reg.VReg, from reg.VReg, imm uint32) []Inst
    GenArgs(pairs []RegPair) Inst
    GenRets(pairs []RegPair) Inst

    /* stack pointer management */
    GenSPAdjust(amount int32) Inst
    GenNominalSPAdjust(amount int32) Inst
    GenStackLowerBoundTrap(limit reg.VReg) []Inst

    /* frame construction */
    ComputeFrameLayout(
        cc               ir.CallConv,
        flags            opts.Options,
        clobbered        reg.Set,
        isLeaf           bool,
        incomingArgsSize uint32,
        fixedFrameSize   uint32,
        outgoingArgsSize uint32,
    ) FrameLayout

    GenPrologueFrameSetup(cc ir.CallConv, flags opts.Options, setupFrame bool) []Inst
    GenEpilogueFrameRestore(cc ir.CallConv, flags opts.Options, setupFrame bool) []Inst
    GenReturn(cc ir.CallConv, stackBytesToPop uint32) []Inst
    GenProbestack(frameSize uint32) []Inst
    GenInlineProbestack(frameSize uint32, guardSize uint32) []Inst
    GenClobberSave(cc ir.CallConv, layout *FrameLayout) []Inst
    GenClobberRestore(cc ir.CallConv, layout *FrameLayout) []Inst

    /* calls */
    GenCall(dest CallDest, uses []RegPair, defs []RegPair, clobbers reg.Set, op ir.Opcode) []Inst
    GenMemcpy(dst reg.VReg, src reg.VReg, size uint32, alloc func(reg.Class) reg.VReg) []Inst
}
