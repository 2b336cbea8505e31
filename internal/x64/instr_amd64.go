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

package x64

import (
    `fmt`
    `strings`

    `github.com/chenzhuoyu/iasm/x86_64`
    `github.com/cloudwego/abigen/internal/abi`
    `github.com/cloudwego/abigen/internal/ir`
    `github.com/cloudwego/abigen/internal/reg`
)

type Op uint8

const (
    OpLoadStack Op = iota
    OpStoreStack
    OpMove
    OpExtend
    OpStackAddr
    OpLoadBase
    OpStoreBase
    OpAddImm
    OpMovImm
    OpArgs
    OpRets
    OpSPAdj
    OpNominalSPAdj
    OpLimitTrap
    OpPush
    OpPop
    OpSaveReg
    OpRestoreReg
    OpRet
    OpProbeCall
    OpProbeLoop
    OpCall
    OpMemcpyRep
)

// Instr is one amd64 pseudo-instruction. It prints in AT&T order for tests
// and debugging, and encodes itself through iasm once every register operand
// is real.
type Instr struct {
    Op       Op
    Rd       reg.VReg
    Rn       reg.VReg
    Ty       ir.Type
    Mem      abi.StackAMode
    Imm      int64
    Imm2     int64
    Save     reg.RealReg
    Sym      string
    Signed   bool
    FromBits uint32
    ToBits   uint32
    Pairs    []abi.RegPair
    Dest     abi.CallDest
    Uses     []abi.RegPair
    Defs     []abi.RegPair
    Clobbers reg.Set
    CallOp   ir.Opcode
}

/* mnemonic suffixes for sized moves */

func movName(vt ir.Type) string {
    switch vt {
        case ir.I8        : return "movb"
        case ir.I16       : return "movw"
        case ir.I32       : return "movl"
        case ir.I64, ir.P64: return "movq"
        case ir.F32       : return "movss"
        case ir.F64       : return "movsd"
        case ir.V128      : return "movdqu"
        default           : panic("x64: type is not movable: " + vt.String())
    }
}

func extName(signed bool, fromBits uint32) string {
    var s string

    /* zero-extending a 32-bit value is just a 32-bit move */
    if !signed && fromBits == 32 {
        return "movl"
    }

    /* source width suffix */
    switch fromBits {
        case 8  : s = "b"
        case 16 : s = "w"
        case 32 : s = "l"
        default : panic("x64: invalid extension source width")
    }

    /* sign or zero prefix, always extending into 64 bits */
    if signed {
        return "movs" + s + "q"
    } else {
        return "movz" + s + "q"
    }
}

func vname(v reg.VReg) string {
    if v.IsReal() {
        return "%" + regName(v.Real())
    } else {
        return v.String()
    }
}

func pairNames(pairs []abi.RegPair) string {
    nb := make([]string, 0, len(pairs))
    for _, p := range pairs {
        nb = append(nb, fmt.Sprintf("%s=%%%s", vname(p.VReg), regName(p.PReg)))
    }
    return strings.Join(nb, ", ")
}

func (self *Instr) String() string {
    switch self.Op {
        case OpLoadStack    : return fmt.Sprintf("%s %s, %s", movName(self.Ty), self.Mem, vname(self.Rd))
        case OpStoreStack   : return fmt.Sprintf("%s %s, %s", movName(self.Ty), vname(self.Rn), self.Mem)
        case OpMove         : return fmt.Sprintf("%s %s, %s", movName(self.Ty), vname(self.Rn), vname(self.Rd))
        case OpExtend       : return fmt.Sprintf("%s %s, %s", extName(self.Signed, self.FromBits), vname(self.Rn), vname(self.Rd))
        case OpStackAddr    : return fmt.Sprintf("leaq %s, %s", self.Mem, vname(self.Rd))
        case OpLoadBase     : return fmt.Sprintf("%s %d(%s), %s", movName(self.Ty), self.Imm, vname(self.Rn), vname(self.Rd))
        case OpStoreBase    : return fmt.Sprintf("%s %s, %d(%s)", movName(self.Ty), vname(self.Rn), self.Imm, vname(self.Rd))
        case OpAddImm       : return fmt.Sprintf("leaq %d(%s), %s", self.Imm, vname(self.Rn), vname(self.Rd))
        case OpMovImm       : return fmt.Sprintf("movq $%d, %s", self.Imm, vname(self.Rd))
        case OpArgs         : return fmt.Sprintf("args %s", pairNames(self.Pairs))
        case OpRets         : return fmt.Sprintf("rets %s", pairNames(self.Pairs))
        case OpSPAdj        : return self.formatSPAdj()
        case OpNominalSPAdj : return fmt.Sprintf("virtual_sp_offset_adj $%d", self.Imm)
        case OpLimitTrap    : return fmt.Sprintf("stack_check %s", vname(self.Rn))
        case OpPush         : return fmt.Sprintf("pushq %%%s", regName(self.Save))
        case OpPop          : return fmt.Sprintf("popq %%%s", regName(self.Save))
        case OpSaveReg      : return fmt.Sprintf("%s %%%s, %d(%%rsp)", saveName(self.Save), regName(self.Save), self.Imm)
        case OpRestoreReg   : return fmt.Sprintf("%s %d(%%rsp), %%%s", saveName(self.Save), self.Imm, regName(self.Save))
        case OpRet          : return self.formatRet()
        case OpProbeCall    : return fmt.Sprintf("callq %s ; probe $%d", self.Sym, self.Imm)
        case OpProbeLoop    : return fmt.Sprintf("probe_loop $%d, $%d", self.Imm, self.Imm2)
        case OpCall         : return self.formatCall()
        case OpMemcpyRep    : return fmt.Sprintf("rep_movsb %s, %s, $%d", vname(self.Rn), vname(self.Rd), self.Imm)
        default             : panic("x64: invalid instruction")
    }
}

func saveName(r reg.RealReg) string {
    if isXMM(r) {
        return "movdqu"
    } else {
        return "movq"
    }
}

func (self *Instr) formatSPAdj() string {
    if self.Imm < 0 {
        return fmt.Sprintf("subq $%d, %%rsp", -self.Imm)
    } else {
        return fmt.Sprintf("addq $%d, %%rsp", self.Imm)
    }
}

func (self *Instr) formatRet() string {
    if self.Imm == 0 {
        return "ret"
    } else {
        return fmt.Sprintf("ret $%d", self.Imm)
    }
}

func (self *Instr) formatCall() string {
    if self.CallOp.IsTailCall() {
        return fmt.Sprintf("jmpq %s", self.Dest)
    } else {
        return fmt.Sprintf("callq %s", self.Dest)
    }
}

/* resolve a stack addressing intent against the final frame, RSP-relative */

func resolveAMode(mem abi.StackAMode, fl *abi.FrameLayout) int32 {
    switch mem.Kind {
        case abi.AModeIncomingArg : return int32(int64(fl.FrameSize() + fl.SetupAreaSize) + mem.Offset)
        case abi.AModeSlot        : return int32(int64(fl.NominalSPOffset()) + mem.Offset)
        case abi.AModeOutgoingArg : return int32(mem.Offset)
        default                   : panic("x64: invalid stack addressing mode")
    }
}

func realOf(v reg.VReg) reg.RealReg {
    if v.IsReal() {
        return v.Real()
    } else {
        panic("x64: cannot encode a virtual register: " + v.String())
    }
}

// EncodeInto assembles the instruction into p. Every register operand must
// have been assigned a real register, and stack addressing is resolved
// against fl as the prologue left it.
func (self *Instr) EncodeInto(p *x86_64.Program, fl *abi.FrameLayout) {
    switch self.Op {
        case OpLoadStack    : self.encodeLoadStack(p, fl)
        case OpStoreStack   : self.encodeStoreStack(p, fl)
        case OpMove         : self.encodeMove(p)
        case OpExtend       : self.encodeExtend(p)
        case OpStackAddr    : p.LEAQ(Ptr(x86_64.RSP, resolveAMode(self.Mem, fl)), gpr(realOf(self.Rd)))
        case OpLoadBase     : self.encodeLoadBase(p)
        case OpStoreBase    : self.encodeStoreBase(p)
        case OpAddImm       : p.LEAQ(Ptr(gpr(realOf(self.Rn)), int32(self.Imm)), gpr(realOf(self.Rd)))
        case OpMovImm       : p.MOVQ(self.Imm, gpr(realOf(self.Rd)))
        case OpSPAdj        : self.encodeSPAdj(p)
        case OpNominalSPAdj : break
        case OpPush         : p.PUSHQ(gpr(self.Save))
        case OpPop          : p.POPQ(gpr(self.Save))
        case OpSaveReg      : self.encodeSaveReg(p)
        case OpRestoreReg   : self.encodeRestoreReg(p)
        case OpRet          : self.encodeRet(p)
        default             : panic("x64: instruction has no direct encoding: " + self.String())
    }
}

func (self *Instr) encodeLoadStack(p *x86_64.Program, fl *abi.FrameLayout) {
    mm := Ptr(x86_64.RSP, resolveAMode(self.Mem, fl))
    switch self.Ty {
        case ir.I64, ir.P64 : p.MOVQ(mm, gpr(realOf(self.Rd)))
        case ir.I32         : p.MOVL(mm, x86_64.Register32(gpr(realOf(self.Rd))))
        case ir.F32         : p.MOVSS(mm, xmm(realOf(self.Rd)))
        case ir.F64         : p.MOVSD(mm, xmm(realOf(self.Rd)))
        case ir.V128        : p.MOVDQU(mm, xmm(realOf(self.Rd)))
        default             : panic("x64: stack load has no encoding for type " + self.Ty.String())
    }
}

func (self *Instr) encodeStoreStack(p *x86_64.Program, fl *abi.FrameLayout) {
    mm := Ptr(x86_64.RSP, resolveAMode(self.Mem, fl))
    switch self.Ty {
        case ir.I64, ir.P64 : p.MOVQ(gpr(realOf(self.Rn)), mm)
        case ir.I32         : p.MOVL(x86_64.Register32(gpr(realOf(self.Rn))), mm)
        case ir.F32         : p.MOVSS(xmm(realOf(self.Rn)), mm)
        case ir.F64         : p.MOVSD(xmm(realOf(self.Rn)), mm)
        case ir.V128        : p.MOVDQU(xmm(realOf(self.Rn)), mm)
        default             : panic("x64: stack store has no encoding for type " + self.Ty.String())
    }
}

func (self *Instr) encodeMove(p *x86_64.Program) {
    rd := realOf(self.Rd)
    rn := realOf(self.Rn)
    switch {
        case !isXMM(rd) && !isXMM(rn) : p.MOVQ(gpr(rn), gpr(rd))
        case isXMM(rd) && isXMM(rn)   : p.MOVDQU(xmm(rn), xmm(rd))
        default                       : panic("x64: cannot move between register classes")
    }
}

func (self *Instr) encodeExtend(p *x86_64.Program) {
    rd := gpr(realOf(self.Rd))
    rn := gpr(realOf(self.Rn))
    switch {
        case self.Signed && self.FromBits == 8   : p.MOVSBQ(x86_64.Register8(rn), rd)
        case self.Signed && self.FromBits == 16  : p.MOVSWQ(x86_64.Register16(rn), rd)
        case self.Signed && self.FromBits == 32  : p.MOVSLQ(x86_64.Register32(rn), rd)
        case !self.Signed && self.FromBits == 8  : p.MOVZBQ(x86_64.Register8(rn), rd)
        case !self.Signed && self.FromBits == 16 : p.MOVZWQ(x86_64.Register16(rn), rd)
        case !self.Signed && self.FromBits == 32 : p.MOVL(x86_64.Register32(rn), x86_64.Register32(rd))
        default                                  : panic("x64: invalid extension widths")
    }
}

func (self *Instr) encodeLoadBase(p *x86_64.Program) {
    mm := Ptr(gpr(realOf(self.Rn)), int32(self.Imm))
    switch self.Ty {
        case ir.I64, ir.P64 : p.MOVQ(mm, gpr(realOf(self.Rd)))
        case ir.I32         : p.MOVL(mm, x86_64.Register32(gpr(realOf(self.Rd))))
        case ir.F32         : p.MOVSS(mm, xmm(realOf(self.Rd)))
        case ir.F64         : p.MOVSD(mm, xmm(realOf(self.Rd)))
        case ir.V128        : p.MOVDQU(mm, xmm(realOf(self.Rd)))
        default             : panic("x64: base load has no encoding for type " + self.Ty.String())
    }
}

func (self *Instr) encodeStoreBase(p *x86_64.Program) {
    mm := Ptr(gpr(realOf(self.Rd)), int32(self.Imm))
    switch self.Ty {
        case ir.I64, ir.P64 : p.MOVQ(gpr(realOf(self.Rn)), mm)
        case ir.I32         : p.MOVL(x86_64.Register32(gpr(realOf(self.Rn))), mm)
        case ir.F32         : p.MOVSS(xmm(realOf(self.Rn)), mm)
        case ir.F64         : p.MOVSD(xmm(realOf(self.Rn)), mm)
        case ir.V128        : p.MOVDQU(xmm(realOf(self.Rn)), mm)
        default             : panic("x64: base store has no encoding for type " + self.Ty.String())
    }
}

func (self *Instr) encodeSPAdj(p *x86_64.Program) {
    if self.Imm < 0 {
        p.SUBQ(-self.Imm, x86_64.RSP)
    } else if self.Imm > 0 {
        p.ADDQ(self.Imm, x86_64.RSP)
    }
}

func (self *Instr) encodeSaveReg(p *x86_64.Program) {
    if mm := Ptr(x86_64.RSP, int32(self.Imm)); isXMM(self.Save) {
        p.MOVDQU(xmm(self.Save), mm)
    } else {
        p.MOVQ(gpr(self.Save), mm)
    }
}

func (self *Instr) encodeRestoreReg(p *x86_64.Program) {
    if mm := Ptr(x86_64.RSP, int32(self.Imm)); isXMM(self.Save) {
        p.MOVDQU(mm, xmm(self.Save))
    } else {
        p.MOVQ(mm, gpr(self.Save))
    }
}

func (self *Instr) encodeRet(p *x86_64.Program) {
    if self.Imm != 0 {
        panic("x64: callee-pop return has no direct encoding")
    } else {
        p.RET()
    }
}
