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
    `github.com/cloudwego/abigen/internal/abi`
    `github.com/cloudwego/abigen/internal/ir`
    `github.com/cloudwego/abigen/internal/opts`
    `github.com/cloudwego/abigen/internal/reg`
    `github.com/cloudwego/abigen/internal/utils`
    `github.com/klauspost/cpuid/v2`
)

// ArchSpec is the amd64 backend. All methods are pure with respect to the
// receiver, one instance serves any number of concurrent compilations.
type ArchSpec struct {
    memcpy string
    probe  string
    erms   bool
    vector uint32
}

// CreateArchSpec probes the host CPU once and fixes the code generation
// strategy: block copies use "rep movsb" only where the copy is enhanced
// (ERMS), and dynamic vectors are scaled to the widest usable vector unit.
func CreateArchSpec() *ArchSpec {
    return &ArchSpec {
        memcpy : "memcpy",
        probe  : "probe_stack",
        erms   : cpuid.CPU.Supports(cpuid.ERMS),
        vector : vectorWidth(),
    }
}

func vectorWidth() uint32 {
    if cpuid.CPU.Supports(cpuid.AVX2) {
        return 32
    } else {
        return 16
    }
}

func (self *ArchSpec) WordBits() uint32 {
    return 64
}

func (self *ArchSpec) WordType() ir.Type {
    return ir.I64
}

func (self *ArchSpec) StackAlign(cc ir.CallConv) uint32 {
    return 16
}

func (self *ArchSpec) SpillSlotSize() uint32 {
    return 8
}

func (self *ArchSpec) SpillSlotsPerReg(class reg.Class, vt ir.Type) uint32 {
    if vt.IsDynamic() {
        return self.vector / 8
    } else {
        return (vt.Bits() + 63) / 64
    }
}

func (self *ArchSpec) DynamicTypeSize(vt ir.Type) (uint32, error) {
    if vt.IsDynamic() {
        return self.vector, nil
    } else {
        return 0, utils.EBadType(vt, "dynamic type")
    }
}

func (self *ArchSpec) CallerSavedRegs(cc ir.CallConv) reg.Set {
    return allocatableGPRs.Union(allXMMs).Sub(convDesc(cc).saved)
}

func (self *ArchSpec) CalleeSavedRegs(cc ir.CallConv) reg.Set {
    return convDesc(cc).saved
}

// StackLimitTempReg is r11: every convention keeps it caller-saved, and a
// function carrying a stack-limit parameter must not receive arguments in it.
func (self *ArchSpec) StackLimitTempReg() reg.VReg {
    return reg.FromReal(R11, reg.Int)
}

/** Argument Location Assignment **/

type _LocState struct {
    cd    *_ConvDesc
    role  abi.Role
    ni    int
    nf    int
    space uint32
}

func (self *_LocState) ints() []reg.RealReg {
    if self.role == abi.RoleArg {
        return self.cd.argInts
    } else {
        return self.cd.retInts
    }
}

func (self *_LocState) xmms() []reg.RealReg {
    if self.role == abi.RoleArg {
        return self.cd.argXmms
    } else {
        return self.cd.retXmms
    }
}

func (self *_LocState) nextInt() (reg.RealReg, bool) {
    if rr := self.ints(); self.ni < len(rr) {
        r := rr[self.ni]
        self.ni++
        return r, true
    } else {
        return reg.RealInvalid, false
    }
}

func (self *_LocState) nextXmm() (reg.RealReg, bool) {
    if rr := self.xmms(); self.nf < len(rr) {
        r := rr[self.nf]
        self.nf++
        return r, true
    } else {
        return reg.RealInvalid, false
    }
}

func (self *_LocState) alloc(size uint32, align uint32) int32 {
    self.space = uint32(alignUp(uint64(self.space), uint64(align)))
    off := int32(self.space)
    self.space += size
    return off
}

// wordSlot assigns one register-sized part: a register while any remain for
// the class, an 8-byte (16 for v128) stack slot after that.
func (self *_LocState) wordSlot(vt ir.Type, ext ir.Ext) abi.ArgSlot {
    if vt.RegClass() == reg.Int {
        if r, ok := self.nextInt(); ok {
            return abi.MkRegSlot(r, vt, ext)
        } else {
            return abi.MkStackSlot(self.alloc(8, 8), vt, ext)
        }
    } else {
        if r, ok := self.nextXmm(); ok {
            return abi.MkRegSlot(r, vt, ext)
        } else if vt == ir.V128 {
            return abi.MkStackSlot(self.alloc(16, 16), vt, ext)
        } else {
            return abi.MkStackSlot(self.alloc(8, 8), vt, ext)
        }
    }
}

func (self *ArchSpec) ComputeArgLocs(cc ir.CallConv, params []ir.Param, role abi.Role, addRetAreaPtr bool, av *abi.ArgVec) (uint32, int, error) {
    cd, ok := convTab[cc]
    if !ok {
        return 0, -1, utils.EBadConv(cc)
    }

    /* assign every formal in declaration order */
    st := _LocState{cd: cd, role: role}
    for _, p := range params {
        if err := self.assignParam(&st, av, p); err != nil {
            return 0, -1, err
        }
    }

    /* the hidden return-area pointer binds last so formal indices stay
     * aligned with IR parameter indices */
    idx := -1
    if addRetAreaPtr {
        idx = av.Len()
        av.PushSynthetic(abi.MkSlotsArg(ir.PurposeStructRet, st.wordSlot(ir.P64, ir.ExtNone)))
    }

    /* the argument space feeds the incoming-args frame region, keep it
     * already aligned for the frame equations */
    return uint32(alignUp(uint64(st.space), 16)), idx, nil
}

func (self *ArchSpec) assignParam(st *_LocState, av *abi.ArgVec, p ir.Param) error {
    switch {
        case p.Purpose == ir.PurposeStructArg : return self.assignStruct(st, av, p)
        case p.Type.IsDynamic()               : return utils.EBadType(p.Type, "signature type")
        case p.Type == ir.I128                : return self.assignPair(st, av, p)
        case p.Type == ir.V128                : return self.assignVector(st, av, p)
        default                               : av.Push(abi.MkSlotsArg(p.Purpose, st.wordSlot(p.Type, p.Ext))); return nil
    }
}

// assignStruct places a caller-allocated buffer in the argument space. The
// internal convention carries the buffer address in a pointer slot, the
// System V family addresses the buffer positionally.
func (self *ArchSpec) assignStruct(st *_LocState, av *abi.ArgVec, p ir.Param) error {
    if st.role != abi.RoleArg {
        return utils.EBadType(p.Type, "return value")
    }

    off := st.alloc(uint32(alignUp(uint64(p.StructSize), 8)), 8)
    if !st.cd.structReg {
        av.Push(abi.MkStructArg(nil, off, p.StructSize))
    } else {
        ptr := st.wordSlot(ir.P64, ir.ExtNone)
        av.Push(abi.MkStructArg(&ptr, off, p.StructSize))
    }
    return nil
}

// a 128-bit integer splits into two 64-bit parts; once registers run short
// the whole value overflows so the two halves stay adjacent in memory
func (self *ArchSpec) assignPair(st *_LocState, av *abi.ArgVec, p ir.Param) error {
    if len(st.ints()) - st.ni >= 2 {
        lo, _ := st.nextInt()
        hi, _ := st.nextInt()
        av.Push(abi.MkSlotsArg(p.Purpose, abi.MkRegSlot(lo, ir.I64, p.Ext), abi.MkRegSlot(hi, ir.I64, p.Ext)))
    } else {
        lo := st.alloc(8, 8)
        hi := st.alloc(8, 8)
        av.Push(abi.MkSlotsArg(p.Purpose, abi.MkStackSlot(lo, ir.I64, p.Ext), abi.MkStackSlot(hi, ir.I64, p.Ext)))
    }
    return nil
}

// assignVector places a 128-bit vector. The internal convention has no
// vector registers in its argument sequence and passes vectors by implicit
// pointer instead; the System V family uses the xmm bank directly.
func (self *ArchSpec) assignVector(st *_LocState, av *abi.ArgVec, p ir.Param) error {
    if !st.cd.structReg || st.role != abi.RoleArg {
        av.Push(abi.MkSlotsArg(p.Purpose, st.wordSlot(p.Type, p.Ext)))
        return nil
    }

    off := st.alloc(16, 16)
    av.Push(abi.MkImplicitPtrArg(st.wordSlot(ir.P64, ir.ExtNone), off, p.Type))
    return nil
}

/** Value Movement **/

func (self *ArchSpec) GenLoadStack(mem abi.StackAMode, into reg.VReg, vt ir.Type) abi.Inst {
    return &Instr{Op: OpLoadStack, Mem: mem, Rd: into, Ty: vt}
}

func (self *ArchSpec) GenStoreStack(mem abi.StackAMode, from reg.VReg, vt ir.Type) abi.Inst {
    return &Instr{Op: OpStoreStack, Mem: mem, Rn: from, Ty: vt}
}

func (self *ArchSpec) GenMove(into reg.VReg, from reg.VReg, vt ir.Type) abi.Inst {
    return &Instr{Op: OpMove, Rd: into, Rn: from, Ty: vt}
}

func (self *ArchSpec) GenExtend(into reg.VReg, from reg.VReg, signed bool, fromBits uint32, toBits uint32) abi.Inst {
    return &Instr{Op: OpExtend, Rd: into, Rn: from, Signed: signed, FromBits: fromBits, ToBits: toBits}
}

func (self *ArchSpec) GenGetStackAddr(mem abi.StackAMode, into reg.VReg) abi.Inst {
    return &Instr{Op: OpStackAddr, Mem: mem, Rd: into}
}

func (self *ArchSpec) GenLoadBaseOffset(into reg.VReg, base reg.VReg, offset int32, vt ir.Type) abi.Inst {
    return &Instr{Op: OpLoadBase, Rd: into, Rn: base, Imm: int64(offset), Ty: vt}
}

func (self *ArchSpec) GenStoreBaseOffset(base reg.VReg, offset int32, from reg.VReg, vt ir.Type) abi.Inst {
    return &Instr{Op: OpStoreBase, Rd: base, Rn: from, Imm: int64(offset), Ty: vt}
}

func (self *ArchSpec) GenAddImm(into reg.VReg, from reg.VReg, imm uint32) []abi.Inst {
    return []abi.Inst {
        &Instr{Op: OpAddImm, Rd: into, Rn: from, Imm: int64(imm)},
    }
}

func (self *ArchSpec) GenArgs(pairs []abi.RegPair) abi.Inst {
    return &Instr{Op: OpArgs, Pairs: pairs}
}

func (self *ArchSpec) GenRets(pairs []abi.RegPair) abi.Inst {
    return &Instr{Op: OpRets, Pairs: pairs}
}

/** Stack Pointer Management **/

func (self *ArchSpec) GenSPAdjust(amount int32) abi.Inst {
    return &Instr{Op: OpSPAdj, Imm: int64(amount)}
}

func (self *ArchSpec) GenNominalSPAdjust(amount int32) abi.Inst {
    return &Instr{Op: OpNominalSPAdj, Imm: int64(amount)}
}

func (self *ArchSpec) GenStackLowerBoundTrap(limit reg.VReg) []abi.Inst {
    return []abi.Inst {
        &Instr{Op: OpLimitTrap, Rn: limit},
    }
}

/** Frame Construction **/

func (self *ArchSpec) ComputeFrameLayout(
    cc               ir.CallConv,
    flags            opts.Options,
    clobbered        reg.Set,
    isLeaf           bool,
    incomingArgsSize uint32,
    fixedFrameSize   uint32,
    outgoingArgsSize uint32,
) abi.FrameLayout {
    saves := clobbered.Intersect(self.CalleeSavedRegs(cc)).Sorted()

    /* clobber area, xmm saves are 16 bytes and 16-aligned */
    clob := uint32(0)
    for _, r := range saves {
        if isXMM(r) {
            clob = uint32(alignUp(uint64(clob), 16)) + 16
        } else {
            clob += 8
        }
    }
    clob = uint32(alignUp(uint64(clob), 16))

    /* setup area: return address, plus the saved frame pointer */
    setup := uint32(8)
    if flags.EnableFramePointers {
        setup = 16
    }

    /* pad the fixed storage so the real SP lands 16-aligned after the
     * prologue: the caller's SP was aligned at the call, so setup area
     * plus frame must drop the SP by a multiple of the alignment */
    out := uint32(alignUp(uint64(outgoingArgsSize), 16))
    total := clob + fixedFrameSize + out
    pad := uint32(alignUp(uint64(total) + uint64(setup), 16)) - (total + setup)

    return abi.FrameLayout {
        IncomingArgsSize      : incomingArgsSize,
        SetupAreaSize         : setup,
        ClobberSize           : clob,
        FixedFrameStorageSize : fixedFrameSize + pad,
        OutgoingArgsSize      : out,
        ClobberedCalleeSaves  : saves,
    }
}

func (self *ArchSpec) GenPrologueFrameSetup(cc ir.CallConv, flags opts.Options, setupFrame bool) []abi.Inst {
    if !flags.EnableFramePointers || !setupFrame {
        return nil
    }
    return []abi.Inst {
        &Instr{Op: OpPush, Save: RBP},
        &Instr{Op: OpMove, Rd: reg.FromReal(RBP, reg.Int), Rn: reg.FromReal(RSP, reg.Int), Ty: ir.I64},
    }
}

func (self *ArchSpec) GenEpilogueFrameRestore(cc ir.CallConv, flags opts.Options, setupFrame bool) []abi.Inst {
    if !flags.EnableFramePointers || !setupFrame {
        return nil
    }
    return []abi.Inst {
        &Instr{Op: OpMove, Rd: reg.FromReal(RSP, reg.Int), Rn: reg.FromReal(RBP, reg.Int), Ty: ir.I64},
        &Instr{Op: OpPop, Save: RBP},
    }
}

func (self *ArchSpec) GenReturn(cc ir.CallConv, stackBytesToPop uint32) []abi.Inst {
    return []abi.Inst {
        &Instr{Op: OpRet, Imm: int64(stackBytesToPop)},
    }
}

func (self *ArchSpec) GenProbestack(frameSize uint32) []abi.Inst {
    return []abi.Inst {
        &Instr{Op: OpProbeCall, Sym: self.probe, Imm: int64(frameSize)},
    }
}

func (self *ArchSpec) GenInlineProbestack(frameSize uint32, guardSize uint32) []abi.Inst {
    return []abi.Inst {
        &Instr{Op: OpProbeLoop, Imm: int64(frameSize), Imm2: int64(guardSize)},
    }
}

// GenClobberSave allocates the whole frame below the setup area in one SP
// move, then stores every clobbered callee-save above the fixed storage.
func (self *ArchSpec) GenClobberSave(cc ir.CallConv, layout *abi.FrameLayout) []abi.Inst {
    var buf []abi.Inst
    nb := layout.FrameSize()

    if nb > 0 {
        buf = append(buf, &Instr{Op: OpSPAdj, Imm: -int64(nb)})
    }
    off := uint64(layout.OutgoingArgsSize + layout.FixedFrameStorageSize)
    for _, r := range layout.ClobberedCalleeSaves {
        if isXMM(r) {
            off = alignUp(off, 16)
            buf = append(buf, &Instr{Op: OpSaveReg, Save: r, Imm: int64(off)})
            off += 16
        } else {
            buf = append(buf, &Instr{Op: OpSaveReg, Save: r, Imm: int64(off)})
            off += 8
        }
    }
    return buf
}

func (self *ArchSpec) GenClobberRestore(cc ir.CallConv, layout *abi.FrameLayout) []abi.Inst {
    var buf []abi.Inst
    nb := layout.FrameSize()

    off := uint64(layout.OutgoingArgsSize + layout.FixedFrameStorageSize)
    for _, r := range layout.ClobberedCalleeSaves {
        if isXMM(r) {
            off = alignUp(off, 16)
            buf = append(buf, &Instr{Op: OpRestoreReg, Save: r, Imm: int64(off)})
            off += 16
        } else {
            buf = append(buf, &Instr{Op: OpRestoreReg, Save: r, Imm: int64(off)})
            off += 8
        }
    }
    if nb > 0 {
        buf = append(buf, &Instr{Op: OpSPAdj, Imm: int64(nb)})
    }
    return buf
}

/** Calls **/

func (self *ArchSpec) GenCall(dest abi.CallDest, uses []abi.RegPair, defs []abi.RegPair, clobbers reg.Set, op ir.Opcode) []abi.Inst {
    return []abi.Inst {
        &Instr {
            Op       : OpCall,
            Dest     : dest,
            Uses     : uses,
            Defs     : defs,
            Clobbers : clobbers,
            CallOp   : op,
        },
    }
}

// GenMemcpy copies a struct-argument buffer. With ERMS a rep-prefixed byte
// copy beats a library call at these sizes, otherwise the copy routes
// through the configured memcpy symbol.
func (self *ArchSpec) GenMemcpy(dst reg.VReg, src reg.VReg, size uint32, alloc func(reg.Class) reg.VReg) []abi.Inst {
    if size == 0 {
        return nil
    }
    if self.erms {
        return []abi.Inst {
            &Instr{Op: OpMemcpyRep, Rd: dst, Rn: src, Imm: int64(size)},
        }
    }

    /* bind the libc argument registers explicitly */
    cnt := alloc(reg.Int)
    uses := []abi.RegPair {
        {VReg: dst, PReg: RDI},
        {VReg: src, PReg: RSI},
        {VReg: cnt, PReg: RDX},
    }
    return []abi.Inst {
        &Instr{Op: OpMovImm, Rd: cnt, Imm: int64(size)},
        &Instr {
            Op       : OpCall,
            Dest     : abi.DirectDest(self.memcpy, ir.RelocFar),
            Uses     : uses,
            Clobbers : self.CallerSavedRegs(ir.SystemV),
            CallOp   : ir.OpCall,
        },
    }
}

func alignUp(v uint64, a uint64) uint64 {
    return (v + a - 1) &^ (a - 1)
}
