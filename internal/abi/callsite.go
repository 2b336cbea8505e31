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
    `github.com/cloudwego/abigen/internal/utils`
)

// CallSite drives the caller side of one call instruction: outgoing argument
// marshaling, the call itself, and return-value unmarshaling. A CallSite is
// consumed exactly once, when the call instruction is finally emitted.
//
// Argument placement ordering contract: struct-argument buffer copies go
// first (the byte-copy sequence may itself clobber argument registers), then
// register and stack arguments, then the return-area pointer.
type CallSite struct {
    sig       Sig
    op        ir.Opcode
    mach      MachineSpec
    sigs      *SigSet
    dest      CallDest
    flags     opts.Options
    uses      []RegPair
    defs      []RegPair
    retLoads  []Inst
    clobbers  reg.Set
    emitted   bool
    argsBegun bool
    tailFrame bool
}

func newCallSite(sigs *SigSet, mach MachineSpec, sig *ir.Signature, dest CallDest, op ir.Opcode, flags opts.Options) (*CallSite, error) {
    sv, err := sigs.AddCallSig(sig)
    if err != nil {
        return nil, err
    }
    if op.IsTailCall() && !sig.CallConv.SupportsTailCalls() {
        return nil, utils.EBadConv(sig.CallConv)
    }
    return &CallSite {
        sig      : sv,
        op       : op,
        mach     : mach,
        sigs     : sigs,
        dest     : dest,
        flags    : flags,
        clobbers : sigs.CallClobbers(sv),
    }, nil
}

func NewCallSiteDirect(sigs *SigSet, mach MachineSpec, sig *ir.Signature, sym string, distance ir.RelocDistance, flags opts.Options) (*CallSite, error) {
    return newCallSite(sigs, mach, sig, DirectDest(sym, distance), ir.OpCall, flags)
}

func NewCallSiteIndirect(sigs *SigSet, mach MachineSpec, sig *ir.Signature, rn reg.VReg, flags opts.Options) (*CallSite, error) {
    return newCallSite(sigs, mach, sig, IndirectDest(rn), ir.OpCallIndirect, flags)
}

func NewReturnCallSite(sigs *SigSet, mach MachineSpec, sig *ir.Signature, sym string, flags opts.Options) (*CallSite, error) {
    return newCallSite(sigs, mach, sig, DirectDest(sym, ir.RelocFar), ir.OpReturnCall, flags)
}

func NewReturnCallSiteIndirect(sigs *SigSet, mach MachineSpec, sig *ir.Signature, rn reg.VReg, flags opts.Options) (*CallSite, error) {
    return newCallSite(sigs, mach, sig, IndirectDest(rn), ir.OpReturnCallIndirect, flags)
}

func (self *CallSite) Sig() Sig {
    return self.sig
}

func (self *CallSite) Opcode() ir.Opcode {
    return self.op
}

func (self *CallSite) NumArgs() int {
    return self.sigs.NumArgs(self.sig)
}

func (self *CallSite) NumRets() int {
    return self.sigs.NumRets(self.sig)
}

// OutgoingArgsSize is the outgoing stack space this call needs: the argument
// overflow area plus the return area placed directly above it.
func (self *CallSite) OutgoingArgsSize() uint32 {
    return self.sigs.SizedStackArgSpace(self.sig) + self.sigs.SizedStackRetSpace(self.sig)
}

/** Outgoing Arguments **/

// EmitCopyRegsToBuffer copies one struct-style argument into its
// caller-allocated buffer. All buffer copies must precede every GenArg: the
// copy sequence may use scratch registers or a library call that would
// clobber argument registers already placed.
func (self *CallSite) EmitCopyRegsToBuffer(buf *InstBuf, idx int, from []reg.VReg, alloc func(reg.Class) reg.VReg) {
    arg := &self.sigs.Args(self.sig)[idx]

    /* slot arguments have no buffer */
    if arg.Kind == ArgSlots {
        return
    }
    if self.argsBegun {
        panic("abi: struct buffer copied after register arguments")
    }

    /* struct buffers are byte-copied from the source memory, implicit
     * pointer values are stored directly */
    if arg.Kind == ArgStruct {
        dst := alloc(reg.Int)
        buf.Push(self.mach.GenGetStackAddr(OutgoingArg(int64(arg.Offset)), dst))
        buf.PushAll(self.mach.GenMemcpy(dst, from[0], arg.Size, alloc))
    } else {
        buf.Push(self.mach.GenStoreStack(OutgoingArg(int64(arg.Offset)), from[0], arg.Type))
    }
}

// GenArg places one argument into its assigned location: register parts are
// bound for the call instruction, stack parts are stored into the outgoing
// area.
func (self *CallSite) GenArg(buf *InstBuf, idx int, from []reg.VReg, alloc func(reg.Class) reg.VReg) {
    if self.op.IsTailCall() && !self.tailFrame {
        panic("abi: tail-call argument placed before the temporary frame exists")
    }

    self.argsBegun = true
    arg := &self.sigs.Args(self.sig)[idx]

    switch arg.Kind {
        case ArgSlots       : self.argToSlots(buf, arg, from, alloc)
        case ArgStruct      : self.argToStructPtr(buf, arg, alloc)
        case ArgImplicitPtr : self.argToStructPtr(buf, arg, alloc)
        default             : panic("abi: invalid argument kind")
    }
}

func (self *CallSite) argToSlots(buf *InstBuf, arg *Arg, from []reg.VReg, alloc func(reg.Class) reg.VReg) {
    if len(from) != len(arg.Slots) {
        panic(fmt.Sprintf("abi: argument part count mismatch: %d != %d", len(from), len(arg.Slots)))
    }
    for i, slot := range arg.Slots {
        vv, ty := self.extendArg(buf, slot, from[i], alloc)
        if slot.Kind == SlotReg {
            self.uses = append(self.uses, RegPair{VReg: vv, PReg: slot.Reg})
        } else {
            buf.Push(self.mach.GenStoreStack(OutgoingArg(int64(slot.Offset)), vv, ty))
        }
    }
}

// extendArg widens a sub-word value with an explicit extend instruction when
// the convention demands it. Hardware truncation behavior is never relied
// upon for the upper bits.
func (self *CallSite) extendArg(buf *InstBuf, slot ArgSlot, vv reg.VReg, alloc func(reg.Class) reg.VReg) (reg.VReg, ir.Type) {
    if slot.Ext == ir.ExtNone || slot.Type.Bits() >= self.mach.WordBits() {
        return vv, slot.Type
    }
    if slot.Type.RegClass() != reg.Int {
        panic("abi: extension attribute on a non-word register class")
    }
    tmp := alloc(reg.Int)
    buf.Push(self.mach.GenExtend(tmp, vv, slot.Ext == ir.ExtSext, slot.Type.Bits(), self.mach.WordBits()))
    return tmp, self.mach.WordType()
}

// argToStructPtr binds the optional pointer slot of a struct-style argument
// to the address of its outgoing buffer.
func (self *CallSite) argToStructPtr(buf *InstBuf, arg *Arg, alloc func(reg.Class) reg.VReg) {
    p := arg.Pointer
    if p == nil {
        return
    }
    tmp := alloc(reg.Int)
    buf.Push(self.mach.GenGetStackAddr(OutgoingArg(int64(arg.Offset)), tmp))
    if p.Kind == SlotReg {
        self.uses = append(self.uses, RegPair{VReg: tmp, PReg: p.Reg})
    } else {
        buf.Push(self.mach.GenStoreStack(OutgoingArg(int64(p.Offset)), tmp, self.mach.WordType()))
    }
}

// EmitRetAreaPtr threads the hidden return-area pointer through the normal
// argument binding. An ordinary call points it at the outgoing return area;
// a tail call must re-forward the caller's own incoming pointer unchanged,
// because the final return values still land in the original caller's area.
func (self *CallSite) EmitRetAreaPtr(buf *InstBuf, alloc func(reg.Class) reg.VReg, caller *Callee) {
    idx, ok := self.sigs.StackRetArg(self.sig)
    if !ok {
        return
    }

    if !self.op.IsTailCall() {
        tmp := alloc(reg.Int)
        buf.Push(self.mach.GenGetStackAddr(OutgoingArg(int64(self.sigs.SizedStackArgSpace(self.sig))), tmp))
        self.GenArg(buf, idx, []reg.VReg{tmp}, alloc)
    } else if ptr, live := caller.RetAreaPtr(); live {
        self.GenArg(buf, idx, []reg.VReg{ptr}, alloc)
    } else {
        panic("abi: tail call needs the caller's own return-area pointer")
    }
}

/** Return Values **/

// GenRetVal binds one return value: register parts are defined by the call
// instruction, stack parts are loaded back from the outgoing return area.
// The return area holds nothing until the callee returns, so the loads are
// held back here and emitted by EmitCallInsts after the call instruction.
func (self *CallSite) GenRetVal(idx int, into []reg.VReg) {
    ret := &self.sigs.Rets(self.sig)[idx]
    if ret.Kind != ArgSlots {
        panic("abi: struct-style return values are arguments, not returns")
    }
    if len(into) != len(ret.Slots) {
        panic(fmt.Sprintf("abi: return part count mismatch: %d != %d", len(into), len(ret.Slots)))
    }

    base := int64(self.sigs.SizedStackArgSpace(self.sig))
    for i, slot := range ret.Slots {
        if slot.Kind == SlotReg {
            self.defs = append(self.defs, RegPair{VReg: into[i], PReg: slot.Reg})
        } else {
            self.retLoads = append(self.retLoads, self.mach.GenLoadStack(OutgoingArg(base + int64(slot.Offset)), into[i], slot.Type))
        }
    }
}

/** Call Emission **/

// EmitTailFrameAlloc reserves the temporary callee frame of a tail call in
// extra stack space below the current frame, before any argument is placed
// into it. Unwinding across the frame replacement depends on the frame
// pointer chain, so tail calls refuse to build without frame pointers.
func (self *CallSite) EmitTailFrameAlloc(buf *InstBuf) {
    if !self.op.IsTailCall() {
        panic("abi: temporary frames are for tail calls only")
    }
    if !self.flags.EnableFramePointers {
        panic("abi: tail calls require frame pointers")
    }

    self.tailFrame = true
    if nb := int32(self.sigs.SizedStackArgSpace(self.sig)); nb > 0 {
        buf.Push(self.mach.GenSPAdjust(-nb))
        buf.Push(self.mach.GenNominalSPAdjust(nb))
    }
}

// EmitCallInsts emits the call instruction, restores the outgoing stack
// space and flushes the pending return-area loads, in that order. The
// outgoing area is pre-allocated in the frame, so only
// a callee that pops its own stack arguments needs compensation: the pop
// moves the real SP, and a nominal-SP adjustment plus a re-reservation is
// emitted immediately so nominal-SP-relative offsets stay valid.
func (self *CallSite) EmitCallInsts(buf *InstBuf) {
    if self.emitted {
        panic("abi: call site emitted twice")
    }
    if self.op.IsTailCall() && !self.tailFrame {
        panic("abi: tail call emitted without its temporary frame")
    }

    self.emitted = true
    buf.PushAll(self.mach.GenCall(self.dest, self.uses, self.defs, self.clobbers, self.op))

    /* a tail call never comes back, nothing to restore */
    if self.op.IsTailCall() {
        return
    }

    /* compensate a callee-pop convention */
    cc := self.sigs.CallConv(self.sig)
    nb := int32(self.sigs.SizedStackArgSpace(self.sig))
    if cc.TailCalleePop() && nb > 0 {
        buf.Push(self.mach.GenNominalSPAdjust(-nb))
        buf.Push(self.mach.GenSPAdjust(-nb))
        buf.Push(self.mach.GenNominalSPAdjust(nb))
    }

    /* the return area is populated now, read back the overflowed values */
    buf.PushAll(self.retLoads)
}
