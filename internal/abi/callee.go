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
    `math`

    `github.com/cloudwego/abigen/internal/ir`
    `github.com/cloudwego/abigen/internal/opts`
    `github.com/cloudwego/abigen/internal/reg`
    `github.com/cloudwego/abigen/internal/utils`
    `github.com/oleiade/lane`
)

const (
    // frames at least this large get an unconditional lower-bound trap
    // before the limit addition, so a wrapped sum cannot slip past the
    // bounds check
    _BigFrameSize = 32768
)

// Callee drives the body side of the ABI for one function: argument copy-in,
// stack-slot layout, frame-layout computation, prologue/epilogue emission,
// spills, reloads and stack maps.
//
// Lifecycle: constructed before instruction selection, mutated while
// selection runs (slots and call sites accumulate), then finalized with
// SetClobbered / SetNumSpillSlots / ComputeFrameLayout once register
// allocation has run. Everything after that point is read-only.
type Callee struct {
    fn               string
    sig              Sig
    mach             MachineSpec
    sigs             *SigSet
    flags            opts.Options
    isLeaf           bool
    sizedSlots       []uint32
    dynamicSlots     []uint32
    stackslotsSize   uint32
    outgoingArgsSize uint32
    regArgs          *lane.Queue
    retPairs         []RegPair
    ptrTemps         map[int]reg.VReg
    retAreaPtr       reg.VReg
    stackLimit       int
    spillslots       int
    clobbered        reg.Set
    frame            *FrameLayout
}

func NewCallee(fn *ir.Function, mach MachineSpec, sigs *SigSet, flags opts.Options) (*Callee, error) {
    sv, err := sigs.AddSelfSig(fn.Sig)
    if err != nil {
        return nil, err
    }

    /* lay out the declared stack slots up front, their offsets are fixed
     * for the entire compilation */
    self := &Callee {
        fn         : fn.Name,
        sig        : sv,
        mach       : mach,
        sigs       : sigs,
        flags      : flags,
        isLeaf     : true,
        regArgs    : lane.NewQueue(),
        ptrTemps   : make(map[int]reg.VReg),
        retAreaPtr : reg.VRegInvalid,
        stackLimit : fn.Sig.StackLimitParam(),
        spillslots : -1,
    }

    if self.stackLimit >= 0 {
        self.checkLimitScratch(sigs.Args(sv))
    }
    if err = self.layoutSlots(fn); err != nil {
        return nil, err
    } else {
        return self, nil
    }
}

// checkLimitScratch rejects signatures whose arguments overlap the scratch
// register of the stack check. The prologue writes that register before any
// argument is copied out, so an argument living there would be destroyed.
// The stack-limit argument itself is exempt: it is consumed by the check.
func (self *Callee) checkLimitScratch(args []Arg) {
    tmp := self.mach.StackLimitTempReg().Real()
    for i := range args {
        if i == self.stackLimit {
            continue
        }
        for _, slot := range args[i].Slots {
            if slot.Kind == SlotReg && slot.Reg == tmp {
                panic(fmt.Sprintf("abi: argument %d occupies the stack-check scratch register", i))
            }
        }
        if p := args[i].Pointer; p != nil && p.Kind == SlotReg && p.Reg == tmp {
            panic(fmt.Sprintf("abi: argument %d occupies the stack-check scratch register", i))
        }
    }
}

func (self *Callee) layoutSlots(fn *ir.Function) error {
    off := uint64(0)
    word := uint64(self.mach.WordBits() / 8)

    /* sized slots first, each aligned to the word size */
    for _, slot := range fn.SizedSlots {
        off = alignUp(off, word)
        self.sizedSlots = append(self.sizedSlots, uint32(off))
        off += uint64(slot.Size)
        if off > math.MaxInt32 {
            return utils.ELimit("stack slot offset", int64(off))
        }
    }

    /* dynamic slots after, sized by the target */
    for _, slot := range fn.DynamicSlots {
        nb, err := self.mach.DynamicTypeSize(slot.Type)
        if err != nil {
            return err
        }
        off = alignUp(off, word)
        self.dynamicSlots = append(self.dynamicSlots, uint32(off))
        off += uint64(nb)
        if off > math.MaxInt32 {
            return utils.ELimit("stack slot offset", int64(off))
        }
    }

    self.stackslotsSize = uint32(alignUp(off, word))
    return nil
}

func (self *Callee) Name() string {
    return self.fn
}

func (self *Callee) Sig() Sig {
    return self.sig
}

func (self *Callee) CallConv() ir.CallConv {
    return self.sigs.CallConv(self.sig)
}

func (self *Callee) ArgCount() int {
    return self.sigs.NumArgs(self.sig)
}

func (self *Callee) RetCount() int {
    return self.sigs.NumRets(self.sig)
}

func (self *Callee) StackSlotsSize() uint32 {
    return self.stackslotsSize
}

func (self *Callee) SizedStackSlotOffset(i int) uint32 {
    return self.sizedSlots[i]
}

func (self *Callee) DynamicStackSlotOffset(i int) uint32 {
    return self.dynamicSlots[i]
}

// SizedStackSlotAddr materializes the address of a declared stack slot,
// relative to the nominal SP.
func (self *Callee) SizedStackSlotAddr(i int, into reg.VReg) Inst {
    return self.mach.GenGetStackAddr(SlotOffset(int64(self.sizedSlots[i])), into)
}

/** Argument Copy-In **/

// TempsNeeded lists the types of the scratch registers argument setup needs.
// Implicit-pointer arguments are dereferenced as part of argument setup,
// ahead of any ordinary selection-allocated vreg, so their pointer temps
// must exist before selection starts.
func (self *Callee) TempsNeeded() (tt []ir.Type) {
    for _, arg := range self.sigs.Args(self.sig) {
        if arg.Kind == ArgImplicitPtr {
            tt = append(tt, self.mach.WordType())
        }
    }
    return
}

// InitTemps hands over the vregs for TempsNeeded, in the same order.
func (self *Callee) InitTemps(tmps []reg.VReg) {
    i := 0
    for idx, arg := range self.sigs.Args(self.sig) {
        if arg.Kind == ArgImplicitPtr {
            if i >= len(tmps) {
                panic("abi: not enough temps for argument setup")
            }
            self.ptrTemps[idx] = tmps[i]
            i++
        }
    }
}

// GenCopyArgToRegs generates the copy of one incoming argument into the
// vregs the body will read it from. Register parts are not copied here but
// queued for the argument-setup pseudo-instruction.
func (self *Callee) GenCopyArgToRegs(idx int, into []reg.VReg) []Inst {
    var buf InstBuf
    arg := &self.sigs.Args(self.sig)[idx]

    switch arg.Kind {
        case ArgSlots       : self.copySlotsIn(&buf, arg, into)
        case ArgStruct      : self.copyStructIn(&buf, arg, into)
        case ArgImplicitPtr : self.copyImplicitIn(&buf, arg, idx, into)
        default             : panic("abi: invalid argument kind")
    }
    return buf.Insts()
}

func (self *Callee) copySlotsIn(buf *InstBuf, arg *Arg, into []reg.VReg) {
    if len(into) != len(arg.Slots) {
        panic(fmt.Sprintf("abi: argument part count mismatch: %d != %d", len(into), len(arg.Slots)))
    }
    for i, slot := range arg.Slots {
        if slot.Kind == SlotReg {
            self.regArgs.Enqueue(RegPair{VReg: into[i], PReg: slot.Reg})
        } else {
            buf.Push(self.mach.GenLoadStack(IncomingArg(int64(slot.Offset)), into[i], self.loadType(slot)))
        }
    }
}

func (self *Callee) copyStructIn(buf *InstBuf, arg *Arg, into []reg.VReg) {
    if p := arg.Pointer; p == nil {
        /* no pointer slot: the buffer sits at a known incoming offset */
        buf.Push(self.mach.GenGetStackAddr(IncomingArg(int64(arg.Offset)), into[0]))
    } else if p.Kind == SlotReg {
        self.regArgs.Enqueue(RegPair{VReg: into[0], PReg: p.Reg})
    } else {
        buf.Push(self.mach.GenLoadStack(IncomingArg(int64(p.Offset)), into[0], self.mach.WordType()))
    }
}

func (self *Callee) copyImplicitIn(buf *InstBuf, arg *Arg, idx int, into []reg.VReg) {
    tmp, ok := self.ptrTemps[idx]
    if !ok {
        panic("abi: implicit pointer argument temps not initialized")
    }

    /* bring the pointer into the temp, then load the value through it */
    if p := arg.Pointer; p.Kind == SlotReg {
        self.regArgs.Enqueue(RegPair{VReg: tmp, PReg: p.Reg})
    } else {
        buf.Push(self.mach.GenLoadStack(IncomingArg(int64(p.Offset)), tmp, self.mach.WordType()))
    }
    buf.Push(self.mach.GenLoadBaseOffset(into[0], tmp, 0, arg.Type))
}

// a sub-word part the convention already widened is loaded at word width, so
// the upper bits arrive convention-compliant
func (self *Callee) loadType(slot ArgSlot) ir.Type {
    if slot.Ext != ir.ExtNone && slot.Type.Bits() < self.mach.WordBits() {
        return self.mach.WordType()
    } else {
        return slot.Type
    }
}

// GenArgSetupInsts drains the queued register-argument bindings into the one
// pseudo-instruction that defines them all at function entry.
func (self *Callee) GenArgSetupInsts() Inst {
    nb := self.regArgs.Size()
    pp := make([]RegPair, 0, nb)
    for !self.regArgs.Empty() {
        pp = append(pp, self.regArgs.Dequeue().(RegPair))
    }
    return self.mach.GenArgs(pp)
}

// GenRetAreaPtrToReg copies the synthetic return-area pointer argument into
// a vreg and remembers it for return-value stores and tail calls.
func (self *Callee) GenRetAreaPtrToReg(into reg.VReg) []Inst {
    idx, ok := self.sigs.StackRetArg(self.sig)
    if !ok {
        panic("abi: signature has no return-area pointer")
    }
    self.retAreaPtr = into
    return self.GenCopyArgToRegs(idx, []reg.VReg{into})
}

// RetAreaPtr returns the vreg holding the incoming return-area pointer, if
// GenRetAreaPtrToReg has run.
func (self *Callee) RetAreaPtr() (reg.VReg, bool) {
    return self.retAreaPtr, self.retAreaPtr != reg.VRegInvalid
}

/** Return Values **/

// GenCopyRegsToRetvals generates the copy of one return value from the vregs
// holding it into its assigned location. Register parts are accumulated for
// the return pseudo-instruction.
func (self *Callee) GenCopyRegsToRetvals(idx int, from []reg.VReg) []Inst {
    var buf InstBuf
    ret := &self.sigs.Rets(self.sig)[idx]

    if ret.Kind != ArgSlots {
        panic("abi: struct-style return values are arguments, not returns")
    }
    if len(from) != len(ret.Slots) {
        panic(fmt.Sprintf("abi: return part count mismatch: %d != %d", len(from), len(ret.Slots)))
    }

    for i, slot := range ret.Slots {
        if slot.Kind == SlotReg {
            self.retvalToReg(&buf, slot, from[i])
        } else {
            self.retvalToStack(&buf, slot, from[i])
        }
    }
    return buf.Insts()
}

func (self *Callee) retvalToReg(buf *InstBuf, slot ArgSlot, from reg.VReg) {
    vv := from

    /* widen sub-word values explicitly, hardware truncation behavior is not
     * part of any convention */
    if slot.Ext != ir.ExtNone && slot.Type.Bits() < self.mach.WordBits() {
        vv = reg.FromReal(slot.Reg, slot.Type.RegClass())
        buf.Push(self.mach.GenExtend(vv, from, slot.Ext == ir.ExtSext, slot.Type.Bits(), self.mach.WordBits()))
    }
    self.retPairs = append(self.retPairs, RegPair{VReg: vv, PReg: slot.Reg})
}

func (self *Callee) retvalToStack(buf *InstBuf, slot ArgSlot, from reg.VReg) {
    if self.retAreaPtr == reg.VRegInvalid {
        panic("abi: stack return value without a return-area pointer")
    }
    buf.Push(self.mach.GenStoreBaseOffset(self.retAreaPtr, slot.Offset, from, slot.Type))
}

// GenRetsInst builds the return pseudo-instruction using every register
// return accumulated so far.
func (self *Callee) GenRetsInst() Inst {
    return self.mach.GenRets(self.retPairs)
}

/** Frame Layout **/

// AccumulateOutgoingArgsSize raises the outgoing-argument high-water mark
// for one call this function makes.
func (self *Callee) AccumulateOutgoingArgsSize(size uint32) {
    self.isLeaf = false
    if size > self.outgoingArgsSize {
        self.outgoingArgsSize = size
    }
}

func (self *Callee) IsLeaf() bool {
    return self.isLeaf
}

// SetNumSpillSlots records the spill-slot count once register allocation has
// run.
func (self *Callee) SetNumSpillSlots(n int) {
    if n < 0 {
        panic("abi: negative spill slot count")
    } else {
        self.spillslots = n
    }
}

// SetClobbered records the set of registers the allocated body writes.
func (self *Callee) SetClobbered(cs reg.Set) {
    self.clobbered = cs
}

// ComputeFrameLayout fixes the final frame shape. Requires the spill-slot
// count and the clobbered set, so it can only run after register allocation.
func (self *Callee) ComputeFrameLayout() error {
    if self.frame != nil {
        panic("abi: frame layout computed twice")
    }
    if self.spillslots < 0 {
        panic("abi: frame layout requires the spill slot count")
    }

    /* fixed frame storage, rounded up to the convention's stack alignment */
    cc := self.CallConv()
    nb := uint64(self.stackslotsSize) + uint64(self.spillslots) * uint64(self.mach.SpillSlotSize())
    nb = alignUp(nb, uint64(self.mach.StackAlign(cc)))
    if nb > math.MaxInt32 {
        return utils.ELimit("fixed frame size", int64(nb))
    }

    /* the target carves the five regions */
    fl := self.mach.ComputeFrameLayout(
        cc,
        self.flags,
        self.clobbered,
        self.isLeaf,
        self.sigs.SizedStackArgSpace(self.sig),
        uint32(nb),
        self.outgoingArgsSize,
    )

    if uint64(fl.TotalSize()) > math.MaxInt32 {
        return utils.ELimit("frame size", int64(fl.TotalSize()))
    }
    self.frame = &fl
    return nil
}

// FrameLayout returns the computed frame layout. Calling it before
// ComputeFrameLayout is a caller bug.
func (self *Callee) FrameLayout() *FrameLayout {
    if self.frame == nil {
        panic("abi: frame layout queried before computation")
    } else {
        return self.frame
    }
}

func (self *Callee) FrameSize() uint32 {
    return self.FrameLayout().FrameSize()
}

/** Prologue & Epilogue **/

// GenPrologue emits frame setup, the optional stack-limit check, the
// optional stack probe, and the clobber-save sequence that also allocates
// the fixed and outgoing frame storage.
func (self *Callee) GenPrologue() []Inst {
    var buf InstBuf
    cc := self.CallConv()
    fl := self.FrameLayout()

    /* target frame setup */
    setup := fl.SetupAreaSize > 0
    buf.PushAll(self.mach.GenPrologueFrameSetup(cc, self.flags, setup))

    /* stack-limit check against the whole prospective frame: a leaf never
     * calls further, so its own setup area is not counted */
    if self.stackLimit >= 0 {
        nb := fl.FrameSize()
        if !self.isLeaf {
            nb += fl.SetupAreaSize
        }
        self.insertStackCheck(&buf, nb)
    }

    /* guard-page probing for oversized frames */
    if nb := fl.FrameSize(); self.flags.NeedsProbeStack(nb) {
        if self.flags.InlineProbeStack {
            buf.PushAll(self.mach.GenInlineProbestack(nb, self.flags.GuardPageSize))
        } else {
            buf.PushAll(self.mach.GenProbestack(nb))
        }
    }

    /* clobber saves allocate the rest of the frame */
    buf.PushAll(self.mach.GenClobberSave(cc, fl))
    return buf.Insts()
}

func (self *Callee) insertStackCheck(buf *InstBuf, frameSize uint32) {
    limit := self.stackLimitReg(buf)

    /* the limit addition below could wrap for huge frames; trap on the raw
     * limit first so a wrapped sum cannot pass the check */
    if frameSize >= _BigFrameSize {
        buf.PushAll(self.mach.GenStackLowerBoundTrap(limit))
    }
    if frameSize > 0 {
        scratch := self.mach.StackLimitTempReg()
        buf.PushAll(self.mach.GenAddImm(scratch, limit, frameSize))
        buf.PushAll(self.mach.GenStackLowerBoundTrap(scratch))
    }
}

func (self *Callee) stackLimitReg(buf *InstBuf) reg.VReg {
    arg := &self.sigs.Args(self.sig)[self.stackLimit]

    /* the prologue runs after register allocation, so the limit value is
     * read directly from its home */
    if slot := arg.Slots[0]; slot.Kind == SlotReg {
        return reg.FromReal(slot.Reg, reg.Int)
    } else {
        tmp := self.mach.StackLimitTempReg()
        buf.Push(self.mach.GenLoadStack(IncomingArg(int64(slot.Offset)), tmp, self.mach.WordType()))
        return tmp
    }
}

// GenEpilogue restores clobbers, tears down the frame and returns. No
// nominal-SP bookkeeping is needed here: nothing references stack slots
// between the clobber restore and the return.
func (self *Callee) GenEpilogue() []Inst {
    var buf InstBuf
    cc := self.CallConv()
    fl := self.FrameLayout()

    buf.PushAll(self.mach.GenClobberRestore(cc, fl))
    buf.PushAll(self.mach.GenEpilogueFrameRestore(cc, self.flags, fl.SetupAreaSize > 0))

    /* the tail convention pops its own incoming stack arguments */
    if cc.TailCalleePop() {
        buf.PushAll(self.mach.GenReturn(cc, fl.IncomingArgsSize))
    } else {
        buf.PushAll(self.mach.GenReturn(cc, 0))
    }
    return buf.Insts()
}

/** Spills & Reloads **/

// SpillSlotOffset is the nominal-SP-relative byte offset of one spill slot.
// Spill slots live directly above the declared stack slots.
func (self *Callee) SpillSlotOffset(slot int) int64 {
    return int64(self.stackslotsSize) + int64(slot) * int64(self.mach.SpillSlotSize())
}

func (self *Callee) GenSpill(slot int, from reg.VReg, vt ir.Type) Inst {
    return self.mach.GenStoreStack(SlotOffset(self.SpillSlotOffset(slot)), from, vt)
}

func (self *Callee) GenReload(slot int, into reg.VReg, vt ir.Type) Inst {
    return self.mach.GenLoadStack(SlotOffset(self.SpillSlotOffset(slot)), into, vt)
}

/** Stack Maps **/

// BuildStackMap records the pointer-ness of every fixed-frame slot at one
// safepoint: declared stack slots first (never pointers at this layer), then
// one entry per spill slot as reported by the register allocator.
func (self *Callee) BuildStackMap(spillPtrs []bool) *StackMap {
    if self.spillslots >= 0 && len(spillPtrs) != self.spillslots {
        panic("abi: stack map does not cover every spill slot")
    }

    var m StackMapBuilder
    word := self.mach.WordBits() / 8
    m.AddFields(int(self.stackslotsSize / word), false)
    for _, ptr := range spillPtrs {
        m.AddField(ptr)
    }
    return m.Build()
}

func alignUp(v uint64, a uint64) uint64 {
    return (v + a - 1) &^ (a - 1)
}
