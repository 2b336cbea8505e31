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
    `github.com/cloudwego/abigen/internal/reg`
    `github.com/cloudwego/abigen/internal/utils`
)

// Sig is an interned signature handle. Signatures are shared across call
// sites and never mutated once created.
type Sig uint32

// SigData is the per-signature record: half-open index ranges into the
// shared location arena, the stack space each role consumes, and the index
// of the synthetic return-area pointer argument if one was injected.
//
// Returns are stored immediately before arguments in the arena, because
// whether a return-area pointer is needed must be decided before arguments
// are assigned: retsEnd is also the start of the argument range.
type SigData struct {
    cc                 ir.CallConv
    retsStart          uint32
    retsEnd            uint32
    argsEnd            uint32
    sizedStackArgSpace uint32
    sizedStackRetSpace uint32
    stackRetArg        int32 // index into the argument range, -1 if absent
}

func (self *SigData) String() string {
    return fmt.Sprintf(
        "{sig,%s,rets=[%d,%d),args=[%d,%d),argsp=%d,retsp=%d,sret=%d}",
        self.cc,
        self.retsStart, self.retsEnd,
        self.retsEnd, self.argsEnd,
        self.sizedStackArgSpace,
        self.sizedStackRetSpace,
        self.stackRetArg,
    )
}

// SigSet deduplicates signatures for one function compilation. All assigned
// locations of all signatures live in one growable arena, the per-signature
// records only hold index ranges into it.
type SigSet struct {
    mach MachineSpec
    args []Arg
    sigs []SigData
    refs map[*ir.Signature]Sig
}

func MakeSigSet(mach MachineSpec) *SigSet {
    return &SigSet {
        mach: mach,
        refs: make(map[*ir.Signature]Sig),
    }
}

// AddSelfSig interns the signature a function is compiled under. Interning
// the same signature reference twice is a caller bug.
func (self *SigSet) AddSelfSig(sig *ir.Signature) (Sig, error) {
    if _, ok := self.refs[sig]; ok {
        panic("abi: signature interned twice: " + sig.String())
    } else {
        return self.makeSig(sig)
    }
}

// AddCallSig interns a call-site signature reference, memoized so repeat
// call sites through the same reference reuse one Sig.
func (self *SigSet) AddCallSig(sig *ir.Signature) (Sig, error) {
    if sv, ok := self.refs[sig]; ok {
        return sv, nil
    } else {
        return self.makeSig(sig)
    }
}

func (self *SigSet) makeSig(sig *ir.Signature) (Sig, error) {
    if !sig.CallConv.Valid() {
        return 0, utils.EBadConv(sig.CallConv)
    }

    /* returns are assigned first: their overflow decides whether a hidden
     * return-area pointer must be appended to the arguments */
    sd := SigData{cc: sig.CallConv, retsStart: uint32(len(self.args))}
    rv := MakeArgVec(&self.args)
    retSpace, _, err := self.mach.ComputeArgLocs(sig.CallConv, sig.Rets, RoleRet, false, &rv)

    /* return assignment errors abort this signature */
    if err != nil {
        return 0, err
    }

    /* then the arguments, with the return-area pointer injected after all
     * formal parameters if the returns spilled to the stack */
    sd.retsEnd = uint32(len(self.args))
    av := MakeArgVec(&self.args)
    argSpace, retPtr, err := self.mach.ComputeArgLocs(sig.CallConv, sig.Params, RoleArg, retSpace > 0, &av)

    if err != nil {
        return 0, err
    }

    /* finalize the record */
    sd.argsEnd = uint32(len(self.args))
    sd.sizedStackArgSpace = argSpace
    sd.sizedStackRetSpace = retSpace
    sd.stackRetArg = int32(retPtr)

    /* intern it */
    sv := Sig(len(self.sigs))
    self.sigs = append(self.sigs, sd)
    self.refs[sig] = sv
    return sv, nil
}

func (self *SigSet) data(sv Sig) *SigData {
    if int(sv) >= len(self.sigs) {
        panic("abi: invalid signature handle")
    } else {
        return &self.sigs[sv]
    }
}

// Args returns the assigned argument locations, hidden return-area pointer
// included, as a slice into the shared arena.
func (self *SigSet) Args(sv Sig) []Arg {
    sd := self.data(sv)
    return self.args[sd.retsEnd:sd.argsEnd]
}

// Rets returns the assigned return locations as a slice into the shared
// arena.
func (self *SigSet) Rets(sv Sig) []Arg {
    sd := self.data(sv)
    return self.args[sd.retsStart:sd.retsEnd]
}

// NumArgs counts the IR-level arguments, excluding the hidden return-area
// pointer if one exists.
func (self *SigSet) NumArgs(sv Sig) int {
    if sd := self.data(sv); sd.stackRetArg < 0 {
        return int(sd.argsEnd - sd.retsEnd)
    } else {
        return int(sd.argsEnd - sd.retsEnd) - 1
    }
}

func (self *SigSet) NumRets(sv Sig) int {
    sd := self.data(sv)
    return int(sd.retsEnd - sd.retsStart)
}

// StackRetArg returns the index of the hidden return-area pointer inside
// Args, if the signature has one.
func (self *SigSet) StackRetArg(sv Sig) (int, bool) {
    if sd := self.data(sv); sd.stackRetArg < 0 {
        return 0, false
    } else {
        return int(sd.stackRetArg), true
    }
}

func (self *SigSet) SizedStackArgSpace(sv Sig) uint32 {
    return self.data(sv).sizedStackArgSpace
}

func (self *SigSet) SizedStackRetSpace(sv Sig) uint32 {
    return self.data(sv).sizedStackRetSpace
}

func (self *SigSet) CallConv(sv Sig) ir.CallConv {
    return self.data(sv).cc
}

// CallClobbers computes the clobber set of a call through this signature:
// every caller-saved register of the callee's convention, minus the
// registers that return values. A struct-return value is not a return at
// the IR level, so its register deliberately stays in the clobber set.
func (self *SigSet) CallClobbers(sv Sig) reg.Set {
    cs := self.mach.CallerSavedRegs(self.data(sv).cc)

    /* exempt the registers carrying real return values */
    for i := range self.Rets(sv) {
        if ret := &self.Rets(sv)[i]; ret.Kind == ArgSlots && ret.Purpose != ir.PurposeStructRet {
            for _, slot := range ret.Slots {
                if slot.Kind == SlotReg {
                    cs = cs.Del(slot.Reg)
                }
            }
        }
    }
    return cs
}
