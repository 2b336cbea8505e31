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

    `github.com/cloudwego/abigen/internal/reg`
)

/** Frame Structure of a Generated Function
 *
 *                  (Previous Frame)
 *             ------------------------  ←  high addresses
 *               Incoming Stack Args
 *             ------------------------
 *                 Return Address           |
 *                 Saved Frame Ptr          |  setup area
 *        FP → ------------------------     |
 *               Clobbered Callee-Saves     | (decrease)
 *             ------------------------     ↓
 *                    Stack Slots
 *                    Spill Slots
 * nominal SP→ ------------------------
 *                 Outgoing Arguments
 *        SP → ------------------------  ←  low addresses
 */

// FrameLayout is the final shape of one function's stack frame, regions
// ordered from high to low addresses. Computed exactly once, after register
// allocation, and immutable thereafter.
type FrameLayout struct {
    IncomingArgsSize      uint32
    SetupAreaSize         uint32
    ClobberSize           uint32
    FixedFrameStorageSize uint32
    OutgoingArgsSize      uint32

    // ClobberedCalleeSaves is sorted by register number so save and restore
    // sequences walk it in a deterministic order.
    ClobberedCalleeSaves []reg.RealReg
}

// FrameSize is the byte distance the prologue moves SP below the setup area.
func (self *FrameLayout) FrameSize() uint32 {
    return self.ClobberSize + self.FixedFrameStorageSize + self.OutgoingArgsSize
}

// TotalSize sums all five regions.
func (self *FrameLayout) TotalSize() uint32 {
    return self.IncomingArgsSize + self.SetupAreaSize + self.FrameSize()
}

// NominalSPOffset is the distance from the real SP (after the prologue) up
// to the nominal SP every stack-slot reference is emitted against.
func (self *FrameLayout) NominalSPOffset() uint32 {
    return self.OutgoingArgsSize
}

func (self *FrameLayout) String() string {
    return fmt.Sprintf(
        "{frame,in=%d,setup=%d,clobber=%d,fixed=%d,out=%d,saves=%v}",
        self.IncomingArgsSize,
        self.SetupAreaSize,
        self.ClobberSize,
        self.FixedFrameStorageSize,
        self.OutgoingArgsSize,
        self.ClobberedCalleeSaves,
    )
}
