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
    `github.com/davecgh/go-spew/spew`
)

// DumpLayout renders the whole post-allocation state of this function for
// debugging: the interned signature, slot offsets, and the computed frame.
func (self *Callee) DumpLayout() string {
    spew.Config.SortKeys = true
    return spew.Sdump(struct {
        Name       string
        Sig        *SigData
        Slots      []uint32
        Dynamic    []uint32
        SlotsSize  uint32
        Outgoing   uint32
        SpillSlots int
        Clobbered  string
        Frame      *FrameLayout
    }{
        Name       : self.fn,
        Sig        : self.sigs.data(self.sig),
        Slots      : self.sizedSlots,
        Dynamic    : self.dynamicSlots,
        SlotsSize  : self.stackslotsSize,
        Outgoing   : self.outgoingArgsSize,
        SpillSlots : self.spillslots,
        Clobbered  : self.clobbered.String(),
        Frame      : self.frame,
    })
}
