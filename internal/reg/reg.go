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

package reg

import (
    `fmt`
)

// Class is the register bank a value lives in.
type Class uint8

const (
    Int Class = iota
    Float
)

func (self Class) String() string {
    switch self {
        case Int   : return "int"
        case Float : return "float"
        default    : panic("reg: invalid register class")
    }
}

// RealReg is a hardware register in the target's own numbering. The target
// owns the encoding, the generic engine only moves these around.
type RealReg uint8

const (
    RealInvalid RealReg = 0xff
)

func (self RealReg) String() string {
    return fmt.Sprintf("r%d", uint8(self))
}

const (
    _IndexBits = 24
    _IndexMask = (1 << _IndexBits) - 1
    _ClassBit  = 1 << 30
    _RealBit   = 1 << 31
)

// VReg is either a virtual register awaiting allocation or a real register
// already pinned by the ABI, packed into one word so instruction operands
// stay cheap to copy.
type VReg uint32

const (
    VRegInvalid VReg = _IndexMask
)

func Virtual(class Class, index uint32) VReg {
    if index >= _IndexMask {
        panic("reg: virtual register index out of range")
    } else if class == Int {
        return VReg(index)
    } else {
        return VReg(index) | _ClassBit
    }
}

func FromReal(r RealReg, class Class) VReg {
    return Virtual(class, uint32(r)) | _RealBit
}

func (self VReg) IsReal() bool {
    return self & _RealBit != 0
}

func (self VReg) Real() RealReg {
    if !self.IsReal() {
        panic("reg: not a real register: " + self.String())
    } else {
        return RealReg(self & _IndexMask)
    }
}

func (self VReg) Class() Class {
    if self & _ClassBit == 0 {
        return Int
    } else {
        return Float
    }
}

func (self VReg) Index() uint32 {
    return uint32(self & _IndexMask)
}

func (self VReg) String() string {
    if self.IsReal() {
        return fmt.Sprintf("r%d%c", self.Index(), self.classTag())
    } else {
        return fmt.Sprintf("v%d%c", self.Index(), self.classTag())
    }
}

func (self VReg) classTag() byte {
    if self.Class() == Int {
        return 'i'
    } else {
        return 'f'
    }
}
