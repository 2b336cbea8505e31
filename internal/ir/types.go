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

package ir

import (
    `github.com/cloudwego/abigen/internal/reg`
)

// Type is the value type of one IR argument or return value. This is the
// small slice of the compiler's type system the ABI layer needs to see.
type Type uint8

const (
    Void Type = iota
    I8
    I16
    I32
    I64
    I128
    P64
    F32
    F64
    V128
    DynV128 // dynamic-length vector, sized per-target at lowering time
)

func (self Type) Bits() uint32 {
    switch self {
        case I8           : return 8
        case I16          : return 16
        case I32          : return 32
        case I64, P64, F64: return 64
        case F32          : return 32
        case I128, V128   : return 128
        default           : panic("ir: type has no fixed size: " + self.String())
    }
}

func (self Type) Bytes() uint32 {
    return self.Bits() / 8
}

func (self Type) IsInt() bool {
    switch self {
        case I8, I16, I32, I64, I128, P64: return true
        default                          : return false
    }
}

func (self Type) IsFloat() bool {
    switch self {
        case F32, F64, V128: return true
        default            : return false
    }
}

// IsDynamic reports whether the type has no size until the target scales it.
func (self Type) IsDynamic() bool {
    return self == DynV128
}

func (self Type) RegClass() reg.Class {
    if self.IsInt() {
        return reg.Int
    } else {
        return reg.Float
    }
}

func (self Type) String() string {
    switch self {
        case Void    : return "void"
        case I8      : return "i8"
        case I16     : return "i16"
        case I32     : return "i32"
        case I64     : return "i64"
        case I128    : return "i128"
        case P64     : return "p64"
        case F32     : return "f32"
        case F64     : return "f64"
        case V128    : return "v128"
        case DynV128 : return "dynv128"
        default      : return "???"
    }
}

// Ext is the sign- or zero-extension a sub-word value must receive before it
// fills a register-sized slot.
type Ext uint8

const (
    ExtNone Ext = iota
    ExtUext
    ExtSext
)

func (self Ext) String() string {
    switch self {
        case ExtNone : return "none"
        case ExtUext : return "uext"
        case ExtSext : return "sext"
        default      : panic("ir: invalid extension attribute")
    }
}
