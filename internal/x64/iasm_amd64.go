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
    `github.com/chenzhuoyu/iasm/x86_64`
    `github.com/cloudwego/abigen/internal/reg`
)

/* the generic engine numbers registers 0..15 for the GPRs and 16..31 for
 * the XMM bank; the low 4 bits are the hardware encoding */

const (
    _XMMBase = 16
)

const (
    RAX = reg.RealReg(x86_64.RAX)
    RCX = reg.RealReg(x86_64.RCX)
    RDX = reg.RealReg(x86_64.RDX)
    RBX = reg.RealReg(x86_64.RBX)
    RSP = reg.RealReg(x86_64.RSP)
    RBP = reg.RealReg(x86_64.RBP)
    RSI = reg.RealReg(x86_64.RSI)
    RDI = reg.RealReg(x86_64.RDI)
    R8  = reg.RealReg(x86_64.R8)
    R9  = reg.RealReg(x86_64.R9)
    R10 = reg.RealReg(x86_64.R10)
    R11 = reg.RealReg(x86_64.R11)
    R12 = reg.RealReg(x86_64.R12)
    R13 = reg.RealReg(x86_64.R13)
    R14 = reg.RealReg(x86_64.R14)
    R15 = reg.RealReg(x86_64.R15)
)

const (
    XMM0 = reg.RealReg(_XMMBase + iota)
    XMM1
    XMM2
    XMM3
    XMM4
    XMM5
    XMM6
    XMM7
    XMM8
    XMM9
    XMM10
    XMM11
    XMM12
    XMM13
    XMM14
    XMM15
)

func isXMM(r reg.RealReg) bool {
    return r >= _XMMBase && r < _XMMBase + 16
}

func gpr(r reg.RealReg) x86_64.Register64 {
    if r >= _XMMBase {
        panic("x64: not a general purpose register: " + r.String())
    } else {
        return x86_64.Register64(r)
    }
}

func xmm(r reg.RealReg) x86_64.XMMRegister {
    if !isXMM(r) {
        panic("x64: not an xmm register: " + r.String())
    } else {
        return x86_64.XMMRegister(r - _XMMBase)
    }
}

func Ptr(base x86_64.Register, disp int32) *x86_64.MemoryOperand {
    return x86_64.Ptr(base, disp)
}

var gprNames = [16]string {
    "rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
    "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

var xmmNames = [16]string {
    "xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
    "xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15",
}

func regName(r reg.RealReg) string {
    if isXMM(r) {
        return xmmNames[r - _XMMBase]
    } else {
        return gprNames[r]
    }
}
