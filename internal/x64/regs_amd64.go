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
    `github.com/cloudwego/abigen/internal/ir`
    `github.com/cloudwego/abigen/internal/reg`
)

/* per-convention register assignment tables, RSP is never allocatable */

type _ConvDesc struct {
    argInts   []reg.RealReg
    argXmms   []reg.RealReg
    retInts   []reg.RealReg
    retXmms   []reg.RealReg
    saved     reg.Set
    structReg bool
}

var fastRegOrder = []reg.RealReg {
    RAX, RBX, RCX, RDI, RSI, R8, R9, R10, R11,
}

var sysvArgOrder = []reg.RealReg {
    RDI, RSI, RDX, RCX, R8, R9,
}

var xmmArgOrder = []reg.RealReg {
    XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7,
}

var convTab = map[ir.CallConv]*_ConvDesc {
    ir.Fast: {
        argInts   : fastRegOrder,
        argXmms   : xmmArgOrder,
        retInts   : fastRegOrder,
        retXmms   : xmmArgOrder,
        saved     : reg.MakeSet(
            RBP, R12, R13, R14, R15,
            XMM8, XMM9, XMM10, XMM11, XMM12, XMM13, XMM14, XMM15,
        ),
        structReg : true,
    },
    ir.SystemV: {
        argInts   : sysvArgOrder,
        argXmms   : xmmArgOrder,
        retInts   : []reg.RealReg{RAX, RDX},
        retXmms   : []reg.RealReg{XMM0, XMM1},
        saved     : reg.MakeSet(RBX, RBP, R12, R13, R14, R15),
        structReg : false,
    },
    ir.Tail: {
        argInts   : sysvArgOrder,
        argXmms   : xmmArgOrder,
        retInts   : []reg.RealReg{RAX, RDX},
        retXmms   : []reg.RealReg{XMM0, XMM1},
        saved     : reg.MakeSet(RBX, RBP, R12, R13, R14, R15),
        structReg : false,
    },
}

var allocatableGPRs = reg.MakeSet(
    RAX, RCX, RDX, RBX, RBP, RSI, RDI,
    R8, R9, R10, R11, R12, R13, R14, R15,
)

var allXMMs = reg.MakeSet(
    XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7,
    XMM8, XMM9, XMM10, XMM11, XMM12, XMM13, XMM14, XMM15,
)

func convDesc(cc ir.CallConv) *_ConvDesc {
    if cd, ok := convTab[cc]; ok {
        return cd
    } else {
        panic("x64: unknown calling convention: " + cc.String())
    }
}
