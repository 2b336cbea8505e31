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
    `testing`

    `github.com/cloudwego/abigen`
    `github.com/cloudwego/abigen/internal/abi`
    `github.com/cloudwego/abigen/internal/ir`
    `github.com/cloudwego/abigen/internal/opts`
    `github.com/cloudwego/abigen/internal/reg`
    `github.com/stretchr/testify/require`
)

func intParams(n int) (pp []ir.Param) {
    for i := 0; i < n; i++ {
        pp = append(pp, ir.MkParam(ir.I64))
    }
    return
}

func internSig(t *testing.T, sig *ir.Signature) (*abi.SigSet, abi.Sig) {
    ss := abi.MakeSigSet(CreateArchSpec())
    sv, err := ss.AddCallSig(sig)
    require.NoError(t, err)
    return ss, sv
}

func regOf(t *testing.T, arg abi.Arg, i int) reg.RealReg {
    require.Equal(t, abi.ArgSlots, arg.Kind)
    require.Equal(t, abi.SlotReg, arg.Slots[i].Kind)
    return arg.Slots[i].Reg
}

func stackOff(t *testing.T, arg abi.Arg, i int) int32 {
    require.Equal(t, abi.ArgSlots, arg.Kind)
    require.Equal(t, abi.SlotStack, arg.Slots[i].Kind)
    return arg.Slots[i].Offset
}

func TestSigSet_CallSigMemoized(t *testing.T) {
    ss := abi.MakeSigSet(CreateArchSpec())
    sig := &ir.Signature {
        Params   : intParams(3),
        Rets     : intParams(1),
        CallConv : ir.SystemV,
    }

    /* repeat call sites through one signature reference share one handle */
    sa, err := ss.AddCallSig(sig)
    require.NoError(t, err)
    sb, err := ss.AddCallSig(sig)
    require.NoError(t, err)
    require.Equal(t, sa, sb)

    /* a physically distinct but identical signature assigns identically */
    sc, err := ss.AddCallSig(&ir.Signature {
        Params   : intParams(3),
        Rets     : intParams(1),
        CallConv : ir.SystemV,
    })
    require.NoError(t, err)
    require.NotEqual(t, sa, sc)
    require.Equal(t, ss.Args(sa), ss.Args(sc))
    require.Equal(t, ss.Rets(sa), ss.Rets(sc))
}

func TestSigSet_SelfSigInternedOnce(t *testing.T) {
    ss := abi.MakeSigSet(CreateArchSpec())
    sig := &ir.Signature{Params: intParams(1), CallConv: ir.SystemV}

    _, err := ss.AddSelfSig(sig)
    require.NoError(t, err)
    require.Panics(t, func() { _, _ = ss.AddSelfSig(sig) })
}

func TestArgLocs_SystemV(t *testing.T) {
    ss, sv := internSig(t, &ir.Signature {
        Params   : intParams(8),
        Rets     : []ir.Param{ir.MkParam(ir.I64)},
        CallConv : ir.SystemV,
    })

    args := ss.Args(sv)
    require.Len(t, args, 8)
    want := []reg.RealReg{RDI, RSI, RDX, RCX, R8, R9}
    for i, r := range want {
        require.Equal(t, r, regOf(t, args[i], 0))
    }

    /* overflow goes to the stack, 8 bytes apart, inside the arg space */
    require.Equal(t, int32(0), stackOff(t, args[6], 0))
    require.Equal(t, int32(8), stackOff(t, args[7], 0))
    require.Equal(t, uint32(16), ss.SizedStackArgSpace(sv))

    rets := ss.Rets(sv)
    require.Len(t, rets, 1)
    require.Equal(t, RAX, regOf(t, rets[0], 0))
    require.Equal(t, uint32(0), ss.SizedStackRetSpace(sv))
}

func TestArgLocs_Fast(t *testing.T) {
    ss, sv := internSig(t, &ir.Signature {
        Params   : intParams(10),
        CallConv : ir.Fast,
    })

    args := ss.Args(sv)
    require.Len(t, args, 10)
    want := []reg.RealReg{RAX, RBX, RCX, RDI, RSI, R8, R9, R10, R11}
    for i, r := range want {
        require.Equal(t, r, regOf(t, args[i], 0))
    }
    require.Equal(t, int32(0), stackOff(t, args[9], 0))
}

func TestArgLocs_FloatMixed(t *testing.T) {
    ss, sv := internSig(t, &ir.Signature {
        Params: []ir.Param {
            ir.MkParam(ir.F64),
            ir.MkParam(ir.I64),
            ir.MkParam(ir.F32),
            ir.MkParam(ir.V128),
        },
        CallConv: ir.SystemV,
    })

    args := ss.Args(sv)
    require.Equal(t, XMM0, regOf(t, args[0], 0))
    require.Equal(t, RDI, regOf(t, args[1], 0))
    require.Equal(t, XMM1, regOf(t, args[2], 0))
    require.Equal(t, XMM2, regOf(t, args[3], 0))
}

func TestArgLocs_I128(t *testing.T) {
    ss, sv := internSig(t, &ir.Signature {
        Params   : append(intParams(5), ir.MkParam(ir.I128)),
        CallConv : ir.SystemV,
    })

    /* one register left is not enough, both halves stay adjacent in memory */
    args := ss.Args(sv)
    require.Len(t, args[5].Slots, 2)
    require.Equal(t, int32(0), stackOff(t, args[5], 0))
    require.Equal(t, int32(8), stackOff(t, args[5], 1))

    ss, sv = internSig(t, &ir.Signature {
        Params   : []ir.Param{ir.MkParam(ir.I128)},
        CallConv : ir.SystemV,
    })
    args = ss.Args(sv)
    require.Equal(t, RDI, regOf(t, args[0], 0))
    require.Equal(t, RSI, regOf(t, args[0], 1))
}

func TestArgLocs_StructArg(t *testing.T) {
    ss, sv := internSig(t, &ir.Signature {
        Params   : []ir.Param{ir.MkStructParam(24), ir.MkParam(ir.I64)},
        CallConv : ir.SystemV,
    })

    /* System V addresses the buffer positionally, no pointer slot */
    args := ss.Args(sv)
    require.Equal(t, abi.ArgStruct, args[0].Kind)
    require.Nil(t, args[0].Pointer)
    require.Equal(t, int32(0), args[0].Offset)
    require.Equal(t, uint32(24), args[0].Size)
    require.Equal(t, RDI, regOf(t, args[1], 0))

    /* the internal convention carries the buffer address in a register */
    ss, sv = internSig(t, &ir.Signature {
        Params   : []ir.Param{ir.MkStructParam(24)},
        CallConv : ir.Fast,
    })
    args = ss.Args(sv)
    require.Equal(t, abi.ArgStruct, args[0].Kind)
    require.NotNil(t, args[0].Pointer)
    require.Equal(t, abi.SlotReg, args[0].Pointer.Kind)
    require.Equal(t, RAX, args[0].Pointer.Reg)
}

func TestArgLocs_VectorByImplicitPtr(t *testing.T) {
    ss, sv := internSig(t, &ir.Signature {
        Params   : []ir.Param{ir.MkParam(ir.V128)},
        CallConv : ir.Fast,
    })

    args := ss.Args(sv)
    require.Equal(t, abi.ArgImplicitPtr, args[0].Kind)
    require.Equal(t, ir.V128, args[0].Type)
    require.Equal(t, uint32(16), args[0].Size)
    require.Equal(t, RAX, args[0].Pointer.Reg)
}

func TestArgLocs_DynamicRejected(t *testing.T) {
    ss := abi.MakeSigSet(CreateArchSpec())
    _, err := ss.AddCallSig(&ir.Signature {
        Params   : []ir.Param{ir.MkParam(ir.DynV128)},
        CallConv : ir.SystemV,
    })
    require.Error(t, err)
    require.IsType(t, abigen.UnsupportedError{}, err)
}

func TestArgLocs_RetArea(t *testing.T) {
    ss, sv := internSig(t, &ir.Signature {
        Params   : intParams(1),
        Rets     : intParams(3),
        CallConv : ir.SystemV,
    })

    /* two return registers, the third return overflows */
    rets := ss.Rets(sv)
    require.Equal(t, RAX, regOf(t, rets[0], 0))
    require.Equal(t, RDX, regOf(t, rets[1], 0))
    require.Equal(t, int32(0), stackOff(t, rets[2], 0))
    require.Equal(t, uint32(16), ss.SizedStackRetSpace(sv))

    /* which injects the hidden return-area pointer after the formals */
    idx, ok := ss.StackRetArg(sv)
    require.True(t, ok)
    require.Equal(t, 1, idx)
    require.Equal(t, 1, ss.NumArgs(sv))

    args := ss.Args(sv)
    require.Len(t, args, 2)
    require.Equal(t, ir.PurposeStructRet, args[1].Purpose)
    require.Equal(t, RSI, regOf(t, args[1], 0))

    /* return registers are exempt from the call clobber set, the hidden
     * pointer register is not */
    cs := ss.CallClobbers(sv)
    require.False(t, cs.Has(RAX))
    require.False(t, cs.Has(RDX))
    require.True(t, cs.Has(RSI))
    require.True(t, cs.Has(RCX))
    require.True(t, cs.Has(XMM0))
    require.False(t, cs.Has(RBX))
}

func TestFrameLayout_Alignment(t *testing.T) {
    m := CreateArchSpec()
    flags := opts.GetDefaultOptions()

    for _, fixed := range []uint32{0, 16, 32, 48} {
        for _, out := range []uint32{0, 8, 24} {
            for _, fp := range []bool{true, false} {
                flags.EnableFramePointers = fp
                fl := m.ComputeFrameLayout(ir.SystemV, flags, reg.MakeSet(RBX, R12, XMM8), false, 8, fixed, out)
                require.Equal(t, uint32(0), (fl.SetupAreaSize + fl.FrameSize()) % 16)
            }
        }
    }
}

func TestFrameLayout_Regions(t *testing.T) {
    m := CreateArchSpec()
    flags := opts.GetDefaultOptions()

    fl := m.ComputeFrameLayout(ir.Fast, flags, reg.MakeSet(R12, R13, RAX, XMM8, XMM1), true, 8, 16, 24)
    require.Equal(t, uint32(8), fl.IncomingArgsSize)
    require.Equal(t, uint32(16), fl.SetupAreaSize)

    /* only clobbered callee-saves are saved: rax and xmm1 are caller-saved
     * under the internal convention, r12 and r13 take 8 bytes each, xmm8 is
     * 16-aligned and 16 wide */
    require.Equal(t, []reg.RealReg{R12, R13, XMM8}, fl.ClobberedCalleeSaves)
    require.Equal(t, uint32(32), fl.ClobberSize)
    require.Equal(t, uint32(32), fl.OutgoingArgsSize)
    require.Equal(t, uint32(0), (fl.SetupAreaSize + fl.FrameSize()) % 16)
}

func TestCallerSaved_DisjointFromCalleeSaved(t *testing.T) {
    m := CreateArchSpec()
    for _, cc := range []ir.CallConv{ir.Fast, ir.SystemV, ir.Tail} {
        caller := m.CallerSavedRegs(cc)
        callee := m.CalleeSavedRegs(cc)
        require.Equal(t, 0, caller.Intersect(callee).Count())
        require.False(t, caller.Has(RSP))
        require.False(t, callee.Has(RSP))
    }
}
