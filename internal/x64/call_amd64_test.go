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

// a fixed configuration keeps the copy strategy independent of the host CPU
func testArch(erms bool) *ArchSpec {
    return &ArchSpec {
        memcpy : "memcpy",
        probe  : "probe_stack",
        erms   : erms,
        vector : 16,
    }
}

func testAlloc() func(reg.Class) reg.VReg {
    n := uint32(100)
    return func(c reg.Class) reg.VReg {
        n++
        return reg.Virtual(c, n - 1)
    }
}

func TestCallSite_DirectWithStackArgs(t *testing.T) {
    m := testArch(true)
    sigs := abi.MakeSigSet(m)
    sig := &ir.Signature{Params: intParams(7), CallConv: ir.SystemV}

    cs, err := abi.NewCallSiteDirect(sigs, m, sig, "g", ir.RelocNear, opts.GetDefaultOptions())
    require.NoError(t, err)
    require.Equal(t, uint32(16), cs.OutgoingArgsSize())

    var buf abi.InstBuf
    alloc := testAlloc()
    for i := 0; i < 7; i++ {
        cs.GenArg(&buf, i, []reg.VReg{reg.Virtual(reg.Int, uint32(i))}, alloc)
    }
    cs.EmitCallInsts(&buf)

    require.Equal(t, []string {
        "movq v6i, outgoing_arg+0",
        "callq g[near]",
    }, fmtInsts(buf.Insts()))

    /* register arguments ride the call instruction itself */
    call := buf.Insts()[1].(*Instr)
    require.Len(t, call.Uses, 6)
    require.Equal(t, RDI, call.Uses[0].PReg)
    require.Equal(t, R9, call.Uses[5].PReg)
    require.Panics(t, func() { cs.EmitCallInsts(&buf) })
}

func TestCallSite_SubWordExtension(t *testing.T) {
    m := testArch(true)
    sigs := abi.MakeSigSet(m)
    sig := &ir.Signature {
        Params   : []ir.Param{{Type: ir.I8, Ext: ir.ExtSext}},
        CallConv : ir.SystemV,
    }

    cs, err := abi.NewCallSiteDirect(sigs, m, sig, "g", ir.RelocNear, opts.GetDefaultOptions())
    require.NoError(t, err)

    var buf abi.InstBuf
    cs.GenArg(&buf, 0, []reg.VReg{reg.Virtual(reg.Int, 0)}, testAlloc())
    require.Equal(t, []string {
        "movsbq v0i, v100i",
    }, fmtInsts(buf.Insts()))
}

func TestCallSite_StructCopyViaMemcpy(t *testing.T) {
    m := testArch(false)
    sigs := abi.MakeSigSet(m)
    sig := &ir.Signature{Params: []ir.Param{ir.MkStructParam(24)}, CallConv: ir.SystemV}

    cs, err := abi.NewCallSiteDirect(sigs, m, sig, "g", ir.RelocNear, opts.GetDefaultOptions())
    require.NoError(t, err)

    var buf abi.InstBuf
    alloc := testAlloc()
    vp := reg.Virtual(reg.Int, 0)
    cs.EmitCopyRegsToBuffer(&buf, 0, []reg.VReg{vp}, alloc)

    require.Equal(t, []string {
        "leaq outgoing_arg+0, v100i",
        "movq $24, v101i",
        "callq memcpy[far]",
    }, fmtInsts(buf.Insts()))

    /* the copy binds the libc argument registers */
    call := buf.Insts()[2].(*Instr)
    require.Equal(t, RDI, call.Uses[0].PReg)
    require.Equal(t, RSI, call.Uses[1].PReg)
    require.Equal(t, RDX, call.Uses[2].PReg)

    /* buffer copies are locked out once register args begin */
    cs.GenArg(&buf, 0, []reg.VReg{vp}, alloc)
    require.Panics(t, func() { cs.EmitCopyRegsToBuffer(&buf, 0, []reg.VReg{vp}, alloc) })
}

func TestCallSite_StructCopyViaRepMovs(t *testing.T) {
    m := testArch(true)
    sigs := abi.MakeSigSet(m)
    sig := &ir.Signature{Params: []ir.Param{ir.MkStructParam(24)}, CallConv: ir.SystemV}

    cs, err := abi.NewCallSiteDirect(sigs, m, sig, "g", ir.RelocNear, opts.GetDefaultOptions())
    require.NoError(t, err)

    var buf abi.InstBuf
    vp := reg.Virtual(reg.Int, 0)
    cs.EmitCopyRegsToBuffer(&buf, 0, []reg.VReg{vp}, testAlloc())

    require.Equal(t, []string {
        "leaq outgoing_arg+0, v100i",
        "rep_movsb v0i, v100i, $24",
    }, fmtInsts(buf.Insts()))
}

func TestCallSite_RetArea(t *testing.T) {
    m := testArch(true)
    sigs := abi.MakeSigSet(m)
    sig := &ir.Signature{Rets: intParams(3), CallConv: ir.SystemV}

    cs, err := abi.NewCallSiteDirect(sigs, m, sig, "g", ir.RelocNear, opts.GetDefaultOptions())
    require.NoError(t, err)
    require.Equal(t, uint32(16), cs.OutgoingArgsSize())

    var buf abi.InstBuf
    alloc := testAlloc()
    cs.EmitRetAreaPtr(&buf, alloc, nil)
    require.Equal(t, []string {
        "leaq outgoing_arg+0, v100i",
    }, fmtInsts(buf.Insts()))

    /* the overflowed return value loads back from the return area, strictly
     * after the call: the callee is what fills the area */
    va := reg.Virtual(reg.Int, 0)
    vb := reg.Virtual(reg.Int, 1)
    vc := reg.Virtual(reg.Int, 2)
    cs.GenRetVal(0, []reg.VReg{va})
    cs.GenRetVal(1, []reg.VReg{vb})
    cs.GenRetVal(2, []reg.VReg{vc})
    cs.EmitCallInsts(&buf)

    require.Equal(t, []string {
        "leaq outgoing_arg+0, v100i",
        "callq g[near]",
        "movq outgoing_arg+0, v2i",
    }, fmtInsts(buf.Insts()))
    call := buf.Insts()[1].(*Instr)
    require.Equal(t, []abi.RegPair {
        {VReg: va, PReg: RAX},
        {VReg: vb, PReg: RDX},
    }, call.Defs)
}

func TestCallSite_TailCall(t *testing.T) {
    m := testArch(true)
    sigs := abi.MakeSigSet(m)
    sig := &ir.Signature{Params: intParams(7), CallConv: ir.Tail}

    cs, err := abi.NewReturnCallSite(sigs, m, sig, "g", opts.GetDefaultOptions())
    require.NoError(t, err)

    var buf abi.InstBuf
    alloc := testAlloc()

    /* arguments may not be placed before the temporary frame exists */
    require.Panics(t, func() { cs.GenArg(&buf, 0, []reg.VReg{reg.Virtual(reg.Int, 0)}, alloc) })

    cs.EmitTailFrameAlloc(&buf)
    for i := 0; i < 7; i++ {
        cs.GenArg(&buf, i, []reg.VReg{reg.Virtual(reg.Int, uint32(i))}, alloc)
    }
    cs.EmitCallInsts(&buf)

    /* the temporary frame moves the real SP, the nominal adjustment keeps
     * slot addressing stable; a tail call never restores anything */
    require.Equal(t, []string {
        "subq $16, %rsp",
        "virtual_sp_offset_adj $16",
        "movq v6i, outgoing_arg+0",
        "jmpq g[far]",
    }, fmtInsts(buf.Insts()))
}

func TestCallSite_TailCallNeedsFramePointers(t *testing.T) {
    m := testArch(true)
    sigs := abi.MakeSigSet(m)
    sig := &ir.Signature{Params: intParams(1), CallConv: ir.Tail}

    flags := opts.GetDefaultOptions()
    flags.EnableFramePointers = false
    cs, err := abi.NewReturnCallSite(sigs, m, sig, "g", flags)
    require.NoError(t, err)

    var buf abi.InstBuf
    require.PanicsWithValue(t, "abi: tail calls require frame pointers", func() {
        cs.EmitTailFrameAlloc(&buf)
    })
}

func TestCallSite_TailCallNeedsTailConv(t *testing.T) {
    m := testArch(true)
    sigs := abi.MakeSigSet(m)
    sig := &ir.Signature{Params: intParams(1), CallConv: ir.SystemV}

    _, err := abi.NewReturnCallSite(sigs, m, sig, "g", opts.GetDefaultOptions())
    require.Error(t, err)
    require.IsType(t, abigen.UnsupportedError{}, err)
}

func TestCallSite_CalleePopCompensation(t *testing.T) {
    m := testArch(true)
    sigs := abi.MakeSigSet(m)
    sig := &ir.Signature{Params: intParams(7), CallConv: ir.Tail}

    /* an ordinary call into the tail convention: the callee pops 16 bytes
     * of stack arguments, the caller re-reserves them right away */
    cs, err := abi.NewCallSiteDirect(sigs, m, sig, "g", ir.RelocNear, opts.GetDefaultOptions())
    require.NoError(t, err)

    var buf abi.InstBuf
    cs.EmitCallInsts(&buf)
    require.Equal(t, []string {
        "callq g[near]",
        "virtual_sp_offset_adj $-16",
        "subq $16, %rsp",
        "virtual_sp_offset_adj $16",
    }, fmtInsts(buf.Insts()))
}

func TestCallSite_RetLoadAfterCalleePop(t *testing.T) {
    m := testArch(true)
    sigs := abi.MakeSigSet(m)
    sig := &ir.Signature {
        Params   : intParams(7),
        Rets     : intParams(3),
        CallConv : ir.Tail,
    }

    cs, err := abi.NewCallSiteDirect(sigs, m, sig, "g", ir.RelocNear, opts.GetDefaultOptions())
    require.NoError(t, err)
    require.Equal(t, uint32(32), cs.OutgoingArgsSize())

    var buf abi.InstBuf
    alloc := testAlloc()
    for i := 0; i < 7; i++ {
        cs.GenArg(&buf, i, []reg.VReg{reg.Virtual(reg.Int, uint32(i))}, alloc)
    }
    cs.EmitRetAreaPtr(&buf, alloc, nil)
    cs.GenRetVal(0, []reg.VReg{reg.Virtual(reg.Int, 10)})
    cs.GenRetVal(1, []reg.VReg{reg.Virtual(reg.Int, 11)})
    cs.GenRetVal(2, []reg.VReg{reg.Virtual(reg.Int, 2)})
    cs.EmitCallInsts(&buf)

    /* the overflow return loads only once the callee has written the area
     * and the popped argument space is re-reserved */
    require.Equal(t, []string {
        "movq v6i, outgoing_arg+0",
        "leaq outgoing_arg+16, v100i",
        "movq v100i, outgoing_arg+8",
        "callq g[near]",
        "virtual_sp_offset_adj $-16",
        "subq $16, %rsp",
        "virtual_sp_offset_adj $16",
        "movq outgoing_arg+16, v2i",
    }, fmtInsts(buf.Insts()))
}

func TestCallSite_TailCallForwardsRetArea(t *testing.T) {
    m := testArch(true)
    sigs := abi.MakeSigSet(m)

    caller, err := abi.NewCallee(&ir.Function {
        Name : "f",
        Sig  : &ir.Signature{Rets: intParams(3), CallConv: ir.Tail},
    }, m, sigs, opts.GetDefaultOptions())
    require.NoError(t, err)

    sig := &ir.Signature{Rets: intParams(3), CallConv: ir.Tail}
    cs, err := abi.NewReturnCallSite(sigs, m, sig, "g", opts.GetDefaultOptions())
    require.NoError(t, err)

    var buf abi.InstBuf
    alloc := testAlloc()
    cs.EmitTailFrameAlloc(&buf)

    /* without the caller's pointer loaded there is nothing to forward */
    require.Panics(t, func() { cs.EmitRetAreaPtr(&buf, alloc, caller) })

    /* the caller's own incoming pointer is re-forwarded, not a fresh
     * outgoing-area address */
    ptr := reg.Virtual(reg.Int, 50)
    caller.GenRetAreaPtrToReg(ptr)
    cs.EmitRetAreaPtr(&buf, alloc, caller)
    cs.EmitCallInsts(&buf)

    require.Equal(t, []string{"jmpq g[far]"}, fmtInsts(buf.Insts()))
    call := buf.Insts()[0].(*Instr)
    require.Equal(t, []abi.RegPair{{VReg: ptr, PReg: RDI}}, call.Uses)
}

func TestArch_MemcpyEmpty(t *testing.T) {
    m := testArch(false)
    require.Nil(t, m.GenMemcpy(reg.Virtual(reg.Int, 0), reg.Virtual(reg.Int, 1), 0, testAlloc()))
}
