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
    `testing`

    `github.com/stretchr/testify/require`
)

func TestType_Properties(t *testing.T) {
    require.Equal(t, uint32(64), I64.Bits())
    require.Equal(t, uint32(16), V128.Bytes())
    require.True(t, P64.IsInt())
    require.True(t, F32.IsFloat())
    require.True(t, DynV128.IsDynamic())
    require.Panics(t, func() { DynV128.Bits() })
    require.Panics(t, func() { Void.Bits() })
}

func TestCallConv_Properties(t *testing.T) {
    require.True(t, SystemV.Valid())
    require.False(t, CallConv(9).Valid())
    require.True(t, Tail.TailCalleePop())
    require.False(t, SystemV.TailCalleePop())
    require.True(t, Tail.SupportsTailCalls())
    require.False(t, Fast.SupportsTailCalls())
}

func TestSignature_StackLimitParam(t *testing.T) {
    sig := &Signature {
        Params: []Param {
            MkParam(I64),
            {Type: I64, Purpose: PurposeStackLimit},
            {Type: I32, Ext: ExtUext},
        },
        CallConv: Fast,
    }
    require.Equal(t, 1, sig.StackLimitParam())

    none := &Signature{Params: []Param{MkParam(I64)}}
    require.Equal(t, -1, none.StackLimitParam())
}

func TestSignature_Clone(t *testing.T) {
    sig := &Signature {
        Params   : []Param{MkParam(I64), MkStructParam(24)},
        Rets     : []Param{MkParam(F64)},
        CallConv : SystemV,
    }

    /* the copy is equal but fully detached from the original */
    dup := sig.Clone()
    require.Equal(t, sig, dup)
    require.NotSame(t, sig, dup)

    dup.Params[0] = MkParam(I8)
    dup.Rets[0] = MkParam(I32)
    require.Equal(t, I64, sig.Params[0].Type)
    require.Equal(t, F64, sig.Rets[0].Type)
}

func TestOpcode_Kinds(t *testing.T) {
    require.True(t, OpReturnCall.IsTailCall())
    require.True(t, OpReturnCallIndirect.IsIndirect())
    require.False(t, OpCall.IsTailCall())
    require.True(t, OpCallIndirect.IsIndirect())
}
