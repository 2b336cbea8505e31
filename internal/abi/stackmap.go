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
    `strings`
)

type Bitmap struct {
    N int
    B []byte
}

func (self *Bitmap) grow() {
    if self.N >= len(self.B) * 8 {
        self.B = append(self.B, 0)
    }
}

func (self *Bitmap) mark(i int, bv int) {
    if bv != 0 {
        self.B[i / 8] |= 1 << (i % 8)
    } else {
        self.B[i / 8] &^= 1 << (i % 8)
    }
}

func (self *Bitmap) Get(i int) bool {
    if i >= self.N {
        panic("bitmap: invalid bit position")
    } else {
        return self.B[i / 8] & (1 << (i % 8)) != 0
    }
}

func (self *Bitmap) Append(bv int) {
    self.grow()
    self.mark(self.N, bv)
    self.N++
}

func (self *Bitmap) AppendMany(n int, bv int) {
    for i := 0; i < n; i++ {
        self.Append(bv)
    }
}

// StackMap records which word-sized frame slots hold pointers at one
// safepoint, one bit per slot from the lowest slot upward.
type StackMap struct {
    b Bitmap
}

func (self *StackMap) Len() int {
    return self.b.N
}

func (self *StackMap) IsPtr(i int) bool {
    return self.b.Get(i)
}

func (self *StackMap) String() string {
    var sb strings.Builder
    for i := 0; i < self.b.N; i++ {
        if self.b.Get(i) {
            sb.WriteByte('1')
        } else {
            sb.WriteByte('0')
        }
    }
    return sb.String()
}

type StackMapBuilder struct {
    n int
    b Bitmap
}

func (self *StackMapBuilder) Build() (p *StackMap) {
    p = new(StackMap)
    p.b.N, p.b.B = self.b.N, append([]byte(nil), self.b.B...)
    return
}

// AddField appends one slot, delaying the non-pointer run so trailing
// non-pointer slots never grow the bitmap.
func (self *StackMapBuilder) AddField(ptr bool) {
    if !ptr {
        self.n++
    } else {
        self.b.AppendMany(self.n, 0)
        self.b.Append(1)
        self.n = 0
    }
}

func (self *StackMapBuilder) AddFields(n int, ptr bool) {
    for i := 0; i < n; i++ {
        self.AddField(ptr)
    }
}
