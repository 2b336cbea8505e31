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
    `math/bits`
    `strings`
)

// Set is a bitset over the target's real register numbering. Registers 0..63
// cover every bank of every supported target.
type Set uint64

func MakeSet(regs ...RealReg) (s Set) {
    for _, r := range regs {
        s = s.Add(r)
    }
    return
}

func (self Set) Add(r RealReg) Set {
    if r >= 64 {
        panic("reg: register number out of bitset range")
    } else {
        return self | 1 << r
    }
}

func (self Set) Del(r RealReg) Set {
    return self &^ (1 << r)
}

func (self Set) Has(r RealReg) bool {
    return r < 64 && self & (1 << r) != 0
}

func (self Set) Union(other Set) Set {
    return self | other
}

func (self Set) Sub(other Set) Set {
    return self &^ other
}

func (self Set) Intersect(other Set) Set {
    return self & other
}

func (self Set) Count() int {
    return bits.OnesCount64(uint64(self))
}

// Sorted extracts the members in ascending register number, the order every
// clobber-save sequence uses.
func (self Set) Sorted() (rr []RealReg) {
    for v := uint64(self); v != 0; v &= v - 1 {
        rr = append(rr, RealReg(bits.TrailingZeros64(v)))
    }
    return
}

func (self Set) String() string {
    nb := make([]string, 0, self.Count())
    for _, r := range self.Sorted() {
        nb = append(nb, r.String())
    }
    return "{" + strings.Join(nb, ",") + "}"
}
