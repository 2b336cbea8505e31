// +build ignore

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
    `fmt`
    `os`

    `github.com/ajstarks/svgo`
    `github.com/davecgh/go-spew/spew`
)

const (
    _RegionW = 360
    _RowH    = 48
)

var regionFills = [5]string {
    "fill:#e8f0fe;stroke:black",
    "fill:#fce8e6;stroke:black",
    "fill:#fef7e0;stroke:black",
    "fill:#e6f4ea;stroke:black",
    "fill:#f3e8fd;stroke:black",
}

// DrawFrameLayout renders the five frame regions of one computed layout as
// an SVG diagram, high addresses on top, for eyeballing layout bugs.
func (self *Callee) DrawFrameLayout(fn string) {
    fl := self.FrameLayout()
    fp, err := os.OpenFile(fn, os.O_RDWR | os.O_CREATE | os.O_TRUNC, 0644)
    if err != nil {
        panic(err)
    }
    names := [5]string {
        fmt.Sprintf("incoming args (%d)", fl.IncomingArgsSize),
        fmt.Sprintf("setup area (%d)", fl.SetupAreaSize),
        fmt.Sprintf("clobber saves (%d)", fl.ClobberSize),
        fmt.Sprintf("fixed storage (%d)", fl.FixedFrameStorageSize),
        fmt.Sprintf("outgoing args (%d)", fl.OutgoingArgsSize),
    }
    p := svg.New(fp)
    p.Start(_RegionW + 200, _RowH * 5 + 100)
    for i, s := range names {
        p.Rect(50, 50 + i * _RowH, _RegionW, _RowH, regionFills[i])
        p.Text(60, 80 + i * _RowH, s, "fill:black;font-size:16px;font-family:monospace")
    }
    p.Text(50, 40, self.fn + " " + spew.Sprintf("%v", fl.ClobberedCalleeSaves), "fill:gray;font-size:14px;font-family:monospace")
    p.End()
    if err = fp.Close(); err != nil {
        panic(err)
    }
}
