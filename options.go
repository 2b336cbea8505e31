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

package abigen

import (
    `fmt`

    `github.com/cloudwego/abigen/internal/opts`
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithFramePointers controls whether generated functions maintain a frame
// pointer chain.
//
// Disabling frame pointers frees one more callee-saved register for
// allocation, at the cost of unwindability. Tail calls require frame
// pointers and refuse to compile without them.
//
// Frame pointers are enabled by default.
func WithFramePointers(enabled bool) Option {
    return func(o *opts.Options) { o.EnableFramePointers = enabled }
}

// WithProbeStackThreshold sets the frame size, in bytes, beyond which the
// prologue emits stack-probing code.
//
// Frames smaller than one guard page cannot skip the guard page, so values
// below 1024 are rejected. Set this option to "0" to disable stack probing
// entirely.
//
// This value can also be configured with the `ABIGEN_PROBE_STACK_THRESHOLD`
// environment variable. The default value of this option is "4096".
func WithProbeStackThreshold(size int) Option {
    if size != 0 && size < 1024 {
        panic(fmt.Sprintf("abigen: invalid probe stack threshold: %d", size))
    } else {
        return func(o *opts.Options) { o.ProbeStackThreshold = uint32(size) }
    }
}

// WithInlineProbeStack selects the inline guard-page probe loop instead of
// the out-of-line probe helper call for frames above the probing threshold.
//
// The inline loop avoids a runtime helper dependency but costs code size at
// every oversized frame. Disabled by default.
func WithInlineProbeStack(enabled bool) Option {
    return func(o *opts.Options) { o.InlineProbeStack = enabled }
}
