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

// Package abigen is the calling-convention and stack-frame lowering layer of
// a native code generator. It sits between instruction selection and register
// allocation: it assigns argument and return-value locations, computes the
// final stack-frame layout, and generates prologues, epilogues, call
// sequences, spills, reloads and stack checks, for every supported calling
// convention.
//
// The engine itself lives in internal packages and is consumed by the
// surrounding compiler pipeline; this package carries the user-visible error
// types and compilation options.
package abigen

import (
    `github.com/cloudwego/abigen/internal/opts`
)

// GetCompileOptions folds a list of Option setters over the default options.
func GetCompileOptions(options ...Option) (o opts.Options) {
    o = opts.GetDefaultOptions()
    for _, fn := range options {
        fn(&o)
    }
    return
}
