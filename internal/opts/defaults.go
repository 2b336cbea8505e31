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

package opts

import (
    `os`
    `strconv`
)

const (
    _DefaultProbeStackThreshold = 4096 // one guard page of frame triggers stack probing
    _DefaultGuardPageSize       = 4096 // probe stride for the inline probe loop
)

var (
    ProbeStackThreshold = parseOrDefault("ABIGEN_PROBE_STACK_THRESHOLD", _DefaultProbeStackThreshold, 1024)
    GuardPageSize       = parseOrDefault("ABIGEN_GUARD_PAGE_SIZE", _DefaultGuardPageSize, 4096)
)

func parseOrDefault(key string, def int, min int) int {
    if env := os.Getenv(key); env == "" {
        return def
    } else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
        panic("abigen: invalid value for " + key)
    } else if ret := int(val); ret < min {
        panic("abigen: value too small for " + key)
    } else {
        return ret
    }
}
