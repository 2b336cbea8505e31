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

package utils

import (
    `fmt`

    `github.com/cloudwego/abigen`
)

func ELimit(name string, value int64) abigen.LimitError {
    return abigen.LimitError {
        Name  : name,
        Value : value,
    }
}

func EBadConv(cc fmt.Stringer) abigen.UnsupportedError {
    return abigen.UnsupportedError {
        Note: fmt.Sprintf("unsupported calling convention: %s", cc),
    }
}

func EBadType(vt fmt.Stringer, what string) abigen.UnsupportedError {
    return abigen.UnsupportedError {
        Note: fmt.Sprintf("%s is not a valid %s", vt, what),
    }
}
