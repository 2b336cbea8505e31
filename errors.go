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
)

// LimitError occures when a computed stack offset or frame size exceeds the
// range the target can address. It aborts the compilation of the offending
// function, other functions are not affected.
type LimitError struct {
    Name  string
    Value int64
}

func (self LimitError) Error() string {
    return fmt.Sprintf("LimitError(%s): value %d exceeds the implementation limit", self.Name, self.Value)
}

// UnsupportedError occures when the input IR contains a construct this layer
// cannot lower, such as an unknown calling convention or an invalid dynamic
// vector type.
type UnsupportedError struct {
    Note string
}

func (self UnsupportedError) Error() string {
    return fmt.Sprintf("UnsupportedError: %s", self.Note)
}
