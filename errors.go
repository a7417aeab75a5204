/*
 * Copyright 2022 CloudWeGo Authors
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

package hlsched

import (
    `github.com/cloudwego/hlsched/internal/lim`
    `github.com/cloudwego/hlsched/internal/schedule`
)

// StructureError occures when the graph does not have the structure an analysis
// relies on, such as a loop body without its feedback exit.
type StructureError = lim.StructureError

// UnsupportedError occures when an analysis meets a node kind it cannot handle.
type UnsupportedError = lim.UnsupportedError

// PolicyError occures when conflicts are resolved with an unknown policy.
type PolicyError = schedule.PolicyError
