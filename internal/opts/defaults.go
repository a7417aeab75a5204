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

package opts

import (
	"os"
	"strconv"
)

// Loop flop conflict resolution policies.
const (
	FixNone = iota
	FixFewest
	FixMost
	FirstAlways
	LastAlways
)

const (
	_DefaultLoopFixPolicy  = FixNone
	_DefaultBalanceLoops   = 1 // balance branches inside loops
	_DefaultRemoveLoopFlop = 1 // try to elide loop flops
)

var (
	LoopFixPolicy  = parseOrDefault("HLSCHED_LOOP_FIX_POLICY", _DefaultLoopFixPolicy, FixNone, LastAlways)
	BalanceLoops   = parseOrDefault("HLSCHED_BALANCE_LOOPS", _DefaultBalanceLoops, 0, 1) != 0
	RemoveLoopFlop = parseOrDefault("HLSCHED_REMOVE_LOOP_FLOP", _DefaultRemoveLoopFlop, 0, 1) != 0
)

func parseOrDefault(key string, def int, min int, max int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("hlsched: invalid value for " + key)
	} else if ret := int(val); ret < min {
		panic("hlsched: value too small for " + key)
	} else if ret > max {
		panic("hlsched: value too large for " + key)
	} else {
		return ret
	}
}
