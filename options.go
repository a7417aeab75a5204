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
	"fmt"

	"github.com/cloudwego/hlsched/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// Loop flop conflict resolution policies.
const (
	FixNone     = opts.FixNone
	FixFewest   = opts.FixFewest
	FixMost     = opts.FixMost
	FirstAlways = opts.FirstAlways
	LastAlways  = opts.LastAlways
)

// WithLoopFixPolicy sets how conflicts found while removing a loop flop are fixed.
//
// FixNone keeps the flop of every loop with a conflict. FirstAlways delays the
// accesses in the first cycle of the body, LastAlways delays the ones in the last
// cycle. FixFewest picks whichever touches fewer accesses, FixMost the other one.
//
// The default value of this option is "FixNone".
func WithLoopFixPolicy(policy int) Option {
	if policy < FixNone || policy > LastAlways {
		panic(fmt.Sprintf("hlsched: invalid loop fix policy: %d", policy))
	} else {
		return func(o *opts.Options) { o.LoopFixPolicy = policy }
	}
}

// WithBranchBalancing enables or disables balancing of branches inside loops.
//
// The default value of this option is "true".
func WithBranchBalancing(enable bool) Option {
	return func(o *opts.Options) { o.BalanceLoops = enable }
}

// WithLoopFlopRemoval enables or disables removal of the register between two
// iterations of a loop.
//
// The default value of this option is "true".
func WithLoopFlopRemoval(enable bool) Option {
	return func(o *opts.Options) { o.RemoveLoopFlop = enable }
}

// WithFailFastFlopAnalysis stops the loop flop analysis at the first conflict.
// Such loops keep their flop no matter the policy.
func WithFailFastFlopAnalysis(enable bool) Option {
	return func(o *opts.Options) { o.FailFastFlopAna = enable }
}

// SetDefaultLoopFixPolicy sets the default loop fix policy for every design
// scheduled from now on.
//
// This value can also be configured with the `HLSCHED_LOOP_FIX_POLICY`
// environment variable.
//
// Returns the old opts.LoopFixPolicy value.
func SetDefaultLoopFixPolicy(policy int) int {
	if policy < FixNone || policy > LastAlways {
		panic(fmt.Sprintf("hlsched: invalid loop fix policy: %d", policy))
	}
	policy, opts.LoopFixPolicy = opts.LoopFixPolicy, policy
	return policy
}
