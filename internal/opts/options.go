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
	"fmt"
)

type Options struct {
	LoopFixPolicy   int
	BalanceLoops    bool
	RemoveLoopFlop  bool
	FailFastFlopAna bool
}

// PolicyName returns the name of a loop flop conflict resolution policy.
func PolicyName(policy int) string {
	switch policy {
	case FixNone:
		return "FixNone"
	case FixFewest:
		return "FixFewest"
	case FixMost:
		return "FixMost"
	case FirstAlways:
		return "FirstAlways"
	case LastAlways:
		return "LastAlways"
	default:
		return fmt.Sprintf("Policy(%d)", policy)
	}
}

func (self *Options) String() string {
	return fmt.Sprintf("policy=%s balance=%v remove_flop=%v fail_fast=%v",
		PolicyName(self.LoopFixPolicy),
		self.BalanceLoops,
		self.RemoveLoopFlop,
		self.FailFastFlopAna,
	)
}

func GetDefaultOptions() Options {
	return Options{
		LoopFixPolicy:   LoopFixPolicy,
		BalanceLoops:    BalanceLoops,
		RemoveLoopFlop:  RemoveLoopFlop,
		FailFastFlopAna: false,
	}
}
