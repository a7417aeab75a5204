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
	"context"

	"github.com/cloudwego/hlsched/internal/build"
	"github.com/cloudwego/hlsched/internal/lim"
	"github.com/cloudwego/hlsched/internal/opts"
	"github.com/cloudwego/hlsched/internal/schedule"
)

// Schedule runs every analysis over the design, in order: branch balancing, loop
// flop removal, throughput analysis and stall tracking. The design is changed in
// place and must not be used concurrently.
func Schedule(ctx context.Context, d *lim.Design, options ...Option) error {
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}
	return schedule.Run(ctx, d, &o)
}

// WireLoop connects the raw dependencies of a loop while the graph is being built.
func WireLoop(ctx context.Context, d *lim.Design, loop lim.OpID, deps []build.Descriptor) (*build.Wiring, error) {
	return build.LoopWiring(ctx, d, loop, deps)
}
