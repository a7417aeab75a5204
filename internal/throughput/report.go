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

package throughput

import (
    `fmt`
    `io`
    `text/tabwriter`
)

// WriteReport prints one section per task with every limit and the final spacing.
func WriteReport(w io.Writer, results []*Result) error {
    tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
    for _, rs := range results {
        fmt.Fprintf(tw, "task %s\tbalanced=%v\tgo_spacing=%s\n", rs.Task.Name, rs.Task.Balanced, rs.Spacing)
        for _, l := range rs.Limits {
            fmt.Fprintf(tw, "\t%s\t\n", l)
        }
    }
    return tw.Flush()
}
