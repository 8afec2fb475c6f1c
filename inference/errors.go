//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inference

import (
	"fmt"
	"strings"
)

// IterationLimitError is returned when the cluster has not converged within the iteration cap.
type IterationLimitError struct {
	Limit   int
	Delayed []string
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("no fixed point after %d iterations, delayed: %s", e.Limit, summarize(e.Delayed))
}

// NoProgressError is returned when an iteration resolved nothing while slots remain delayed.
type NoProgressError struct {
	Iteration int
	Delayed   []string
}

func (e *NoProgressError) Error() string {
	return fmt.Sprintf("no progress in iteration %d, delayed: %s", e.Iteration, summarize(e.Delayed))
}

// summarize lists the first few delayed slots.
func summarize(delayed []string) string {
	const _shown = 5
	if len(delayed) <= _shown {
		return strings.Join(delayed, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(delayed[:_shown], ", "), len(delayed)-_shown)
}
