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

package method

import (
	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/zap"
)

// ResolveCycle decides Modified jointly for the members of a cyclic component. It applies once the
// latest pass of every undecided member is final except for the calls on this into the component:
// a member modifies this when it calls, on this, a member that does. The others do not. It reports
// whether it published anything.
func (a *Analyser) ResolveCycle(members []*analysis.MethodAnalysis) bool {
	var pending []*analysis.MethodAnalysis
	modified := make(map[*program.Method]bool)
	for _, ma := range members {
		if ma.Method.Constructor {
			continue
		}
		switch ma.Props.Get(property.Modified) {
		case property.True:
			modified[ma.Method] = true
		case property.Delay:
			lvl := ma.Level
			if lvl == nil || len(lvl.Delays) > 0 || lvl.ThisModifiedDelayed {
				return false
			}
			pending = append(pending, ma)
		}
	}
	if len(pending) == 0 {
		return false
	}

	for changed := true; changed; {
		changed = false
		for _, ma := range pending {
			if modified[ma.Method] {
				continue
			}
			for _, callee := range ma.Level.CycleCalls {
				if modified[callee] {
					modified[ma.Method] = true
					changed = true
					break
				}
			}
		}
	}
	for _, ma := range pending {
		ma.Props.Set(property.Modified, property.Bool(modified[ma.Method]))
		a.logger.Debug("cycle resolved",
			zap.String("method", name(ma.Method)),
			zap.Bool("modified", modified[ma.Method]))
	}
	return true
}
