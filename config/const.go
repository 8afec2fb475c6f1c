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

package config

// This file hosts non-user-configurable parameters --- these are for development and testing purposes only.

// DefaultMaxIterations is the fixed-point cap used when the configuration does not set one. Every
// program in the test corpus converges in fewer than ten iterations; hitting the cap means an
// analyser keeps producing delays it never resolves.
const DefaultMaxIterations = 20

// IndexSeparator separates the components of a hierarchical statement index, e.g. "1.0.0" is
// statement 0 of block 0 of statement 1.
const IndexSeparator = "."

// AssignmentSuffix is appended to a statement index to form the id of the assignment made by that
// statement, e.g. "3-E". Assignment ids sort after the read ids of the same statement.
const AssignmentSuffix = "-E"

// ReturnPlaceholder is how the value of a return variable renders before any return statement.
const ReturnPlaceholder = "<return value>"

// LambdaPrefix names the synthetic methods created for lambdas.
const LambdaPrefix = "$lambda$"

// APICacheFile is the name of the compressed contract cache inside the cache directory; %s is the
// content hash of the contract inputs.
const APICacheFile = "api-%s.gob.s2"

// DirLevelsToPrintForPositions controls the number of enclosing directories to print when referring
// to the positions of diagnostics - right now it seems as if 1 is sufficient disambiguation, but
// feel free to increase.
const DirLevelsToPrintForPositions = 1
