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

// Package util implements helpers shared by the analysers: hierarchical statement indices and
// message formatting.
package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/immutaway/config"
)

// StatementIndex joins the components of a hierarchical statement index, e.g. (1, 0, 0) is
// "1.0.0".
func StatementIndex(parts ...int) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = strconv.Itoa(p)
	}
	return strings.Join(s, config.IndexSeparator)
}

// NestedIndex returns the index of statement i of block b of the statement at parent.
func NestedIndex(parent string, block, i int) string {
	return parent + config.IndexSeparator + strconv.Itoa(block) + config.IndexSeparator + strconv.Itoa(i)
}

// ChildIndex returns the index of statement i in the block whose prefix is prefix. An empty
// prefix is the method body.
func ChildIndex(prefix string, i int) string {
	if prefix == "" {
		return strconv.Itoa(i)
	}
	return prefix + config.IndexSeparator + strconv.Itoa(i)
}

// BlockPrefix returns the prefix of block b of the statement at index.
func BlockPrefix(index string, block int) string {
	return index + config.IndexSeparator + strconv.Itoa(block)
}

// CompareIndex orders hierarchical indices component-wise and numerically: "1.0.0" < "1.1" <
// "2" < "10". An id such as "3-E" (the assignment in statement 3) sorts after "3". The empty
// index sorts first.
func CompareIndex(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	as, asuf, _ := strings.Cut(a, config.AssignmentSuffix)
	bs, bsuf, _ := strings.Cut(b, config.AssignmentSuffix)
	pa, pb := strings.Split(as, config.IndexSeparator), strings.Split(bs, config.IndexSeparator)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, ea := strconv.Atoi(pa[i])
		nb, eb := strconv.Atoi(pb[i])
		if ea != nil || eb != nil {
			if c := strings.Compare(pa[i], pb[i]); c != 0 {
				return c
			}
			continue
		}
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	}
	if len(pa) != len(pb) {
		if len(pa) < len(pb) {
			return -1
		}
		return 1
	}
	switch {
	case strings.Contains(a, config.AssignmentSuffix) && !strings.Contains(b, config.AssignmentSuffix):
		return 1
	case !strings.Contains(a, config.AssignmentSuffix) && strings.Contains(b, config.AssignmentSuffix):
		return -1
	}
	return strings.Compare(asuf, bsuf)
}

// IsPrefixIndex reports whether inner lies inside the statement or block at outer.
func IsPrefixIndex(outer, inner string) bool {
	return outer == "" || inner == outer || strings.HasPrefix(inner, outer+config.IndexSeparator)
}

var (
	_severityPattern = regexp.MustCompile(`^(ERROR|WARN)`)
	_locationPattern = regexp.MustCompile(` in ([TMFP]:[^ ]*): `)
	_codePattern     = regexp.MustCompile("`(.*?)`")
)

// PrettyPrintErrorMessage colors a rendered diagnostic for a terminal: the severity in red or
// yellow, the location in cyan and code references in magenta.
func PrettyPrintErrorMessage(msg string) string {
	color := 31 // red
	if strings.HasPrefix(msg, "WARN") {
		color = 33 // yellow
	}
	severityStr := fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, "${1}")
	locationStr := fmt.Sprintf(" in \u001B[%dm%s\u001B[0m: ", 36, "${1}")
	codeStr := fmt.Sprintf("\u001B[%dm%s\u001B[0m", 95, "`${1}`")

	msg = _codePattern.ReplaceAllString(msg, codeStr)
	msg = _locationPattern.ReplaceAllString(msg, locationStr)
	msg = _severityPattern.ReplaceAllString(msg, severityStr)
	return msg
}
