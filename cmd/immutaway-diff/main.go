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

// Package main compares two result snapshots written with "immutaway -snapshot", typically of the
// same programs analysed on a base branch and on a test branch, and writes a summary with the
// differing findings and annotations. It guards against functionality regressions during
// development.
package main

import (
	"cmp"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/immutaway/report"
)

// Result is the content of one snapshot, reduced to comparable lines.
type Result struct {
	// Name is the friendly name of the snapshot, usually its file name.
	Name string
	// Findings are the rendered diagnostics with their positions.
	Findings map[string]bool
	// Annotations are the rendered annotation lists, one line per element.
	Annotations map[string]bool
}

// NewResult flattens a snapshot.
func NewResult(name string, s *report.Snapshot) *Result {
	r := &Result{Name: name, Findings: make(map[string]bool), Annotations: make(map[string]bool)}
	for _, f := range s.Findings {
		line := f.Severity + " in " + f.Location + ": " + f.Message
		if f.Position != "" {
			line = f.Position + ": " + line
		}
		r.Findings[line] = true
	}
	for _, e := range s.Elements {
		r.Annotations[e.Name+" "+strings.Join(e.Annotations, " ")] = true
	}
	return r
}

// Load reads a snapshot file.
func Load(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()
	s, err := report.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewResult(path, s), nil
}

// WriteDiff writes the summary and the diff (if the base and test are different) between the base
// and test results to the writer. If the writer is os.Stdout, it will write the diff in color.
// It reports whether the results differ.
func WriteDiff(writer io.Writer, results [2]*Result) bool {
	base, test := results[0], results[1]
	minuses := slices.Concat(Diff(base.Findings, test.Findings), Diff(base.Annotations, test.Annotations))
	pluses := slices.Concat(Diff(test.Findings, base.Findings), Diff(test.Annotations, base.Annotations))

	MustFprint(fmt.Fprintf(writer, "## Snapshot Diff\n\n"))
	if len(pluses) == 0 && len(minuses) == 0 {
		MustFprint(fmt.Fprint(writer, "> [!NOTE]  \n"))
		MustFprint(fmt.Fprintf(writer, "> ✅ Findings and annotations are **identical**.\n"))
	} else {
		MustFprint(fmt.Fprintf(writer, "> [!WARNING]  \n"))
		MustFprint(fmt.Fprintf(writer, "> ❌ Findings or annotations are **different**"))
		if len(base.Findings) < len(test.Findings) {
			MustFprint(fmt.Fprintf(writer, " 📈"))
		} else if len(base.Findings) > len(test.Findings) {
			MustFprint(fmt.Fprintf(writer, " 📉"))
		}
		MustFprint(fmt.Fprint(writer, ".\n"))
	}
	MustFprint(fmt.Fprint(writer, "> \n"))
	for i, r := range results {
		which := "base"
		if i == 1 {
			which = "test"
		}
		MustFprint(fmt.Fprintf(writer, "> **%d** findings and **%d** annotated elements in %s (%s)\n",
			len(r.Findings), len(r.Annotations), which, r.Name))
	}

	if len(pluses) == 0 && len(minuses) == 0 {
		return false
	}

	color.NoColor = true
	if f, ok := writer.(*os.File); ok && f == os.Stdout {
		color.NoColor = false
	}

	MustFprint(fmt.Fprintf(writer, "\n<details>\n"))
	MustFprint(fmt.Fprintf(writer, "<summary>Diffs</summary>\n\n"))
	MustFprint(fmt.Fprintf(writer, "```diff\n"))
	for i, diff := range [...][]string{pluses, minuses} {
		prefix, c := "+", color.FgGreen
		if i == 1 {
			prefix, c = "-", color.FgRed
		}
		for _, line := range diff {
			MustFprint(color.New(c).Fprintln(writer, prefix+" "+line))
		}
	}
	MustFprint(fmt.Fprintf(writer, "```\n\n"))
	MustFprint(fmt.Fprintf(writer, "</details>\n"))
	return true
}

// Diff returns the lines of first missing from second, sorted.
func Diff(first, second map[string]bool) []string {
	var diff []string
	for line := range first {
		if !second[line] {
			diff = append(diff, line)
		}
	}
	slices.SortFunc(diff, cmp.Compare[string])
	return diff
}

// MustFprint is a helper function that takes the result of the family of Fprint functions and
// panics if the error is nonnil.
func MustFprint(_ int, err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	fset := flag.NewFlagSet("immutaway-diff", flag.ExitOnError)
	baseFile := fset.String("base", "", "the snapshot of the base branch")
	testFile := fset.String("test", "", "the snapshot of the test branch")
	resultFile := fset.String("result-file", "", "the file to write the diff to, default stdout")
	failOnDiff := fset.Bool("fail-on-diff", false, "exit with status 1 when the snapshots differ")
	if err := fset.Parse(os.Args[1:]); err != nil || *baseFile == "" || *testFile == "" {
		log.Printf("both -base and -test are required")
		fset.PrintDefaults()
		os.Exit(2)
	}

	var results [2]*Result
	for i, path := range []string{*baseFile, *testFile} {
		r, err := Load(path)
		if err != nil {
			log.Fatalf("failed to load snapshot: %v", err)
		}
		results[i] = r
	}

	writer := os.Stdout
	if *resultFile != "" {
		w, err := os.OpenFile(*resultFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			log.Fatalf("failed to open file %q: %v", *resultFile, err)
		}
		writer = w
	}

	differ := WriteDiff(writer, results)
	if writer != os.Stdout {
		if err := writer.Close(); err != nil {
			log.Fatalf("failed to close %q: %v", *resultFile, err)
		}
	}
	if differ && *failOnDiff {
		os.Exit(1)
	}
}
