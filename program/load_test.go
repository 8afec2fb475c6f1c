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

package program

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeTypes(t *testing.T) {
	t.Parallel()

	src := `
types:
  - name: Box
    fields:
      - {name: size, type: int, access: private, final: true, init: "1"}
    methods:
      - name: pick
        returns: int
        params: [{name: i, type: int, annotations: [NotModified]}]
        body:
          - switch:
              on: "i"
              cases:
                - labels: ["1"]
                  body:
                    - return: "10"
                - default: true
                  body:
                    - return: "0"
want:
  diagnostics: []
`
	types, err := DecodeTypes([]byte(src), "box.yaml")
	require.NoError(t, err)
	require.Len(t, types, 1)
	box := types[0]
	require.NotNil(t, box.Field("size"))
	pick := box.Methods[0]
	require.True(t, pick.Params[0].Annotations.Has("NotModified"))
	sw, ok := pick.Body.Stmts[0].(*Switch)
	require.True(t, ok)
	require.Len(t, sw.Cases, 2)
	require.True(t, sw.Cases[1].Default)
}

func TestDecodeUnknownKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "type",
			src: `
types:
  - name: A
    field: []
`,
			want: `unknown key "field"`,
		},
		{
			name: "field",
			src: `
types:
  - name: A
    fields:
      - {name: x, type: int, finale: true}
`,
			want: `unknown key "finale"`,
		},
		{
			name: "method",
			src: `
types:
  - name: A
    methods:
      - name: m
        return: int
`,
			want: `unknown key "return"`,
		},
		{
			name: "parameter",
			src: `
types:
  - name: A
    methods:
      - name: m
        params: [{name: p, typ: int}]
`,
			want: `unknown key "typ"`,
		},
		{
			name: "switch selector",
			src: `
types:
  - name: A
    methods:
      - name: m
        params: [{name: i, type: int}]
        body:
          - switch:
              selector: "i"
              cases: []
`,
			want: `line 9: unknown key "selector", expected one of on, cases`,
		},
		{
			name: "switch case",
			src: `
types:
  - name: A
    methods:
      - name: m
        params: [{name: i, type: int}]
        body:
          - switch:
              on: "i"
              cases:
                - label: ["1"]
                  body: []
`,
			want: `unknown key "label"`,
		},
		{
			name: "local",
			src: `
types:
  - name: A
    methods:
      - name: m
        body:
          - local: {name: x, type: int, value: "1"}
`,
			want: `unknown key "value"`,
		},
		{
			name: "if",
			src: `
types:
  - name: A
    methods:
      - name: m
        params: [{name: b, type: boolean}]
        body:
          - if:
              condition: "b"
              then: []
`,
			want: `unknown key "condition"`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeTypes([]byte(tt.src), "bad.yaml")
			require.ErrorContains(t, err, tt.want)
		})
	}
}
