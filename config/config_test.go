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

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()
	require.Equal(t, DefaultMaxIterations, c.MaxIterations)
	require.Positive(t, c.Parallelism)
	require.NoError(t, c.Validate())

	lvl, err := c.Level()
	require.NoError(t, err)
	require.Equal(t, zapcore.WarnLevel, lvl)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "immutaway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
maxIterations: 7
parallelism: 1
logLevel: debug
debugTargets: [method1, freeze]
quiet: true
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, c.MaxIterations)
	require.Equal(t, 1, c.Parallelism)
	require.True(t, c.Quiet)
	require.False(t, c.IgnoreErrors)
	require.True(t, c.IsDebugTarget("freeze"))
	require.False(t, c.IsDebugTarget("add"))
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"negative cap", "maxIterations: -1", "maxIterations must be positive"},
		{"zero parallelism", "parallelism: 0", "parallelism must be positive"},
		{"bad level", "logLevel: loud", "logLevel"},
		{"bad yaml", "maxIterations: [", "decode config"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	c := Default()
	c.LogLevel = "error"
	logger, err := NewLogger(c)
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.WarnLevel))
	require.True(t, logger.Core().Enabled(zapcore.ErrorLevel))

	c.LogLevel = "nonsense"
	_, err = NewLogger(c)
	require.Error(t, err)
}
