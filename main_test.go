// Copyright 2012 Google Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestructiveNeedsYes(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: error\n"), 0o644))

	for _, args := range [][]string{
		{"rm", "activity:1"},
		{"put", "activity:1", "/nonexistent"},
		{"format"},
		{"reset"},
		{"prefs", "--name", "x"},
	} {
		// --device never matches, so a command that got as far as
		// opening a watch would fail differently
		argv := append([]string{"ttwatch", "--config", cfg, "--device", "^none$"}, args...)
		err := newApp().Run(argv)
		require.Error(t, err, "%v", args)
		assert.Contains(t, err.Error(), "needs --yes", "%v", args)
	}
}
