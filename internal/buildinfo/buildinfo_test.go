// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buildinfo

import "testing"

func TestString(t *testing.T) {
	Version, Commit, BuildDate = "1.0.0", "abc123", "2026-01-01"
	t.Cleanup(func() { Version, Commit, BuildDate = "dev", "none", "unknown" })

	if got, want := String(), "Version: 1.0.0, Commit: abc123, BuiltAt: 2026-01-01"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
