// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import "errors"

var (
	// ErrConfigurationUnavailable marks missing or malformed routing documents.
	// Callers recover by falling back to environment-supplied documents.
	ErrConfigurationUnavailable = errors.New("routing configuration unavailable")

	// ErrCacheUnavailable marks a result cache I/O fault. It never reaches a caller.
	ErrCacheUnavailable = errors.New("result cache unavailable")

	// ErrScoreSourceUnavailable marks a text classifier that is absent or failing.
	ErrScoreSourceUnavailable = errors.New("score source unavailable")
)
