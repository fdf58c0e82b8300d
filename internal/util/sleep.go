// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"context"
	"time"
)

// SleepFunc waits for d or until ctx is done. Components take one so tests
// can replace real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d, returning ctx.Err() if ctx ends first. A non-positive d
// returns immediately unless ctx is already done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoSleep returns immediately unless ctx is done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
