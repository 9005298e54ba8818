// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquire_AllowsUpToBudgetWithoutBlocking(t *testing.T) {
	l := New(Config{RequestsPerMinute: 3, MaxInFlight: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		release, err := l.Acquire(ctx, 0)
		require.NoError(t, err)
		release()
	}
}

func TestAcquire_BlocksWhenSaturated(t *testing.T) {
	l := New(Config{RequestsPerMinute: 1, MaxInFlight: 1})
	ctx := context.Background()

	release, err := l.Acquire(ctx, 0)
	require.NoError(t, err)
	release()

	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx2, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquire_HonorsCancellation(t *testing.T) {
	l := New(Config{RequestsPerMinute: 1, MaxInFlight: 1})
	ctx := context.Background()

	release, err := l.Acquire(ctx, 0)
	require.NoError(t, err)
	release()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.Acquire(cancelled, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAcquire_TokenBudgetSaturates(t *testing.T) {
	l := New(Config{RequestsPerMinute: 100, InputTokensPerMinute: 10, MaxInFlight: 100})
	ctx := context.Background()

	release, err := l.Acquire(ctx, 10)
	require.NoError(t, err)
	release()

	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx2, 5)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecord_AddsToTokenWindow(t *testing.T) {
	l := New(Config{RequestsPerMinute: 100, InputTokensPerMinute: 10, MaxInFlight: 100})
	l.Record(10)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := l.Acquire(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_DefaultsMaxInFlightToHalfRPM(t *testing.T) {
	l := New(Config{RequestsPerMinute: 10})
	for i := 0; i < 5; i++ {
		require.True(t, l.inFlight.TryAcquire(1), "slot %d should be free", i)
	}
	require.False(t, l.inFlight.TryAcquire(1), "sixth concurrent slot should be refused")
}
