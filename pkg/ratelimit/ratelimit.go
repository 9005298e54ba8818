// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package ratelimit implements the rate limiter (C5): one instance per
// external endpoint, shared across every worker in the process (§4.5).
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Config configures a Limiter.
type Config struct {
	// RequestsPerMinute is the sliding-window request budget.
	RequestsPerMinute int
	// InputTokensPerMinute is an optional token budget; zero disables it.
	InputTokensPerMinute int
	// MaxInFlight caps concurrent in-flight requests. If zero, it defaults
	// to min(RequestsPerMinute, floor(0.5*RequestsPerMinute)) per §4.5,
	// which simplifies to floor(RequestsPerMinute/2) with a floor of 1.
	MaxInFlight int
}

// Limiter tracks request and token usage in a sliding one-minute window,
// guarded by a single mutex (grounded on the embedded store's
// sync.RWMutex-guarded-state idiom, generalized here to a window instead of
// a boolean closed flag), plus a semaphore bounding concurrent in-flight
// calls.
type Limiter struct {
	mu            sync.Mutex
	requestStamps []time.Time
	tokenEvents   []tokenEvent

	rpm      int
	tpm      int
	inFlight *semaphore.Weighted
}

type tokenEvent struct {
	at     time.Time
	amount int
}

// New constructs a Limiter for one external endpoint.
func New(cfg Config) *Limiter {
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = cfg.RequestsPerMinute / 2
		if maxInFlight < 1 {
			maxInFlight = 1
		}
	}
	return &Limiter{
		rpm:      cfg.RequestsPerMinute,
		tpm:      cfg.InputTokensPerMinute,
		inFlight: semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// Acquire blocks until a request slot is available for estimatedTokens,
// honoring ctx cancellation (§4.5, §5 suspension point (a)). The caller must
// release the in-flight slot by calling the returned release func exactly
// once, typically in a defer right after Acquire returns successfully.
func (l *Limiter) Acquire(ctx context.Context, estimatedTokens int) (release func(), err error) {
	if err := l.inFlight.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire in-flight slot: %w", err)
	}

	for {
		wait, ok := l.tryReserve(estimatedTokens)
		if ok {
			return func() { l.inFlight.Release(1) }, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.inFlight.Release(1)
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// tryReserve checks whether a slot is free under both windows. If not, it
// returns how long to sleep before retrying: the age-out time of the oldest
// entry in whichever window is saturated, plus jitter of at least 100ms.
func (l *Limiter) tryReserve(estimatedTokens int) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)
	l.requestStamps = trimStamps(l.requestStamps, cutoff)
	l.tokenEvents = trimEvents(l.tokenEvents, cutoff)

	if len(l.requestStamps) >= l.rpm {
		return sleepUntilAgeOut(l.requestStamps[0], now), false
	}

	if l.tpm > 0 {
		used := 0
		for _, e := range l.tokenEvents {
			used += e.amount
		}
		if used+estimatedTokens > l.tpm && len(l.tokenEvents) > 0 {
			return sleepUntilAgeOut(l.tokenEvents[0].at, now), false
		}
	}

	l.requestStamps = append(l.requestStamps, now)
	if l.tpm > 0 && estimatedTokens > 0 {
		l.tokenEvents = append(l.tokenEvents, tokenEvent{at: now, amount: estimatedTokens})
	}
	return 0, true
}

// Record appends the observed cost of a completed call to the token window
// (§4.5 record). The estimate reserved at Acquire time is not removed, so
// both count against the budget until they age out.
func (l *Limiter) Record(actualTokens int) {
	if actualTokens <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokenEvents = append(l.tokenEvents, tokenEvent{at: time.Now(), amount: actualTokens})
}

func sleepUntilAgeOut(oldest time.Time, now time.Time) time.Duration {
	wait := oldest.Add(time.Minute).Sub(now)
	if wait < 0 {
		wait = 0
	}
	jitter := time.Duration(100+rand.Intn(50)) * time.Millisecond
	return wait + jitter
}

func trimStamps(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && stamps[i].Before(cutoff) {
		i++
	}
	return stamps[i:]
}

func trimEvents(events []tokenEvent, cutoff time.Time) []tokenEvent {
	i := 0
	for i < len(events) && events[i].at.Before(cutoff) {
		i++
	}
	return events[i:]
}
