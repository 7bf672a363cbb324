// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"time"

	"github.com/loov/hrtime"
)

const defaultEventPollDelay = 10

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	var interval time.Duration
	if cfg.FramesPerSecond == 0 {
		interval = time.Nanosecond
	} else {
		interval = time.Second / (time.Duration)(cfg.FramesPerSecond)
	}

	delay := cfg.EventPollDelay
	if delay == 0 {
		delay = defaultEventPollDelay
	}

	return &Time{
		fps:            cfg.FramesPerSecond,
		fpsTicker:      time.NewTicker(interval),
		eventPollDelay: delay,
		eventTicker:    time.NewTicker(time.Duration(delay) * time.Millisecond),
		start:          hrtime.Now(),
	}
}

// Time contains all the time services and tickers
type Time struct {
	fps       int
	fpsTicker *time.Ticker

	eventPollDelay int
	eventTicker    *time.Ticker

	start time.Duration
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// FpsTicker gets the initialized fps ticker
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// EventTicker gets the initialized event ticker for the event loop
func (t *Time) EventTicker() *time.Ticker {
	return t.eventTicker
}

// Elapsed is the high resolution time since the service was created,
// used to animate scenes.
func (t *Time) Elapsed() time.Duration {
	return hrtime.Since(t.start)
}

// Stop stops both tickers
func (t *Time) Stop() {
	t.fpsTicker.Stop()
	t.eventTicker.Stop()
}

// FrameStats are counters kept by the renderer.
type FrameStats struct {
	Frames    uint64
	OutOfDate uint64

	LastFrame time.Duration
	Average   time.Duration
}

type frameClock struct {
	start time.Duration
	total time.Duration
	stats FrameStats
}

func (c *frameClock) begin() {
	c.start = hrtime.Now()
}

func (c *frameClock) end(status FrameStatus) {
	d := hrtime.Since(c.start)
	c.stats.LastFrame = d
	if status == FrameSwapchainOutOfDate {
		c.stats.OutOfDate++
		return
	}
	c.stats.Frames++
	c.total += d
	c.stats.Average = c.total / time.Duration(c.stats.Frames)
}
