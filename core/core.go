// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core drives frame rendering on a gfx.Device: it keeps the scene's
// buffers and textures, the swapchain and its per-frame synchronization,
// builds per-image pipelines and command buffers from a drawing description,
// and runs the acquire, update, submit and present loop.
package core

import (
	"errors"

	"github.com/devblok/vkframe/gfx"
)

// Scene supplies everything the renderer draws.
type Scene interface {
	// Preloads returns the buffers and textures the scene needs, keyed
	// by the indices its description refers to.
	Preloads() gfx.ResourcePreloadSet

	// Description returns the passes and steps to draw.
	Description() gfx.DrawingDescription

	// UniformData returns the uniform bytes of a step for the next frame.
	// The length must match the uniform size of the step's shader kind.
	UniformData(pass, step int) []byte
}

// FrameStatus is the result of drawing a frame.
type FrameStatus int

// Frame statuses
const (
	FrameOK FrameStatus = iota
	// FrameSwapchainOutOfDate means the surface changed and
	// RecreateSurface has to be called before the next frame.
	FrameSwapchainOutOfDate
)

func (s FrameStatus) String() string {
	switch s {
	case FrameOK:
		return "ok"
	case FrameSwapchainOutOfDate:
		return "swapchain out of date"
	}
	return "unknown"
}

// Renderer state errors
var (
	ErrSurfaceStale = errors.New("surface is stale, recreate it first")
	ErrNoGraph      = errors.New("no render graph, scene resources failed to build")
	ErrDestroyed    = errors.New("renderer destroyed")
)
