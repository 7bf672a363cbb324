// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"sync"

	"github.com/devblok/vkframe/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// RendererState is the lifecycle state of a Renderer.
type RendererState int

// Renderer states
const (
	StateReady RendererState = iota
	StateStale
	StateDestroyed
)

func (s RendererState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// RendererStats is a snapshot of the renderer counters.
type RendererStats struct {
	FrameStats
	Store  StoreStats
	Images int
	State  RendererState
}

// Renderer ties the components together. Its methods serialize on a
// mutex, so resize notifications may come from another goroutine than
// the one drawing.
type Renderer struct {
	mu  sync.Mutex
	ctx *DeviceContext
	log *log.Entry

	state     RendererState
	shaders   *ShaderLibrary
	swapchain *Swapchain
	store     *ResourceStore
	builder   *GraphBuilder
	executor  *FrameExecutor
	graph     *Graph

	description gfx.DrawingDescription
	clock       frameClock
}

// NewRenderer creates the shader library and swapchain, preloads the
// scene's resources and builds its graph. The renderer owns ctx from
// here on and releases it in Destroy.
func NewRenderer(ctx *DeviceContext, surface gfx.SurfaceID, cfg RendererConfiguration, shaders ShaderFiles, scene Scene) (*Renderer, error) {
	r := &Renderer{
		ctx:      ctx,
		log:      ctx.logger("renderer"),
		store:    NewResourceStore(ctx),
		executor: NewFrameExecutor(ctx),
	}

	var err error
	if r.shaders, err = NewShaderLibrary(ctx, shaders); err != nil {
		r.release()
		return nil, err
	}
	r.builder = NewGraphBuilder(ctx, r.shaders)

	if r.swapchain, err = CreateSwapchain(ctx, surface, cfg.SwapchainSize, cfg.FallbackExtent()); err != nil {
		r.release()
		return nil, err
	}
	if err := r.store.Load(scene.Preloads()); err != nil {
		r.release()
		return nil, errors.Wrap(err, "preload scene resources")
	}

	r.description = scene.Description()
	if r.graph, err = r.builder.Build(r.description, r.store, r.swapchain); err != nil {
		r.release()
		return nil, err
	}

	r.state = StateReady
	r.log.Info("renderer ready")
	return r, nil
}

// DrawNextFrame draws one frame of the scene. It may block until the GPU
// finished the frame that last used the same swapchain image.
func (r *Renderer) DrawNextFrame(scene Scene) (FrameStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.state == StateDestroyed:
		return FrameOK, ErrDestroyed
	case r.state == StateStale:
		return FrameSwapchainOutOfDate, ErrSurfaceStale
	case r.graph == nil:
		return FrameOK, ErrNoGraph
	}

	r.clock.begin()
	status, err := r.executor.Draw(scene, r.graph, r.swapchain)
	if err != nil {
		return status, err
	}
	if status == FrameSwapchainOutOfDate {
		r.state = StateStale
	}
	r.clock.end(status)
	return status, nil
}

// RecreateSurface rebuilds the swapchain and the graph after the surface
// changed, such as on a window resize.
func (r *Renderer) RecreateSurface() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateDestroyed {
		return ErrDestroyed
	}

	var err error
	r.graph, err = r.builder.Rebuild(r.graph, r.description, r.store, r.swapchain, func() error {
		if err := r.swapchain.Recreate(); err != nil {
			return errors.Wrap(err, "recreate swapchain")
		}
		r.state = StateReady
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Info("surface recreated")
	return nil
}

// RecreateSceneResources loads whatever the scene needs on top of what is
// loaded already and rebuilds the graph from its description.
func (r *Renderer) RecreateSceneResources(scene Scene) error {
	return r.rebuildScene(scene, false)
}

// ReplaceSceneResources is RecreateSceneResources that also frees every
// loaded entry the scene does not preload.
func (r *Renderer) ReplaceSceneResources(scene Scene) error {
	return r.rebuildScene(scene, true)
}

func (r *Renderer) rebuildScene(scene Scene, replace bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateDestroyed {
		return ErrDestroyed
	}
	if err := r.ctx.WaitIdle(); err != nil {
		return err
	}

	preloads := scene.Preloads()
	if err := r.store.Load(preloads); err != nil {
		return errors.Wrap(err, "preload scene resources")
	}

	r.builder.Destroy(r.graph)
	r.graph = nil
	if replace {
		r.store.Retain(preloads)
	}

	r.description = scene.Description()
	var err error
	if r.graph, err = r.builder.Build(r.description, r.store, r.swapchain); err != nil {
		return err
	}
	r.log.WithField("replace", replace).Info("scene resources rebuilt")
	return nil
}

// State returns the lifecycle state.
func (r *Renderer) State() RendererState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns frame counters and resource counts.
func (r *Renderer) Stats() RendererStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := RendererStats{
		FrameStats: r.clock.stats,
		Store:      r.store.Stats(),
		State:      r.state,
	}
	if r.swapchain != nil {
		stats.Images = r.swapchain.ImageCount()
	}
	return stats
}

// Destroy waits for the device and releases, in order, the graph, the
// swapchain, the store, the shader library and the sampler. Calling it
// again does nothing.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateDestroyed {
		return
	}
	if err := r.ctx.WaitIdle(); err != nil {
		r.log.WithError(err).Error("destroying renderer on a busy device")
	}
	r.release()
	r.state = StateDestroyed
	r.log.Info("renderer destroyed")
}

func (r *Renderer) release() {
	if r.builder != nil {
		r.builder.Destroy(r.graph)
		r.graph = nil
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}
	r.store.Destroy()
	if r.shaders != nil {
		r.shaders.Destroy()
		r.shaders = nil
	}
	r.ctx.Destroy()
}
