// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/vkframe/gfx"
	log "github.com/sirupsen/logrus"
)

// FrameExecutor runs one frame: acquire, uniform update, submit, present.
type FrameExecutor struct {
	log *log.Entry
}

// NewFrameExecutor creates a frame executor.
func NewFrameExecutor(ctx *DeviceContext) *FrameExecutor {
	return &FrameExecutor{log: ctx.logger("executor")}
}

// Draw draws the next frame of the scene with the graph. Uniform data is
// fetched and checked before anything is acquired, so a bad scene never
// leaves an image acquired. An out of date swapchain is reported as
// FrameSwapchainOutOfDate, not as an error.
func (e *FrameExecutor) Draw(scene Scene, g *Graph, sc *Swapchain) (FrameStatus, error) {
	uniforms, err := collectUniforms(scene, g.Description)
	if err != nil {
		return FrameOK, err
	}

	sync := sc.Sync()
	slot, err := sync.Acquire()
	if err == gfx.ErrSwapchainOutOfDate {
		e.log.Warn("swapchain out of date at acquire")
		return FrameSwapchainOutOfDate, nil
	} else if err != nil {
		return FrameOK, err
	}
	if slot >= len(g.Images) {
		return FrameOK, gfx.Invariantf("slot %d without resources, graph has %d images", slot, len(g.Images))
	}

	res := g.Images[slot]
	for p, pass := range res.Passes {
		for s := range pass.Steps {
			copy(pass.Steps[s].uniform, uniforms[p][s])
		}
	}

	if err := sync.Submit(res.Commands); err != nil {
		return FrameOK, err
	}
	status, err := sync.Present()
	if err != nil {
		return FrameOK, err
	}
	if status == PresentOutOfDate {
		e.log.Warn("swapchain out of date at present")
		return FrameSwapchainOutOfDate, nil
	}
	return FrameOK, nil
}

func collectUniforms(scene Scene, desc gfx.DrawingDescription) ([][][]byte, error) {
	uniforms := make([][][]byte, len(desc.Passes))
	for p, pass := range desc.Passes {
		uniforms[p] = make([][]byte, len(pass.Steps))
		for s, step := range pass.Steps {
			info, err := gfx.ShaderInfo(step.Shader)
			if err != nil {
				return nil, err
			}
			data := scene.UniformData(p, s)
			if len(data) != info.UniformSize {
				return nil, gfx.Configurationf("update uniforms", "pass %d step %d: %d bytes for shader %s, want %d",
					p, s, len(data), step.Shader, info.UniformSize)
			}
			uniforms[p][s] = data
		}
	}
	return uniforms, nil
}
