// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"os"
	"runtime"

	"github.com/devblok/vkframe/core"
	"github.com/devblok/vkframe/gfx/vkr"
	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	runtime.LockOSThread()
}

// StaticResources holds the demo's models
var StaticResources packr.Box

func init() {
	StaticResources = packr.NewBox("./assets")
}

var configuration = core.Configuration{
	Time: core.TimeConfiguration{
		FramesPerSecond: 60,
		EventPollDelay:  10,
	},
	Renderer: core.RendererConfiguration{
		ScreenWidth:     800,
		ScreenHeight:    600,
		SwapchainSize:   3,
		ShaderDirectory: "./shaders",
	},
	Instance: core.InstanceConfiguration{
		DebugMode: false,
	},
	Log: core.LogConfiguration{
		Level: "info",
	},
}

func newWindow() (*sdl.Window, error) {
	return sdl.CreateWindow("Koru3D",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(configuration.Renderer.ScreenWidth),
		int32(configuration.Renderer.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
}

func main() {
	envFile := flag.String("env", "koru.env", "environment file with KORU_* overrides")
	flag.Parse()

	cfg, err := core.LoadConfiguration(configuration, *envFile)
	if err != nil {
		log.WithError(err).Fatal("bad configuration")
	}
	configuration = cfg
	logger := configuration.Log.Logger()

	if err := run(logger); err != nil {
		logger.WithError(err).Error("koru exited")
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return errors.Wrap(err, "sdl.Init()")
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		return errors.Wrap(err, "sdl.VulkanLoadLibrary()")
	}
	defer sdl.VulkanUnloadLibrary()

	window, err := newWindow()
	if err != nil {
		return errors.Wrap(err, "sdl.CreateWindow()")
	}
	defer window.Destroy()

	instanceCfg := configuration.Instance
	instanceCfg.Extensions = append(instanceCfg.Extensions, window.VulkanGetInstanceExtensions()...)
	instance, err := vkr.NewInstance(vkr.DefaultApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), instanceCfg)
	if err != nil {
		return err
	}
	defer instance.Destroy()

	pSurface, err := window.VulkanCreateSurface(instance.Handle())
	if err != nil {
		return errors.Wrap(err, "window.VulkanCreateSurface()")
	}
	surface := instance.SetSurface(pSurface)

	device, err := instance.NewDevice(surface, configuration.Renderer.DeviceExtensions)
	if err != nil {
		return err
	}
	defer device.Destroy()

	ctx, err := core.NewDeviceContext(device, logger)
	if err != nil {
		return err
	}
	shaders, err := core.LoadShaders(configuration.Renderer)
	if err != nil {
		ctx.Destroy()
		return err
	}

	cubeData, err := StaticResources.Find("cube.dae")
	if err != nil {
		ctx.Destroy()
		return errors.Wrap(err, "find cube model")
	}
	scene, err := newDemoScene(cubeData, configuration.Renderer.ScreenWidth, configuration.Renderer.ScreenHeight)
	if err != nil {
		ctx.Destroy()
		return err
	}

	renderer, err := core.NewRenderer(ctx, surface, configuration.Renderer, shaders, scene)
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	return loop(logger, window, renderer, scene)
}

func loop(logger *log.Logger, window *sdl.Window, renderer *core.Renderer, scene *demoScene) error {
	clock := core.NewTime(configuration.Time)
	defer clock.Stop()

	resized := false
	for {
		select {
		case <-clock.EventTicker().C:
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.QuitEvent:
					logger.Info("event loop exited")
					return nil
				case *sdl.KeyboardEvent:
					if et.Type != sdl.KEYDOWN {
						continue
					}
					switch et.Keysym.Sym {
					case sdl.K_ESCAPE:
						logger.Info("event loop exited")
						return nil
					case sdl.K_r:
						if err := scene.Reload(); err != nil {
							return err
						}
						if err := renderer.ReplaceSceneResources(scene); err != nil {
							return err
						}
						logger.WithField("stats", renderer.Stats().Store).Info("scene reloaded")
					}
				case *sdl.WindowEvent:
					if et.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
						resized = true
					}
				}
			}

		case <-clock.FpsTicker().C:
			if resized {
				ready, err := recreate(window, renderer, scene)
				if err != nil {
					return err
				}
				if !ready {
					continue
				}
				resized = false
			}

			scene.Animate(clock.Elapsed())
			status, err := renderer.DrawNextFrame(scene)
			if err != nil {
				return err
			}
			if status == core.FrameSwapchainOutOfDate {
				logger.Warn("swapchain out of date")
				resized = true
			}
		}
	}
}

// recreate rebuilds the surface at the window's size, it reports false
// while the window is minimized.
func recreate(window *sdl.Window, renderer *core.Renderer, scene *demoScene) (bool, error) {
	w, h := window.GetSize()
	if w == 0 || h == 0 {
		return false, nil
	}
	scene.Resize(uint32(w), uint32(h))
	return true, renderer.RecreateSurface()
}
