// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkframe/core"
	"github.com/devblok/vkframe/gfx"
)

var envKeys = []string{
	core.EnvSwapchainSize, core.EnvScreenWidth, core.EnvScreenHeight, core.EnvFps,
	core.EnvShaderDir, core.EnvShaderArchive, core.EnvLogLevel, core.EnvDebug,
}

func clearEnv() {
	for _, k := range envKeys {
		os.Unsetenv(k)
	}
}

func baseConfiguration() core.Configuration {
	return core.Configuration{
		Time: core.TimeConfiguration{FramesPerSecond: 60},
		Renderer: core.RendererConfiguration{
			SwapchainSize:   3,
			ScreenWidth:     800,
			ScreenHeight:    600,
			ShaderDirectory: "shaders",
		},
		Log: core.LogConfiguration{Level: "info"},
	}
}

func TestLoadConfigurationFromEnvFile(t *testing.T) {
	c := qt.New(t)
	clearEnv()
	defer clearEnv()

	dir, err := ioutil.TempDir("", "vkframe")
	c.Assert(err, qt.IsNil)
	defer os.RemoveAll(dir)
	env := filepath.Join(dir, "test.env")
	c.Assert(ioutil.WriteFile(env, []byte(
		"KORU_SWAPCHAIN_SIZE=4\n"+
			"KORU_SCREEN_WIDTH=1280\n"+
			"KORU_SHADER_ARCHIVE=shaders.kar\n"+
			"KORU_LOG_LEVEL=debug\n"+
			"KORU_VK_DEBUG=true\n"), 0644), qt.IsNil)

	cfg, err := core.LoadConfiguration(baseConfiguration(), env, filepath.Join(dir, "missing.env"))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Renderer.SwapchainSize, qt.Equals, uint32(4))
	c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, uint32(1280))
	c.Assert(cfg.Renderer.ScreenHeight, qt.Equals, uint32(600))
	c.Assert(cfg.Renderer.ShaderDirectory, qt.Equals, "shaders")
	c.Assert(cfg.Renderer.ShaderArchive, qt.Equals, "shaders.kar")
	c.Assert(cfg.Renderer.FallbackExtent(), qt.Equals, gfx.Extent2D{Width: 1280, Height: 600})
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 60)
	c.Assert(cfg.Instance.DebugMode, qt.Equals, true)
	c.Assert(cfg.Log.Logger().GetLevel(), qt.Equals, log.DebugLevel)
}

func TestLoadConfigurationBadValue(t *testing.T) {
	c := qt.New(t)
	clearEnv()
	defer clearEnv()

	os.Setenv(core.EnvFps, "sixty")
	_, err := core.LoadConfiguration(baseConfiguration())
	c.Assert(err, qt.ErrorMatches, `parse KORU_FPS: .*`)
}

func TestValidateConfiguration(t *testing.T) {
	c := qt.New(t)
	c.Assert(baseConfiguration().Validate(), qt.IsNil)

	for name, edit := range map[string]func(*core.Configuration){
		"one image":  func(cfg *core.Configuration) { cfg.Renderer.SwapchainSize = 1 },
		"no width":   func(cfg *core.Configuration) { cfg.Renderer.ScreenWidth = 0 },
		"negative":   func(cfg *core.Configuration) { cfg.Time.FramesPerSecond = -1 },
		"no shaders": func(cfg *core.Configuration) { cfg.Renderer.ShaderDirectory = "" },
		"log level":  func(cfg *core.Configuration) { cfg.Log.Level = "loud" },
	} {
		cfg := baseConfiguration()
		edit(&cfg)
		err := cfg.Validate()
		c.Assert(err, qt.Not(qt.IsNil), qt.Commentf(name))
		c.Assert(fmt.Sprintf("%+v", err), qt.Contains, "core.Configuration.Validate", qt.Commentf("%s has no stack", name))
	}

	cfg := baseConfiguration()
	cfg.Renderer.SwapchainSize = 1
	c.Assert(cfg.Validate(), qt.ErrorMatches, "swapchain size 1, need at least 2")
}

func TestTimeService(t *testing.T) {
	c := qt.New(t)
	tm := core.NewTime(core.TimeConfiguration{FramesPerSecond: 120})
	defer tm.Stop()

	c.Assert(tm.Fps(), qt.Equals, 120)
	c.Assert(tm.FpsTicker(), qt.Not(qt.IsNil))
	<-tm.EventTicker().C
	c.Assert(tm.Elapsed() > 0, qt.Equals, true)
}
