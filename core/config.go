// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strconv"
	"time"

	"github.com/devblok/vkframe/gfx"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Environment keys that override a Configuration
const (
	EnvSwapchainSize = "KORU_SWAPCHAIN_SIZE"
	EnvScreenWidth   = "KORU_SCREEN_WIDTH"
	EnvScreenHeight  = "KORU_SCREEN_HEIGHT"
	EnvFps           = "KORU_FPS"
	EnvShaderDir     = "KORU_SHADER_DIR"
	EnvShaderArchive = "KORU_SHADER_ARCHIVE"
	EnvLogLevel      = "KORU_LOG_LEVEL"
	EnvDebug         = "KORU_VK_DEBUG"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
	Instance InstanceConfiguration
	Log      LogConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the delay between event polls in milliseconds
	EventPollDelay int
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize    uint32
	DeviceExtensions []string

	// ScreenWidth and ScreenHeight are used when the surface
	// does not report its own extent.
	ScreenWidth  uint32
	ScreenHeight uint32

	// ShaderDirectory holds <name>.vert.spv and <name>.frag.spv pairs,
	// ShaderArchive, when set, is a kar archive used instead.
	ShaderDirectory string
	ShaderArchive   string
}

// InstanceConfiguration configures the Vulkan instance
type InstanceConfiguration struct {
	DebugMode  bool
	Extensions []string
	Layers     []string
}

// LogConfiguration configures the logger
type LogConfiguration struct {
	Level string
}

// FallbackExtent is the screen size used when the surface leaves it undefined.
func (c RendererConfiguration) FallbackExtent() gfx.Extent2D {
	return gfx.Extent2D{Width: c.ScreenWidth, Height: c.ScreenHeight}
}

// LoadConfiguration loads the given .env files into the environment,
// missing files are skipped, and overrides the base with KORU_* keys.
func LoadConfiguration(base Configuration, envFiles ...string) (Configuration, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			log.WithField("file", f).Debug("env file not loaded")
		}
	}
	envy.Reload()

	cfg := base
	var err error
	if cfg.Renderer.SwapchainSize, err = envUint32(EnvSwapchainSize, cfg.Renderer.SwapchainSize); err != nil {
		return cfg, err
	}
	if cfg.Renderer.ScreenWidth, err = envUint32(EnvScreenWidth, cfg.Renderer.ScreenWidth); err != nil {
		return cfg, err
	}
	if cfg.Renderer.ScreenHeight, err = envUint32(EnvScreenHeight, cfg.Renderer.ScreenHeight); err != nil {
		return cfg, err
	}
	fps, err := envUint32(EnvFps, uint32(cfg.Time.FramesPerSecond))
	if err != nil {
		return cfg, err
	}
	cfg.Time.FramesPerSecond = int(fps)
	cfg.Renderer.ShaderDirectory = envy.Get(EnvShaderDir, cfg.Renderer.ShaderDirectory)
	cfg.Renderer.ShaderArchive = envy.Get(EnvShaderArchive, cfg.Renderer.ShaderArchive)
	cfg.Log.Level = envy.Get(EnvLogLevel, cfg.Log.Level)

	debug := envy.Get(EnvDebug, strconv.FormatBool(cfg.Instance.DebugMode))
	if cfg.Instance.DebugMode, err = strconv.ParseBool(debug); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", EnvDebug)
	}
	return cfg, cfg.Validate()
}

func envUint32(key string, def uint32) (uint32, error) {
	v := envy.Get(key, strconv.FormatUint(uint64(def), 10))
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def, errors.Wrapf(err, "parse %s", key)
	}
	return uint32(n), nil
}

// Validate checks that the configuration is usable.
func (c Configuration) Validate() error {
	switch {
	case c.Renderer.SwapchainSize < 2:
		return errors.Errorf("swapchain size %d, need at least 2", c.Renderer.SwapchainSize)
	case c.Renderer.ScreenWidth == 0 || c.Renderer.ScreenHeight == 0:
		return errors.Errorf("screen size %dx%d", c.Renderer.ScreenWidth, c.Renderer.ScreenHeight)
	case c.Time.FramesPerSecond < 0:
		return errors.New("negative frames per second")
	case c.Time.EventPollDelay < 0:
		return errors.New("negative event poll delay")
	case c.Renderer.ShaderDirectory == "" && c.Renderer.ShaderArchive == "":
		return errors.New("no shader directory or archive")
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			return errors.Wrap(err, "log level")
		}
	}
	return nil
}

// Logger returns a logger configured at the given level.
func (c LogConfiguration) Logger() *log.Logger {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.StampMilli})
	if lvl, err := log.ParseLevel(c.Level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}
