// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx_test

import (
	"testing"

	"github.com/devblok/vkframe/gfx"
)

func TestValidateTables(t *testing.T) {
	if err := gfx.ValidateTables(); err != nil {
		t.Fatal(err)
	}
}

func TestImageTraits(t *testing.T) {
	supported := []struct {
		usage  gfx.Usage
		format gfx.Format
		data   bool
		layers uint32
	}{
		{gfx.UsageDepthBuffer, gfx.FormatD16Unorm, false, 1},
		{gfx.UsageOffscreenColor, gfx.FormatRGBA8Unorm, false, 1},
		{gfx.UsageOffscreenDepth, gfx.FormatD16Unorm, false, 1},
		{gfx.UsageSampleTexture, gfx.FormatRGBA8Unorm, true, 1},
		{gfx.UsageCubemap, gfx.FormatRGBA8Unorm, true, 6},
	}
	for _, s := range supported {
		class, err := gfx.ImageTraits(s.usage, s.format)
		if err != nil {
			t.Fatalf("%s/%s: %s", s.usage, s.format, err)
		}
		if class.RequiresData != s.data {
			t.Errorf("%s/%s: requires data %t", s.usage, s.format, class.RequiresData)
		}
		if class.Layers != s.layers {
			t.Errorf("%s/%s: layers %d", s.usage, s.format, class.Layers)
		}
	}

	unsupported := []struct {
		usage  gfx.Usage
		format gfx.Format
	}{
		{gfx.UsageDepthBuffer, gfx.FormatRGBA8Unorm},
		{gfx.UsageSampleTexture, gfx.FormatD16Unorm},
		{gfx.UsageCubemap, gfx.FormatBGRA8Unorm},
		{gfx.UsageOffscreenColor, gfx.FormatUndefined},
	}
	for _, s := range unsupported {
		if _, err := gfx.ImageTraits(s.usage, s.format); !gfx.IsConfiguration(err) {
			t.Errorf("%s/%s: expected configuration error, got %v", s.usage, s.format, err)
		}
	}
}

func TestShaderInfo(t *testing.T) {
	for _, kind := range gfx.ShaderKinds() {
		class, err := gfx.ShaderInfo(kind)
		if err != nil {
			t.Fatal(err)
		}
		if class.Kind != kind {
			t.Errorf("kind mismatch for %s", class.Name)
		}
	}
	if _, err := gfx.ShaderInfo(gfx.ShaderKind(99)); !gfx.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
