// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/vkframe/utility/kar"
	"github.com/pkg/errors"
)

// LoadShaders reads the compiled shaders the configuration points at,
// preferring the archive over the directory.
func LoadShaders(cfg RendererConfiguration) (ShaderFiles, error) {
	if cfg.ShaderArchive == "" {
		return LoadShaderDirectory(cfg.ShaderDirectory)
	}
	ar, err := kar.OpenFile(cfg.ShaderArchive)
	if err != nil {
		return nil, errors.Wrapf(err, "open shader archive %s", cfg.ShaderArchive)
	}
	defer ar.Close()
	return LoadShaderArchive(ar)
}
