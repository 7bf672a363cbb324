// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/devblok/vkframe/gfx"
	"github.com/devblok/vkframe/utility/kar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const shaderSuffix = ".spv"

// ShaderType represents the type of shader thats loaded
type ShaderType int

// Identifies shader objects with their types
const (
	VertexShaderType ShaderType = iota
	FragmentShaderType
	UnknownShaderType
)

// ShaderFiles holds compiled shaders keyed by file name,
// such as basic.vert.spv.
type ShaderFiles map[string][]byte

// shaderFileType splits a compiled shader file name. It is important that
// the file name does not contain more than two dots, the first is always the
// name of the shader, second is type, and the third one ensures that the
// shader is compiled.
func shaderFileType(file string) (string, ShaderType) {
	if !strings.HasSuffix(file, shaderSuffix) {
		return "", UnknownShaderType
	}
	nodes := strings.Split(strings.TrimSuffix(file, shaderSuffix), ".")
	if len(nodes) != 2 {
		return "", UnknownShaderType
	}
	switch nodes[1] {
	case "vert":
		return nodes[0], VertexShaderType
	case "frag":
		return nodes[0], FragmentShaderType
	}
	return "", UnknownShaderType
}

// LoadShaderDirectory reads every compiled shader under dir.
func LoadShaderDirectory(dir string) (ShaderFiles, error) {
	files := make(ShaderFiles)
	if err := filepath.Walk(dir, func(p string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if f.IsDir() {
			return nil
		}
		if _, t := shaderFileType(f.Name()); t == UnknownShaderType {
			return nil
		}
		code, err := ioutil.ReadFile(p)
		if err != nil {
			return err
		}
		files[f.Name()] = code
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "load shaders from %s", dir)
	}
	return files, nil
}

// LoadShaderArchive reads every compiled shader stored in a kar archive.
func LoadShaderArchive(ar *kar.Archive) (ShaderFiles, error) {
	files := make(ShaderFiles)
	for _, name := range ar.Names() {
		base := path.Base(filepath.ToSlash(name))
		if _, t := shaderFileType(base); t == UnknownShaderType {
			continue
		}
		code, err := ar.ReadAll(name)
		if err != nil {
			return nil, errors.Wrapf(err, "load shader %s from archive", name)
		}
		files[base] = code
	}
	return files, nil
}

// ShaderPair is the vertex and fragment module of one shader kind.
type ShaderPair struct {
	Vertex   gfx.ShaderModuleID
	Fragment gfx.ShaderModuleID
}

// ShaderLibrary holds a module pair for every shader kind that was found.
type ShaderLibrary struct {
	ctx   *DeviceContext
	log   *log.Entry
	pairs map[gfx.ShaderKind]ShaderPair
}

// NewShaderLibrary creates shader modules for every kind with both halves
// present in files. Kinds missing a half are left out and fail at Pair.
func NewShaderLibrary(ctx *DeviceContext, files ShaderFiles) (*ShaderLibrary, error) {
	lib := &ShaderLibrary{
		ctx:   ctx,
		log:   ctx.logger("shaders"),
		pairs: make(map[gfx.ShaderKind]ShaderPair),
	}
	for _, kind := range gfx.ShaderKinds() {
		info, err := gfx.ShaderInfo(kind)
		if err != nil {
			lib.Destroy()
			return nil, err
		}
		vert, hasVert := files[info.Name+".vert"+shaderSuffix]
		frag, hasFrag := files[info.Name+".frag"+shaderSuffix]
		if !hasVert || !hasFrag {
			lib.log.WithField("shader", info.Name).Debug("shader pair not available")
			continue
		}

		var pair ShaderPair
		if pair.Vertex, err = ctx.Device.CreateShaderModule(vert); err != nil {
			lib.Destroy()
			return nil, errors.Wrapf(err, "vertex shader %s", info.Name)
		}
		if pair.Fragment, err = ctx.Device.CreateShaderModule(frag); err != nil {
			ctx.Device.DestroyShaderModule(pair.Vertex)
			lib.Destroy()
			return nil, errors.Wrapf(err, "fragment shader %s", info.Name)
		}
		lib.pairs[kind] = pair
	}
	lib.log.WithField("shaders", len(lib.pairs)).Info("shader library loaded")
	return lib, nil
}

// Pair returns the modules of a shader kind.
func (l *ShaderLibrary) Pair(kind gfx.ShaderKind) (ShaderPair, error) {
	pair, ok := l.pairs[kind]
	if !ok {
		return ShaderPair{}, gfx.Configurationf("shader library", "no compiled shader for %s", kind)
	}
	return pair, nil
}

// Destroy releases every shader module.
func (l *ShaderLibrary) Destroy() {
	for kind, pair := range l.pairs {
		l.ctx.Device.DestroyShaderModule(pair.Vertex)
		l.ctx.Device.DestroyShaderModule(pair.Fragment)
		delete(l.pairs, kind)
	}
}
