//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const shaderSrcDir = "assets/shaders/src"
const shaderOutDir = "assets/shaders"

var shaderStages = map[string]string{
	"ray_gen.rgen":      "ray_gen.spv",
	"ray_miss.rmiss":    "ray_miss.spv",
	"closest_hit.rchit": "closest_hit.spv",
	"resolve.vert":      "resolve_vert.spv",
	"resolve.frag":      "resolve_frag.spv",
}

// Compiles every shader stage to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	for src, out := range shaderStages {
		if _, err := executeCmd("glslc",
			withArgs("--target-env=vulkan1.3",
				filepath.Join(shaderSrcDir, src),
				"-o", filepath.Join(shaderOutDir, out)),
			withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Generates the bundled procedural scene files.
func (Build) Scenes() error {
	_, err := executeCmd("go",
		withArgs("run", "./tools/scenegen",
			"-out", "assets/scenes/final-one-weekend.json",
			"gen-final-one-weekend"),
		withStream())
	return err
}
