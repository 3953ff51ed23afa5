//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the renderer against the given scene file.
func (Run) Renderer(scenePath string) error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run renderer...")
	if _, err := executeCmd("go", withArgs("run", "main.go", scenePath), withStream()); err != nil {
		return err
	}
	return nil
}
