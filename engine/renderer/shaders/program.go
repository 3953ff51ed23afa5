package shaders

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/lumen/engine/core"
)

const spirvMagic = 0x07230203

// Program holds the compiled SPIR-V for the three ray-tracing stages plus
// the fullscreen pair that resolves the accumulation image to the screen.
type Program struct {
	RayGen      []byte
	RayMiss     []byte
	ClosestHit  []byte
	ResolveVert []byte
	ResolveFrag []byte
}

// LoadProgram reads the stage binaries from the shader output directory.
// The binaries are produced ahead of time by the build tooling.
func LoadProgram(dir string) (*Program, error) {
	p := &Program{}
	for _, stage := range []struct {
		file string
		dst  *[]byte
	}{
		{"ray_gen.spv", &p.RayGen},
		{"ray_miss.spv", &p.RayMiss},
		{"closest_hit.spv", &p.ClosestHit},
		{"resolve_vert.spv", &p.ResolveVert},
		{"resolve_frag.spv", &p.ResolveFrag},
	} {
		code, err := loadSPIRV(filepath.Join(dir, stage.file))
		if err != nil {
			return nil, err
		}
		*stage.dst = code
	}
	core.LogDebug("shaders: loaded program from %s", dir)
	return p, nil
}

func loadSPIRV(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shaders: reading %s: %w", path, err)
	}
	if len(code) < 4 || len(code)%4 != 0 {
		return nil, fmt.Errorf("shaders: %s is not a SPIR-V binary", path)
	}
	if binary.LittleEndian.Uint32(code) != spirvMagic {
		return nil, fmt.Errorf("shaders: %s has wrong SPIR-V magic", path)
	}
	return code, nil
}
