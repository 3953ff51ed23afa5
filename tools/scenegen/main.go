/*
scenegen writes procedurally generated scene files. Its one generator
recreates the closing scene of "Ray Tracing in One Weekend" as a grid of
small spheres around three large ones.
*/
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/scene"
)

func main() {
	seed := flag.Uint64("seed", 485_674_845_675_491, "generation seed")
	out := flag.String("out", "assets/scenes/final-one-weekend.json", "output scene file")
	flag.Parse()

	if flag.Arg(0) != "gen-final-one-weekend" {
		fmt.Fprintln(os.Stderr, "usage: scenegen [-seed n] [-out path] gen-final-one-weekend")
		os.Exit(2)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed>>1))
	s := generateFinalOneWeekend(rng)
	if err := s.Save(*out); err != nil {
		core.LogFatal(err.Error())
	}
	core.LogInfo("scenegen: wrote %s with %d primitives", *out, len(s.Primitives))
}

// sampleVec3 returns a vector with each component uniform in [min, max).
func sampleVec3(rng *rand.Rand, min, max float32) [3]float32 {
	span := max - min
	return [3]float32{
		min + span*rng.Float32(),
		min + span*rng.Float32(),
		min + span*rng.Float32(),
	}
}

// touchGround drops a sphere onto the surface of the huge ground sphere.
// The fudge pushes it in slightly so no gap shows at the contact point.
func touchGround(center [3]float32, radius float32, groundCenter [3]float32, groundRadius float32) [3]float32 {
	const fudge = 0.035
	g := mgl32.Vec3(groundCenter)
	dir := mgl32.Vec3(center).Sub(g).Normalize()
	return [3]float32(dir.Mul(groundRadius + radius - fudge).Add(g))
}

func generateFinalOneWeekend(rng *rand.Rand) *scene.Scene {
	s := &scene.Scene{}

	addConstant := func(name string, rgb [3]float32) string {
		s.Textures = append(s.Textures, scene.Texture{
			Constant: &scene.ConstantTexture{Name: name, RGB: rgb},
		})
		return name
	}
	addLambertian := func(name, albedo string) string {
		s.Materials = append(s.Materials, scene.Material{
			Lambertian: &scene.LambertianMaterial{Name: name, Albedo: albedo},
		})
		return name
	}
	addSphere := func(name string, center [3]float32, radius float32, rings, segments uint32, material string) {
		s.Primitives = append(s.Primitives, scene.Primitive{
			UvSphere: &scene.UvSpherePrimitive{
				Name:     name,
				Center:   center,
				Radius:   radius,
				Rings:    rings,
				Segments: segments,
				Material: material,
			},
		})
	}

	green := addConstant("green", [3]float32{0.2, 0.3, 0.1})
	white := addConstant("pale-white", [3]float32{0.9, 0.9, 0.9})
	s.Textures = append(s.Textures, scene.Texture{
		Checker: &scene.CheckerTexture{
			Name:  "green-and-white-checker",
			Scale: 0.32,
			Even:  green,
			Odd:   white,
		},
	})
	ground := addLambertian("ground", "green-and-white-checker")

	groundCenter := [3]float32{0, 1000, 0}
	const groundRadius = 1000.0
	addSphere("ground_sphere", groundCenter, groundRadius, 128, 256, ground)

	bigRadius := float32(1.0)
	bigCenters := []mgl32.Vec3{
		{0, -1, 0},
		mgl32.Vec3(touchGround([3]float32{-4, -1, 0}, bigRadius, groundCenter, groundRadius)),
		mgl32.Vec3(touchGround([3]float32{4, -1, 0}, bigRadius, groundCenter, groundRadius)),
	}

	for a := -11; a < 11; a++ {
		for b := -11; b < 11; b++ {
			chooseMat := rng.Float32()

			const radius = 0.2
			var center [3]float32
			for {
				center = touchGround([3]float32{
					float32(a) + 0.9*rng.Float32(),
					-radius,
					float32(b) + 0.9*rng.Float32(),
				}, radius, groundCenter, groundRadius)

				p := mgl32.Vec3(center)
				free := true
				for _, big := range bigCenters {
					if p.Sub(big).Len() <= bigRadius+radius {
						free = false
						break
					}
				}
				if free {
					break
				}
			}

			var material string
			switch {
			case chooseMat < 0.8:
				albedo := sampleVec3(rng, 0, 1)
				narrow := sampleVec3(rng, 0, 1)
				for i := range albedo {
					albedo[i] *= narrow[i]
				}
				tex := addConstant(fmt.Sprintf("tex_albedo_diffuse_%d_%d", a, b), albedo)
				material = addLambertian(fmt.Sprintf("mat_diffuse_%d_%d", a, b), tex)
			case chooseMat < 0.95:
				albedo := addConstant(fmt.Sprintf("tex_albedo_metal_%d_%d", a, b), sampleVec3(rng, 0.5, 1))
				fuzz := addConstant(fmt.Sprintf("tex_fuzz_metal_%d_%d", a, b), sampleVec3(rng, 0, 0.5))
				material = fmt.Sprintf("mat_metal_%d_%d", a, b)
				s.Materials = append(s.Materials, scene.Material{
					Metal: &scene.MetalMaterial{Name: material, Albedo: albedo, Fuzz: fuzz},
				})
			default:
				material = fmt.Sprintf("mat_dielectric_%d_%d", a, b)
				s.Materials = append(s.Materials, scene.Material{
					Dielectric: &scene.DielectricMaterial{Name: material, RefractionIndex: 1.5},
				})
			}

			addSphere(fmt.Sprintf("sphere_%d_%d", a, b), center, radius, 32, 64, material)
		}
	}

	s.Materials = append(s.Materials, scene.Material{
		Dielectric: &scene.DielectricMaterial{Name: "material1", RefractionIndex: 1.5},
	})
	addSphere("sphere1", [3]float32(bigCenters[0]), bigRadius, 64, 128, "material1")

	addLambertian("material2", addConstant("texture2", [3]float32{0.4, 0.2, 0.1}))
	addSphere("sphere2", [3]float32(bigCenters[1]), bigRadius, 64, 128, "material2")

	s.Materials = append(s.Materials, scene.Material{
		Metal: &scene.MetalMaterial{
			Name:   "material3",
			Albedo: addConstant("texture3", [3]float32{0.7, 0.6, 0.5}),
			Fuzz:   addConstant("texture4", [3]float32{0, 0, 0}),
		},
	})
	addSphere("sphere3", [3]float32(bigCenters[2]), bigRadius, 64, 128, "material3")

	s.Cameras = append(s.Cameras, scene.Camera{
		Perspective: &scene.PerspectiveCamera{
			Name:         "default",
			Eye:          [3]float32{13, -2, 3},
			LookAt:       [3]float32{0, 0, 0},
			Up:           [3]float32{0, 1, 0},
			FovY:         20,
			ZNear:        0.01,
			ZFar:         100,
			FocalLength:  10,
			ApertureSize: 0.2,
		},
	})

	s.Sky = &scene.Sky{
		VerticalGradient: &scene.VerticalGradientSky{
			Factor: 0.5,
			Top:    [3]float32{0.5, 0.7, 1.0},
			Bottom: [3]float32{1, 1, 1},
		},
	}

	s.Render = scene.RenderSettings{
		Camera:          "default",
		SamplesPerPixel: 64,
		SampleBatches:   2,
		MaxRayDepth:     50,
		AspectRatio:     16.0 / 9.0,
	}

	return s
}
