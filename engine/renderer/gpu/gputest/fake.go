// Package gputest provides a recording in-memory Device for tests.
package gputest

import (
	"fmt"
	"image"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type FakeBuffer struct {
	Label     string
	Data      []byte
	Uniform   bool
	Destroyed bool
}

func (b *FakeBuffer) Name() string { return b.Label }
func (b *FakeBuffer) Size() uint64 { return uint64(len(b.Data)) }
func (b *FakeBuffer) Destroy()     { b.Destroyed = true }

type FakeTexture struct {
	Label     string
	Bounds    image.Rectangle
	Destroyed bool
}

func (t *FakeTexture) Name() string { return t.Label }
func (t *FakeTexture) Destroy()     { t.Destroyed = true }

type FakeAcceleration struct {
	Meshes    []gpu.MeshGeometry
	Instances []gpu.InstanceRecord
	Destroyed bool
}

func (a *FakeAcceleration) Destroy() { a.Destroyed = true }

// FakeDevice records every call so tests can assert on the compiled scene
// without a GPU. Errors can be injected per method.
type FakeDevice struct {
	Width, Height uint32

	Buffers       []*FakeBuffer
	Textures      []*FakeTexture
	Acceleration  *FakeAcceleration
	Bound         *gpu.SceneBindings
	BindCount     int
	Batches       []*gpu.BatchParams
	ResizeCount   int
	WaitIdleCount int
	DestroyCalled bool

	FailBuffer error
	FailBuild  error
	FailRender error
}

func NewFakeDevice(width, height uint32) *FakeDevice {
	return &FakeDevice{Width: width, Height: height}
}

func (d *FakeDevice) SurfaceSize() (uint32, uint32) { return d.Width, d.Height }

func (d *FakeDevice) CreateStorageBuffer(name string, data []byte) (gpu.Buffer, error) {
	return d.createBuffer(name, data, false)
}

func (d *FakeDevice) CreateUniformBuffer(name string, data []byte) (gpu.Buffer, error) {
	return d.createBuffer(name, data, true)
}

func (d *FakeDevice) createBuffer(name string, data []byte, uniform bool) (gpu.Buffer, error) {
	if d.FailBuffer != nil {
		return nil, d.FailBuffer
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("gputest: empty buffer %q", name)
	}
	b := &FakeBuffer{Label: name, Data: append([]byte(nil), data...), Uniform: uniform}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *FakeDevice) CreateTexture(name string, img *image.RGBA) (gpu.Texture, error) {
	t := &FakeTexture{Label: name, Bounds: img.Bounds()}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *FakeDevice) BuildAccelerationStructures(meshes []gpu.MeshGeometry, instances []gpu.InstanceRecord) (gpu.AccelerationStructure, error) {
	if d.FailBuild != nil {
		return nil, d.FailBuild
	}
	d.Acceleration = &FakeAcceleration{Meshes: meshes, Instances: instances}
	return d.Acceleration, nil
}

func (d *FakeDevice) BindScene(b *gpu.SceneBindings) error {
	d.Bound = b
	d.BindCount++
	return nil
}

func (d *FakeDevice) Resize(width, height uint32) (uint32, uint32, error) {
	d.Width, d.Height = width, height
	d.ResizeCount++
	return width, height, nil
}

func (d *FakeDevice) RenderBatch(p *gpu.BatchParams) error {
	if d.FailRender != nil {
		return d.FailRender
	}
	cp := &gpu.BatchParams{
		Camera:        append([]byte(nil), p.Camera...),
		PushConstants: append([]byte(nil), p.PushConstants...),
	}
	d.Batches = append(d.Batches, cp)
	return nil
}

func (d *FakeDevice) WaitIdle() error {
	d.WaitIdleCount++
	return nil
}

func (d *FakeDevice) Destroy() { d.DestroyCalled = true }

// BufferByName finds a recorded buffer by its debug label.
func (d *FakeDevice) BufferByName(name string) *FakeBuffer {
	for _, b := range d.Buffers {
		if b.Label == name {
			return b
		}
	}
	return nil
}
