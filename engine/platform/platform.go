package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the window and routes its callbacks. The render loop and
// every Vulkan call run on the thread that created it.
type Platform struct {
	Window *glfw.Window

	// OnResize fires from the framebuffer size callback with the new
	// drawable size in pixels.
	OnResize func(width, height uint32)
	// OnKey fires on key press only.
	OnKey func(key glfw.Key)
}

func New() (*Platform, error) {
	return &Platform{}, nil
}

func (p *Platform) Startup(applicationName string, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogFatal("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		return fmt.Errorf("platform: no vulkan loader available")
	}

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return fmt.Errorf("platform: vulkan init failed: %w", err)
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogFatal("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// RequiredInstanceExtensions lists the instance extensions the window
// system needs for presentation.
func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// InstanceProcAddr exposes the loader's vkGetInstanceProcAddr so the
// renderer can resolve extension functions at runtime.
func (p *Platform) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// CreateSurface makes the presentation surface for an instance.
func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("platform: surface creation failed: %w", err)
	}
	return vk.SurfaceFromPointer(surface), nil
}

// FramebufferSize returns the drawable size in pixels, which differs from
// the window size on high-DPI displays.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// LockAspectRatio constrains interactive resizing to the given ratio.
func (p *Platform) LockAspectRatio(numerator, denominator int) {
	p.Window.SetAspectRatio(numerator, denominator)
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

// WaitEvents blocks until something happens. Used while the window is
// minimized so the loop does not spin at zero size.
func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	if key == glfw.KeyEscape {
		w.SetShouldClose(true)
		return
	}
	if p.OnKey != nil {
		p.OnKey(key)
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	// Zero sizes are forwarded too; a minimized window reports 0x0 and the
	// application suspends on it.
	if p.OnResize != nil {
		p.OnResize(uint32(width), uint32(height))
	}
}
