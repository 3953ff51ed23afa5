package engine

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// Application ties the window, the GPU backend, the render engine and the
// scene watcher together. One Application renders one scene file, reloading
// it whenever it changes on disk.
type Application struct {
	config    *core.Config
	scenePath string

	platform *platform.Platform
	device   *vulkan.Backend
	renderer *renderer.Engine
	watcher  *scene.Watcher
	clock    *core.Clock

	// pendingScene hands reloaded scenes from the watcher goroutine to the
	// render loop. Capacity one; a newer reload replaces the queued one.
	pendingScene chan *scene.Scene

	// resize state written by the framebuffer callback. Callbacks fire
	// inside PumpMessages on the render thread, so no locking is needed.
	resizePending bool
	resizeWidth   uint32
	resizeHeight  uint32

	isRunning   bool
	isSuspended bool

	// accumulationTimed flips once the completion time has been logged for
	// the current accumulation run.
	accumulationTimed bool
}

func New(cfg *core.Config, scenePath string) (*Application, error) {
	p, err := platform.New()
	if err != nil {
		return nil, err
	}
	return &Application{
		config:       cfg,
		scenePath:    scenePath,
		platform:     p,
		clock:        core.NewClock(),
		pendingScene: make(chan *scene.Scene, 1),
		isRunning:    true,
	}, nil
}

func (a *Application) Initialize() error {
	s, err := scene.Load(a.scenePath)
	if err != nil {
		return err
	}

	winWidth, winHeight := a.config.Window.Width, a.config.Window.Height
	if ratio := s.Render.AspectRatio; ratio > 0 {
		winHeight = uint32(float32(winWidth) / ratio)
	}

	name := "lumen - " + filepath.Base(a.scenePath)
	if err := a.platform.Startup(name, winWidth, winHeight); err != nil {
		return err
	}
	a.platform.OnResize = a.onResize
	if s.Render.AspectRatio > 0 {
		a.platform.LockAspectRatio(int(winWidth), int(winHeight))
	}

	width, height := a.platform.FramebufferSize()
	device, err := vulkan.New(vulkan.Options{
		AppName:             name,
		InstanceExtensions:  a.platform.RequiredInstanceExtensions(),
		CreateSurface:       a.platform.CreateSurface,
		GetInstanceProcAddr: a.platform.InstanceProcAddr(),
		Width:               width,
		Height:              height,
		ShaderDir:           filepath.Join(a.config.AssetsDir, "shaders"),
		EnableValidation:    a.config.Vulkan.EnableValidation,
	})
	if err != nil {
		return err
	}
	a.device = device

	if a.renderer, err = renderer.NewEngine(a.device, s); err != nil {
		return err
	}

	if a.watcher, err = scene.NewWatcher(a.scenePath, a.queueScene); err != nil {
		return err
	}

	core.LogInfo("application: ready, watching %s", a.scenePath)
	return nil
}

// queueScene runs on the watcher goroutine. Only the newest pending scene
// matters, so a stale queued scene is dropped in its favour.
func (a *Application) queueScene(s *scene.Scene) {
	for {
		select {
		case a.pendingScene <- s:
			return
		default:
			select {
			case <-a.pendingScene:
			default:
			}
		}
	}
}

func (a *Application) onResize(width, height uint32) {
	a.resizePending = true
	a.resizeWidth = width
	a.resizeHeight = height
}

func (a *Application) Run() error {
	a.clock.Start()

	for a.isRunning {
		if a.platform.ShouldClose() {
			a.isRunning = false
			break
		}

		if a.isSuspended {
			// zero-sized drawable, wait for the window to come back
			a.platform.WaitEvents()
		} else {
			a.platform.PumpMessages()
		}

		a.applyPendingScene()

		if a.resizePending {
			a.resizePending = false
			if a.resizeWidth == 0 || a.resizeHeight == 0 {
				core.LogInfo("application: window minimized, suspending")
				a.isSuspended = true
				continue
			}
			if a.isSuspended {
				core.LogInfo("application: window restored, resuming")
				a.isSuspended = false
			}
			if err := a.renderer.Resize(a.resizeWidth, a.resizeHeight); err != nil {
				return err
			}
			a.clock.Start()
			a.accumulationTimed = false
		}
		if a.isSuspended {
			continue
		}

		switch err := a.renderer.Render(); {
		case err == nil:
		case errors.Is(err, core.ErrSwapchainOutOfDate):
			w, h := a.platform.FramebufferSize()
			if w == 0 || h == 0 {
				a.isSuspended = true
				continue
			}
			if err := a.renderer.Resize(w, h); err != nil {
				return err
			}
		default:
			return err
		}

		if a.renderer.State() == renderer.StateComplete {
			if !a.accumulationTimed {
				a.accumulationTimed = true
				core.LogInfo("application: accumulation finished in %s", a.clock.Elapsed())
			}
			// accumulation is done, nothing to trace until something changes
			time.Sleep(10 * time.Millisecond)
		}
	}
	return nil
}

// applyPendingScene swaps in a reloaded scene. A failed rebuild keeps the
// current scene on screen.
func (a *Application) applyPendingScene() {
	select {
	case s := <-a.pendingScene:
		next, err := renderer.NewEngine(a.device, s)
		if err != nil {
			core.LogError("application: scene rebuild failed, keeping previous scene: %s", err.Error())
			return
		}
		a.renderer.Destroy()
		a.renderer = next
		a.clock.Start()
		a.accumulationTimed = false
		core.LogInfo("application: scene swapped in")
	default:
	}
}

func (a *Application) Shutdown() error {
	if a.watcher != nil {
		a.watcher.Close()
		a.watcher = nil
	}
	if a.renderer != nil {
		a.renderer.Destroy()
		a.renderer = nil
	}
	if a.device != nil {
		a.device.Destroy()
		a.device = nil
	}
	return a.platform.Shutdown()
}
