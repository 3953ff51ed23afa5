/*
Lumen renders a scene file with Vulkan hardware ray tracing and keeps
re-rendering it as the file changes on disk.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/core"
)

func main() {
	configPath := flag.String("config", "lumen.toml", "engine config file")
	flag.Parse()

	scenePath := flag.Arg(0)
	if scenePath == "" {
		scenePath = "assets/scenes/cornell_box.json"
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}
	core.SetLogLevel(cfg.LogLevel)

	app, err := engine.New(cfg, scenePath)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := app.Initialize(); err != nil {
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		_ = app.Shutdown()
		os.Exit(0)
	}()

	if err := app.Run(); err != nil {
		core.LogError(err.Error())
	}
	if err := app.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
}
