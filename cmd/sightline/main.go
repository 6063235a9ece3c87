// Sightline narrates a camera feed for blind and low-vision users: it detects
// objects, reads text and estimates depth, then speaks what matters.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-sightline/internal/app"
	"github.com/teslashibe/go-sightline/internal/config"
	"github.com/teslashibe/go-sightline/internal/log"
)

var version = "dev"

func main() {
	configFlag := flag.String("config", "", "Path to YAML config (overrides SIGHTLINE_CONFIG)")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	path := config.Path(*configFlag)
	cfg := config.Default()
	config.ApplyEnv(cfg)
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *debug {
		cfg.Server.LogLevel = "debug"
	}

	log.Init(cfg.Server.LogLevel)
	logger := log.Component("main")

	a, err := app.New(cfg, path, version)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if err := a.Init(ctx); err != nil {
		cancel()
		a.Shutdown()
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	runErr := a.Run(ctx)
	cancel()
	a.Shutdown()
	if runErr != nil {
		logger.Error("runtime error", "error", runErr)
		os.Exit(1)
	}
}
