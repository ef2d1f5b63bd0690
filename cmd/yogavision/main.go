package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"yogavision"
	"yogavision/config"
	"yogavision/log"

	"go.uber.org/zap"
)

func main() {
	var (
		path      = flag.String("config", "", "YAML config file")
		backend   = flag.String("backend", "", "pose backend address, e.g. http://localhost:5000")
		source    = flag.String("camera", "", "camera source: v4l2 or pattern")
		device    = flag.String("device", "", "V4L2 device path")
		listen    = flag.String("listen", "", "console listen address")
		level     = flag.String("log", "", "log level: debug, info, warn, error")
		exercises = flag.String("exercises", "", "comma separated exercises to enable before streaming")
	)

	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	override(&cfg.Backend.Addr, *backend)
	override(&cfg.Camera.Source, *source)
	override(&cfg.Camera.Device, *device)
	override(&cfg.Console.Listen, *listen)
	override(&cfg.LogLevel, *level)

	if *exercises != "" {
		cfg.Exercises.Enable = strings.Split(*exercises, ",")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.Init(cfg.Name, cfg.LogLevel)
	defer log.Sync()

	app, err := yogavision.FromConfig(cfg)
	if err != nil {
		log.Error("Setup", zap.String("err", err.Error()))
		os.Exit(1)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Error("Run", zap.String("err", err.Error()))
		log.Sync()
		os.Exit(1)
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
