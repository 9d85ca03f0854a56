package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/msgslot/internal/config"
	"github.com/danmuck/msgslot/internal/logging"
	"github.com/danmuck/msgslot/internal/server"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "slotd config path (.toml, .yaml, .yml)")
	flag.Parse()
	logging.ConfigureRuntime("slotd")

	fileCfg := config.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		fileCfg = loaded
	}
	cfg, err := server.ServiceConfigFrom(fileCfg)
	if err != nil {
		fatal(err)
	}
	svc, err := server.NewService(cfg)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := svc.Run(ctx); err != nil {
		fatal(err)
	}
	log.Info().Msg("slotd stopped")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "slotd: %v\n", err)
	os.Exit(1)
}
