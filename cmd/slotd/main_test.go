package main

import (
	"testing"

	"github.com/danmuck/msgslot/internal/config"
	"github.com/danmuck/msgslot/internal/server"
	"github.com/danmuck/msgslot/internal/testutil/testlog"
)

func TestShippedConfigLoads(t *testing.T) {
	testlog.Start(t)
	fileCfg, err := config.Load("config.toml")
	if err != nil {
		t.Fatalf("load config.toml: %v", err)
	}
	cfg, err := server.ServiceConfigFrom(fileCfg)
	if err != nil {
		t.Fatalf("service config: %v", err)
	}
	if len(cfg.Slots) != 4 || cfg.AdminListenAddr == "" {
		t.Fatalf("unexpected service config: %+v", cfg)
	}
	svc, err := server.NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if got := len(svc.Registry().IDs()); got != 4 {
		t.Fatalf("expected 4 registered slots, got %d", got)
	}
}
