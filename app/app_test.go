package app

import (
	"testing"

	"go.uber.org/zap"

	"github.com/strandkit/strand/config"
)

func TestBuildRouterValidatesHandlers(t *testing.T) {
	cfg := &config.Config{
		Routes: []config.Route{
			{Pattern: "/files/(word:.*)", Handler: "static", Args: map[string]any{"root": "/tmp"}},
		},
	}
	a := New(cfg, zap.NewNop())
	if _, err := a.BuildRouter(); err != nil {
		t.Fatalf("BuildRouter: %v", err)
	}

	cfg.Routes = append(cfg.Routes, config.Route{Pattern: "/x", Handler: "missing.handler"})
	if _, err := a.BuildRouter(); err == nil {
		t.Fatal("unknown handler must fail at startup")
	}
}

func TestBuildRouterRejectsBadPattern(t *testing.T) {
	cfg := &config.Config{
		Routes: []config.Route{
			{Pattern: "/x/(uuid:\\d+)", Handler: "static"},
		},
	}
	if _, err := New(cfg, zap.NewNop()).BuildRouter(); err == nil {
		t.Fatal("unknown capture tag must fail at startup")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(config.Logging{Level: "debug"}); err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if _, err := NewLogger(config.Logging{Level: "nope"}); err == nil {
		t.Fatal("bad level must fail")
	}
}
