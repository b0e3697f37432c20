package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OMS_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("OMS_GRPC_ADDR", "127.0.0.1:0")
	t.Setenv("OMS_METRICS_ADDR", "127.0.0.1:0")
	t.Setenv("OMS_STORAGE_DRIVER", "memory")
	t.Setenv("OMS_JWT_SECRET", "")
	t.Setenv("KAFKA_BROKERS", "")
}

func TestSetupLogger(t *testing.T) {
	setupLogger()
	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OMS_STORAGE_DRIVER", "sqlite")

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	isolateEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected clean stop or deadline, got %v", err)
	}
}
