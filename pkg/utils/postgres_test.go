package utils

import "testing"

func TestPostgresPoolDefaults(t *testing.T) {
	cfg := PostgresPoolConfig{}.withDefaults()
	if cfg.MaxOpenConns <= 0 {
		t.Fatalf("expected positive MaxOpenConns")
	}
	if cfg.PingTimeout <= 0 {
		t.Fatalf("expected positive PingTimeout")
	}
	if cfg.MaxIdleConns != cfg.MaxOpenConns {
		t.Fatalf("idle pool should match open pool by default: idle=%d open=%d", cfg.MaxIdleConns, cfg.MaxOpenConns)
	}
}

func TestPostgresPoolCapsIdleAtOpen(t *testing.T) {
	cfg := PostgresPoolConfig{MaxOpenConns: 4, MaxIdleConns: 50}.withDefaults()
	if cfg.MaxIdleConns != 4 {
		t.Fatalf("idle conns %d, want capped at 4", cfg.MaxIdleConns)
	}
}
