package database

import (
	"testing"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := PoolConfig(config.PostgresSettings{
		Host:            "db.internal",
		Port:            5433,
		User:            "goshopper",
		Password:        "p@ss:w/rd?#",
		Database:        "goshopper",
		MaxConns:        8,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
	})
	if err != nil {
		t.Fatalf("PoolConfig: %v", err)
	}

	conn := cfg.ConnConfig
	if conn.Host != "db.internal" || conn.Port != 5433 || conn.Database != "goshopper" {
		t.Fatalf("unexpected target %s:%d/%s", conn.Host, conn.Port, conn.Database)
	}
	if conn.Password != "p@ss:w/rd?#" {
		t.Fatalf("password not round-tripped: %q", conn.Password)
	}
	if got := conn.RuntimeParams["search_path"]; got != "account,public" {
		t.Fatalf("search_path = %q", got)
	}
	if got := conn.RuntimeParams["application_name"]; got != applicationName {
		t.Fatalf("application_name = %q", got)
	}
	if cfg.MaxConns != 8 || cfg.MinConns != 2 || cfg.MaxConnLifetime != time.Hour {
		t.Fatalf("pool limits not applied: %d %d %v", cfg.MaxConns, cfg.MinConns, cfg.MaxConnLifetime)
	}
}

func TestPoolConfig_IgnoresMinAboveMax(t *testing.T) {
	cfg, err := PoolConfig(config.PostgresSettings{Host: "localhost", Port: 5432, User: "u", Database: "d", Schema: "shop", MaxConns: 2, MinConns: 5})
	if err != nil {
		t.Fatalf("PoolConfig: %v", err)
	}
	if cfg.MinConns != 0 {
		t.Fatalf("MinConns = %d, want default", cfg.MinConns)
	}
	if got := cfg.ConnConfig.RuntimeParams["search_path"]; got != "shop,public" {
		t.Fatalf("search_path = %q", got)
	}
}
