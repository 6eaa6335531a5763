package app

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository/memory"
	redisrepo "github.com/kandyfoma/goshopperai-sub000/internal/repository/redis"
)

func TestStateStoresFollowConfig(t *testing.T) {
	server := miniredis.RunT(t)
	rdb := red.NewClient(&red.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log := zaptest.NewLogger(t)

	cfg := &config.AppConfig{App: config.AppSettings{LockoutStore: "redis", DraftStore: "redis"}}
	if _, ok := lockoutStore(cfg, rdb, log).(*redisrepo.LockoutRepository); !ok {
		t.Fatal("redis lockout store expected")
	}
	if _, ok := draftStore(cfg, rdb, log).(*redisrepo.DraftRepository); !ok {
		t.Fatal("redis draft store expected")
	}

	cfg.App.LockoutStore, cfg.App.DraftStore = "memory", "memory"
	if _, ok := lockoutStore(cfg, rdb, log).(*memory.LockoutStore); !ok {
		t.Fatal("memory lockout store expected")
	}
	if _, ok := draftStore(cfg, rdb, log).(*memory.DraftStore); !ok {
		t.Fatal("memory draft store expected")
	}
}
