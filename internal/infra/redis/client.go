package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
)

const pingTimeout = 5 * time.Second

// Options maps the settings onto go-redis options. Timeouts are short because
// every caller sits on a request path and fails open or falls back.
func Options(cfg config.RedisSettings) *red.Options {
	opts := &red.Options{
		Addr:            net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        10,
		MinIdleConns:    2,
		MaxRetries:      2,
		DialTimeout:     3 * time.Second,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		PoolTimeout:     2 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.Host}
	}
	return opts
}

// Client is the shared pool behind the lockout, draft, OTP and rate-limit stores.
type Client struct {
	rdb *red.Client
	log *zap.Logger
}

// NewClient dials and pings; a server that does not answer fails startup.
func NewClient(ctx context.Context, cfg config.RedisSettings, log *zap.Logger) (*Client, error) {
	rdb := red.NewClient(Options(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", rdb.Options().Addr, err)
	}

	log.Info("redis ready", zap.String("addr", rdb.Options().Addr), zap.Int("db", cfg.DB), zap.Bool("tls", cfg.TLSEnabled))
	return &Client{rdb: rdb, log: log}, nil
}

func (c *Client) Client() *red.Client { return c.rdb }

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// HealthCheck backs the readiness probe.
func (c *Client) HealthCheck(ctx context.Context) error { return c.Ping(ctx) }

func (c *Client) Close() error {
	c.log.Info("closing redis pool")
	return c.rdb.Close()
}

// PoolCollector exports go-redis pool statistics.
type PoolCollector struct {
	rdb *red.Client

	conns    *prometheus.Desc
	hits     *prometheus.Desc
	misses   *prometheus.Desc
	timeouts *prometheus.Desc
}

// NewPoolCollector describes the pool of c under namespace.
func NewPoolCollector(c *Client, namespace string) *PoolCollector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "redis_pool", n) }
	return &PoolCollector{
		rdb:      c.rdb,
		conns:    prometheus.NewDesc(name("connections"), "Connections in the pool by state.", []string{"state"}, nil),
		hits:     prometheus.NewDesc(name("hits_total"), "Times a free connection was found in the pool.", nil, nil),
		misses:   prometheus.NewDesc(name("misses_total"), "Times a connection had to be dialed.", nil, nil),
		timeouts: prometheus.NewDesc(name("timeouts_total"), "Times a caller gave up waiting for a connection.", nil, nil),
	}
}

func (p *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.conns
	ch <- p.hits
	ch <- p.misses
	ch <- p.timeouts
}

func (p *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.rdb.PoolStats()
	ch <- prometheus.MustNewConstMetric(p.conns, prometheus.GaugeValue, float64(s.IdleConns), "idle")
	ch <- prometheus.MustNewConstMetric(p.conns, prometheus.GaugeValue, float64(s.TotalConns-s.IdleConns), "in_use")
	ch <- prometheus.MustNewConstMetric(p.conns, prometheus.GaugeValue, float64(s.StaleConns), "stale")
	ch <- prometheus.MustNewConstMetric(p.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(p.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(p.timeouts, prometheus.CounterValue, float64(s.Timeouts))
}
