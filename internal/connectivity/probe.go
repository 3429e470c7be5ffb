package connectivity

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultProbeInterval is used when NewProbe is given a non-positive interval.
const DefaultProbeInterval = 5 * time.Second

// PingFunc checks reachability of the remote. A nil error means online.
type PingFunc func(ctx context.Context) error

// RedisPing returns a PingFunc that issues PING against client.
func RedisPing(client redis.UniversalClient) PingFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// Probe derives a Signal from periodic health checks.
type Probe struct {
	*Var

	ping     PingFunc
	interval time.Duration
	logger   *slog.Logger
}

// NewProbe creates a probe that starts offline until the first check.
func NewProbe(ping PingFunc, interval time.Duration, logger *slog.Logger) *Probe {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		Var:      NewVar(false),
		ping:     ping,
		interval: interval,
		logger:   logger,
	}
}

// Check runs one health check and updates the signal. Each check is bounded
// by the probe interval.
func (p *Probe) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	err := p.ping(ctx)
	online := err == nil
	if online != p.Online() {
		if online {
			p.logger.Info("remote reachable")
		} else {
			p.logger.Warn("remote unreachable", "error", err)
		}
	}
	p.Set(online)
	return online
}

// Run checks immediately and then once per interval until ctx is done.
// The signal is left offline when Run returns.
func (p *Probe) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.Set(false)

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
