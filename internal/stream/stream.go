package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swapScope/internal/chain"
	"swapScope/internal/metrics"
	"swapScope/internal/model"
)

// Mode selects how new activity is discovered.
type Mode string

const (
	ModePoll Mode = "poll"
	ModePush Mode = "push"
)

// Handler consumes stream activity. Calls receive the client of the current session.
type Handler interface {
	// HandleBlock processes every transaction of block number. Returned errors are
	// block-level; per-transaction failures are the handler's to log.
	HandleBlock(ctx context.Context, client chain.RPC, number uint64) error
	// HandleLog processes the transaction that emitted log.
	HandleLog(ctx context.Context, client chain.RPC, log types.Log) error
}

// Dialer opens a client for an endpoint.
type Dialer func(ctx context.Context, endpoint string) (chain.RPC, error)

// Config holds stream settings. Zero durations and counts take defaults.
type Config struct {
	Endpoints            []string
	Mode                 Mode
	PollInterval         time.Duration
	MaxBlocksPerTick     uint64
	StartBlock           uint64
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	MaxReconnectDelay    time.Duration
	RateLimitCooldown    time.Duration
	HeartbeatInterval    time.Duration
	IdleTimeout          time.Duration
	StatusInterval       time.Duration
	RPCTimeout           time.Duration
	Workers              int
	Topics               []common.Hash
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModePoll
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.MaxBlocksPerTick == 0 {
		c.MaxBlocksPerTick = 5
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.RateLimitCooldown <= 0 {
		c.RateLimitCooldown = time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = time.Minute
	}
	if c.RPCTimeout <= 0 {
		c.RPCTimeout = 10 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Stream keeps a chain session alive across failures and feeds a Handler.
type Stream struct {
	cfg       Config
	dial      Dialer
	handler   Handler
	logger    *zap.Logger
	endpoints *endpointRing

	state    atomic.Int32
	endpoint atomic.Value
	progress atomic.Bool
	events   atomic.Uint64

	// Polling pointer. Written only by the poll driver.
	last        atomic.Uint64
	initialized atomic.Bool
}

func New(cfg Config, dial Dialer, handler Handler, logger *zap.Logger) (*Stream, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one rpc endpoint is required")
	}
	if dial == nil {
		return nil, fmt.Errorf("dialer is nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is nil")
	}
	if cfg.Mode != "" && cfg.Mode != ModePoll && cfg.Mode != ModePush {
		return nil, fmt.Errorf("unsupported stream mode %q", cfg.Mode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	s := &Stream{
		cfg:       cfg,
		dial:      dial,
		handler:   handler,
		logger:    logger,
		endpoints: newEndpointRing(cfg.Endpoints),
	}
	s.endpoint.Store(s.endpoints.Current())
	return s, nil
}

// State returns the current connection state.
func (s *Stream) State() model.ConnectionState {
	return model.ConnectionState(s.state.Load())
}

// Endpoint returns the endpoint of the current or most recent session.
func (s *Stream) Endpoint() string {
	endpoint, _ := s.endpoint.Load().(string)
	return endpoint
}

// LastBlock returns the polling pointer and whether it has been initialized.
func (s *Stream) LastBlock() (uint64, bool) {
	return s.last.Load(), s.initialized.Load()
}

func (s *Stream) setState(state model.ConnectionState) {
	previous := model.ConnectionState(s.state.Swap(int32(state)))
	metrics.StreamState.Set(float64(state))
	if previous != state {
		s.logger.Info("stream state",
			zap.String("from", previous.String()),
			zap.String("to", state.String()),
			zap.String("endpoint", s.Endpoint()),
		)
	}
}

func (s *Stream) markProgress() {
	s.progress.Store(true)
}

// Run drives sessions until ctx is canceled or every endpoint is exhausted.
func (s *Stream) Run(ctx context.Context) error {
	statusCtx, stopStatus := context.WithCancel(ctx)
	defer stopStatus()
	go s.reportStatus(statusCtx)

	attempts := 0
	delay := s.cfg.ReconnectDelay
	for {
		if err := ctx.Err(); err != nil {
			s.setState(model.StateDisconnected)
			return err
		}

		endpoint := s.endpoints.Current()
		s.endpoint.Store(endpoint)
		metrics.ActiveEndpoint.WithLabelValues(endpoint).Set(1)
		if attempts == 0 {
			s.setState(model.StateConnecting)
		} else {
			s.setState(model.StateReconnecting)
		}

		s.progress.Store(false)
		err := s.session(ctx, endpoint)
		if ctx.Err() != nil {
			s.setState(model.StateDisconnected)
			return ctx.Err()
		}
		if s.progress.Load() {
			s.endpoints.ResetCycle()
			attempts = 0
			delay = s.cfg.ReconnectDelay
		}
		if err == nil {
			err = errors.New("session ended")
		}

		if chain.Classify(err) == chain.KindRateLimited {
			metrics.RateLimited.Inc()
			s.logger.Warn("rpc rate limited, rotating endpoint", zap.String("endpoint", endpoint), zap.Error(err))
			if err := s.rotate("rate_limited"); err != nil {
				return err
			}
			attempts = 0
			delay = s.cfg.ReconnectDelay
			if err := chain.Sleep(ctx, s.cfg.RateLimitCooldown); err != nil {
				s.setState(model.StateDisconnected)
				return err
			}
			continue
		}

		s.setState(model.StateDegraded)
		attempts++
		metrics.Reconnects.Inc()
		s.logger.Warn("stream session ended",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempts),
			zap.String("kind", string(chain.Classify(err))),
			zap.Error(err),
		)
		if attempts >= s.cfg.MaxReconnectAttempts {
			if err := s.rotate("reconnect_budget"); err != nil {
				return err
			}
			attempts = 0
			delay = s.cfg.ReconnectDelay
			continue
		}

		s.setState(model.StateReconnecting)
		if err := chain.Sleep(ctx, delay); err != nil {
			s.setState(model.StateDisconnected)
			return err
		}
		delay *= 2
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}
	}
}

func (s *Stream) rotate(reason string) error {
	from := s.endpoints.Current()
	next, err := s.endpoints.Rotate()
	if err != nil {
		s.setState(model.StateFatalFailure)
		s.logger.Error("rpc endpoints exhausted",
			zap.Int("endpoints", s.endpoints.Len()),
			zap.String("last_endpoint", from),
			zap.String("reason", reason),
		)
		return err
	}
	metrics.Rotations.WithLabelValues(reason).Inc()
	metrics.ActiveEndpoint.WithLabelValues(from).Set(0)
	s.logger.Info("rotate endpoint", zap.String("from", from), zap.String("to", next), zap.String("reason", reason))
	return nil
}

func (s *Stream) session(ctx context.Context, endpoint string) error {
	client, err := s.dial(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer client.Close()

	switch s.cfg.Mode {
	case ModePush:
		return s.push(ctx, client)
	default:
		return s.poll(ctx, client)
	}
}

func (s *Stream) reportStatus(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last, _ := s.LastBlock()
			s.logger.Info("stream status",
				zap.String("state", s.State().String()),
				zap.String("endpoint", s.Endpoint()),
				zap.Uint64("last_block", last),
				zap.Uint64("events", s.events.Swap(0)),
			)
		}
	}
}
