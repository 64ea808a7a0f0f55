package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"swapScope/internal/model"
)

const defaultStream = "swapscope:alerts"

// Stream appends alerts to a Redis stream for downstream consumers.
type Stream struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStream(ctx context.Context, url, stream string, maxLen int64) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newStream(client, stream, maxLen), nil
}

func newStream(client *redis.Client, stream string, maxLen int64) *Stream {
	if strings.TrimSpace(stream) == "" {
		stream = defaultStream
	}
	return &Stream{client: client, stream: stream, maxLen: maxLen}
}

func (s *Stream) Close() error {
	return s.client.Close()
}

// PutAlerts XADDs each alert in one pipeline.
func (s *Stream) PutAlerts(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, alert := range alerts {
		args, err := s.addArgs(alert)
		if err != nil {
			return err
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

func (s *Stream) addArgs(alert model.Alert) (*redis.XAddArgs, error) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("marshal alert: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":      alert.ID,
			"kind":    string(alert.Kind),
			"chain":   alert.ChainID,
			"tx":      alert.TxHash.Hex(),
			"payload": string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return args, nil
}
