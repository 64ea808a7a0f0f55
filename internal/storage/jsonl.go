package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"swapScope/internal/model"
)

// JSONLWriter appends JSON lines to a file or an already open stream.
type JSONLWriter struct {
	path string
	out  io.Writer
	mu   sync.Mutex
}

// NewJSONLFile appends to path, creating its directory on first write.
func NewJSONLFile(path string) *JSONLWriter {
	return &JSONLWriter{path: path}
}

// NewJSONLStream writes to out, e.g. stdout.
func NewJSONLStream(out io.Writer) *JSONLWriter {
	return &JSONLWriter{out: out}
}

// PutAlerts writes one alert per line.
func (w *JSONLWriter) PutAlerts(_ context.Context, alerts []model.Alert) error {
	records := make([]any, 0, len(alerts))
	for _, alert := range alerts {
		records = append(records, alert)
	}
	return w.Write(records...)
}

// Write encodes each record on its own line.
func (w *JSONLWriter) Write(records ...any) error {
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	out := w.out
	if out == nil {
		dir := filepath.Dir(w.path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}
		file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	writer := bufio.NewWriter(out)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
