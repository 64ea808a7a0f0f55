package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapScope/internal/model"
)

func TestJSONLFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "alerts.jsonl")
	w := NewJSONLFile(path)

	first := model.NewAlert(model.AlertSwap, 56)
	first.TxHash = common.HexToHash("0x01")
	second := model.NewAlert(model.AlertTransfer, 56)

	require.NoError(t, w.PutAlerts(context.Background(), []model.Alert{first}))
	require.NoError(t, w.PutAlerts(context.Background(), []model.Alert{second}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded model.Alert
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
		ids = append(ids, decoded.ID)
	}
	assert.Equal(t, []string{first.ID, second.ID}, ids)
}

func TestJSONLStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLStream(&buf)
	require.NoError(t, w.Write(map[string]int{"a": 1}, map[string]int{"b": 2}))
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", buf.String())
}

type failingArchive struct{ calls int }

func (f *failingArchive) PutAlerts(context.Context, []model.Alert) error {
	f.calls++
	return errors.New("unavailable")
}

func TestMultiContinuesAfterFailure(t *testing.T) {
	failing := &failingArchive{}
	var buf bytes.Buffer
	multi := Multi{failing, NewJSONLStream(&buf)}

	err := multi.PutAlerts(context.Background(), []model.Alert{model.NewAlert(model.AlertSwap, 8453)})
	assert.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.NotEmpty(t, buf.String())
}
