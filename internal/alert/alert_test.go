package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	texts []string
	err   error
	block chan struct{}
}

func (s *recordingSink) Send(_ context.Context, text string) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

func (s *recordingSink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func TestTelegramSinkSend(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	sink, err := NewTelegramSink("123:abc", "-100200", WithTelegramAPI(srv.URL))
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), "Swap detected!\nUser: <b>alice</b>"))
	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "-100200", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.True(t, got.DisableWebPagePreview)
	assert.Equal(t, "Swap detected!\nUser: <b>alice</b>", got.Text)
}

func TestTelegramSinkReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	sink, err := NewTelegramSink("123:abc", "1", WithTelegramAPI(srv.URL))
	require.NoError(t, err)

	err = sink.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestNewTelegramSinkValidates(t *testing.T) {
	_, err := NewTelegramSink("", "1")
	assert.Error(t, err)
	_, err = NewTelegramSink("token", " ")
	assert.Error(t, err)
}

func TestDispatcherFansOutAndDropsFailures(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}
	ok := &recordingSink{}

	d := NewDispatcher(8, time.Second, nil, failing, ok)
	d.Start(context.Background())

	assert.True(t, d.Enqueue("first"))
	assert.True(t, d.Enqueue("second"))
	d.Close()

	assert.Equal(t, []string{"first", "second"}, failing.Texts())
	assert.Equal(t, []string{"first", "second"}, ok.Texts())
	assert.False(t, d.Enqueue("late"))
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	release := make(chan struct{})
	slow := &recordingSink{block: release}

	d := NewDispatcher(1, time.Second, nil, slow)
	d.Start(context.Background())

	// The worker may already hold the first alert, so fill past capacity.
	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Enqueue("alert") {
			accepted++
		}
	}
	assert.Less(t, accepted, 5)

	close(release)
	d.Close()
	assert.Len(t, slow.Texts(), accepted)
}
