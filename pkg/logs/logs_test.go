package logs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/consultorio_backend/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestMultiHandlerRespectsLevels(t *testing.T) {
	var infoCount, errorCount int
	h := &multiHandler{handlers: []slog.Handler{
		countingHandler{min: slog.LevelInfo, n: &infoCount},
		countingHandler{min: slog.LevelError, n: &errorCount},
	}}
	log := slog.New(h)

	log.Info("one")
	log.Error("two")

	assert.Equal(t, 2, infoCount)
	assert.Equal(t, 1, errorCount)
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestLokiWriterPushesStream(t *testing.T) {
	var got lokiPush
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Server.Environment = "test"
	cfg.Logging.Output.Loki.Endpoint = srv.URL

	log := slog.New(newLokiHandler(cfg, slog.LevelInfo))
	log.Info("hello", "k", "v")

	require.Len(t, got.Streams, 1)
	assert.Equal(t, "consultorio", got.Streams[0].Stream["service"])
	assert.Equal(t, "test", got.Streams[0].Stream["env"])
	require.Len(t, got.Streams[0].Values, 1)
	assert.Contains(t, got.Streams[0].Values[0][1], `"msg":"hello"`)
}

type countingHandler struct {
	min slog.Level
	n   *int
}

func (c countingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= c.min }
func (c countingHandler) Handle(context.Context, slog.Record) error { *c.n++; return nil }
func (c countingHandler) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c countingHandler) WithGroup(string) slog.Handler { return c }
