package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level, env string
		want       zerolog.Level
	}{
		{"", "production", zerolog.InfoLevel},
		{"", "development", zerolog.DebugLevel},
		{"WARN", "development", zerolog.WarnLevel},
		{"error", "production", zerolog.ErrorLevel},
		{"loud", "development", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.level, tt.env), "level=%q env=%q", tt.level, tt.env)
	}
}

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "", "production")

	l.WithStr("component", "matcher").Info().Int("pairs", 3).Msg("Matched")
	l.Debug().Msg("hidden")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "info", got[0]["level"])
	assert.Equal(t, "matcher", got[0]["component"])
	assert.Equal(t, float64(3), got[0]["pairs"])
	assert.Equal(t, "Matched", got[0]["message"])
}

func TestDeduplicator(t *testing.T) {
	var buf bytes.Buffer
	d := NewDeduplicator(New(&buf, "debug", "production"), time.Hour)

	d.Printf("Skipping card %d: %s", 1, "no price")
	d.Printf("Skipping card %d: %s", 1, "no price")
	d.Printf("Skipping card %d: %s", 1, "no price")
	d.Printf("Price extracted")
	assert.Equal(t, 1, len(lines(t, bytes.NewBuffer(buf.Bytes()))), "repeats stay pending until the message changes")

	d.Flush()
	d.Flush()

	got := lines(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "Skipping card 1: no price", got[0]["message"])
	assert.Equal(t, float64(3), got[0]["repeats"])
	assert.Equal(t, "Price extracted", got[1]["message"])
	assert.NotContains(t, got[1], "repeats")
}

func TestDeduplicatorFlushesAfterDelay(t *testing.T) {
	var buf safeBuffer
	d := NewDeduplicator(New(&buf, "debug", "production"), 10*time.Millisecond)

	d.Printf("once")
	assert.Eventually(t, func() bool { return bytes.Contains(buf.Bytes(), []byte(`"message":"once"`)) },
		time.Second, 5*time.Millisecond)
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
