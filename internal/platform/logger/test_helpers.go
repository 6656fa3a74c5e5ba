package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// TestLogBuffer collects JSON log lines written concurrently by a test logger.
type TestLogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *TestLogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *TestLogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// GetLogEntries decodes one JSON record per non-blank line.
func (b *TestLogBuffer) GetLogEntries() ([]map[string]any, error) {
	var entries []map[string]any
	sc := bufio.NewScanner(strings.NewReader(b.String()))
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		entry := map[string]any{}
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("log line %d: %w", n, err)
		}
		entries = append(entries, entry)
	}
	return entries, sc.Err()
}

// NewTestLogger returns a debug-level JSON logger and the buffer it writes to.
func NewTestLogger(t testing.TB) (*TestLogBuffer, *slog.Logger) {
	t.Helper()
	buf := &TestLogBuffer{}
	return buf, slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// AssertLogContains fails the test when no captured record contains substr.
func AssertLogContains(t testing.TB, buf *TestLogBuffer, substr string) {
	t.Helper()
	if out := buf.String(); !strings.Contains(out, substr) {
		t.Errorf("log output missing %q:\n%s", substr, out)
	}
}
