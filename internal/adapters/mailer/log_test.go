package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/rs/zerolog"
)

func TestLog_SendWritesLink(t *testing.T) {
	var buf bytes.Buffer
	m := NewLog(zerolog.New(&buf))

	if err := m.Send(context.Background(), "a@b.c", domain.TokenPasswordReset, "http://x/reset?token=abc"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["link"] != "http://x/reset?token=abc" || line["purpose"] != "password_reset" || line["component"] != "mailer" {
		t.Fatalf("unexpected log line: %v", line)
	}
}
