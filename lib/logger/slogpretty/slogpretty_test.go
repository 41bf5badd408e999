package slogpretty

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleWritesMessageAndFields(t *testing.T) {
	var buf bytes.Buffer
	opts := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}
	log := slog.New(opts.NewPrettyHandler(&buf))

	log.Info("session connected", slog.String("session_id", "abc"))

	out := buf.String()
	assert.Contains(t, out, "session connected")
	assert.Contains(t, out, "session_id")
	assert.Contains(t, out, "abc")
}

func TestWithAttrsCarriedIntoOutput(t *testing.T) {
	var buf bytes.Buffer
	opts := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}
	log := slog.New(opts.NewPrettyHandler(&buf)).With(slog.String("room", "abc123"))

	log.Debug("joined")

	require.Contains(t, buf.String(), "room")
	assert.Contains(t, buf.String(), "abc123")
}
