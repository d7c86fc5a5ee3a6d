package definition

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/pitabwire/util"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
)

func TestLineLevel(t *testing.T) {
	testCases := []struct {
		name   string
		stream string
		line   string
		want   slog.Level
	}{
		{
			name: "policy violation", stream: testcontainers.StderrLog,
			line: `2026-10-15 10:00:00 UTC [61] ERROR:  new row violates row-level security policy for table "contacts"`,
			want: slog.LevelWarn,
		},
		{name: "fatal", stream: testcontainers.StderrLog, line: "FATAL:  terminating connection due to administrator command", want: slog.LevelError},
		{name: "startup chatter on stderr", stream: testcontainers.StderrLog, line: "LOG:  database system is ready to accept connections", want: slog.LevelInfo},
		{name: "unmarked stderr", stream: testcontainers.StderrLog, line: "initdb: warning: enabling trust authentication", want: slog.LevelWarn},
		{name: "unmarked stdout", stream: testcontainers.StdoutLog, line: "The files belonging to this database system will be owned by user", want: slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, lineLevel(tc.stream, []byte(tc.line)))
		})
	}
}

func TestContainerLogsTagSourceAndSkipBlankLines(t *testing.T) {
	var out bytes.Buffer
	ctx := util.ContextWithLogger(context.Background(), util.NewLogger(context.Background(),
		util.WithLogOutput(&out), util.WithLogNoColor(true)))

	cfg := LogConfig(ctx, "postgres:17", DefaultLogProductionTimeout)
	consumer := cfg.Consumers[0]

	consumer.Accept(testcontainers.Log{LogType: testcontainers.StdoutLog, Content: []byte("\n")})
	assert.Empty(t, out.String())

	consumer.Accept(testcontainers.Log{LogType: testcontainers.StderrLog, Content: []byte("LOG:  checkpoint starting\n")})
	assert.Contains(t, out.String(), "checkpoint starting")
	assert.Contains(t, out.String(), "postgres:17")
}
