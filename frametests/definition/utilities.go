package definition

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/pitabwire/util"
	"github.com/testcontainers/testcontainers-go"
)

const DefaultLogProductionTimeout = 10 * time.Second

// severities maps postgres log prefixes to levels. Tests provoke policy and unique index
// errors on purpose, so server side ERROR lines are only warnings here.
var severities = []struct {
	marker []byte
	level  slog.Level
}{
	{[]byte("PANIC:"), slog.LevelError},
	{[]byte("FATAL:"), slog.LevelError},
	{[]byte("ERROR:"), slog.LevelWarn},
	{[]byte("WARNING:"), slog.LevelWarn},
	{[]byte("LOG:"), slog.LevelInfo},
	{[]byte("DEBUG"), slog.LevelDebug},
}

// containerLogs forwards container output to the test logger, one record per line.
type containerLogs struct {
	log    *util.LogEntry
	source string
}

// LogConfig streams the output of the container built from image into the context logger.
func LogConfig(ctx context.Context, image string, timeout time.Duration) *testcontainers.LogConsumerConfig {
	return &testcontainers.LogConsumerConfig{
		Opts:      []testcontainers.LogProductionOption{testcontainers.WithLogProductionTimeout(timeout)},
		Consumers: []testcontainers.LogConsumer{&containerLogs{log: util.Log(ctx), source: image}},
	}
}

func (c *containerLogs) Accept(l testcontainers.Log) {
	line := bytes.TrimRight(l.Content, "\r\n")
	if len(line) == 0 {
		return
	}
	c.log.Log(context.Background(), lineLevel(l.LogType, line), string(line), "container", c.source)
}

func lineLevel(stream string, line []byte) slog.Level {
	for _, s := range severities {
		if bytes.Contains(line, s.marker) {
			return s.level
		}
	}
	if stream == testcontainers.StderrLog {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
