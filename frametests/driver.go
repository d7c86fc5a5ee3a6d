package frametests

import (
	"context"
	"fmt"
	"net"
)

// FreeAddress returns a loopback host:port that nothing was listening on a moment ago.
// The port is released before returning, so a parallel test may still take it first.
func FreeAddress(ctx context.Context) (string, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("reserve loopback port: %w", err)
	}

	address := l.Addr().String()
	if err = l.Close(); err != nil {
		return "", fmt.Errorf("release loopback port: %w", err)
	}
	return address, nil
}
