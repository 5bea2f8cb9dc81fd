package network

import (
	"net"
	"time"
)

// NewDialer returns the TCP dialer used for venue connections.
func NewDialer(timeout time.Duration) *net.Dialer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
}
