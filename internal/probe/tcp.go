package probe

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// TCPProber measures reachability as the time to complete a TCP handshake.
// Hosts may carry their own port ("host:port"); otherwise Port is used.
type TCPProber struct {
	Port    int
	Timeout time.Duration
	Dialer  *net.Dialer
}

func NewTCPProber(port int, timeout time.Duration) *TCPProber {
	if port <= 0 {
		port = 80
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TCPProber{Port: port, Timeout: timeout, Dialer: &net.Dialer{}}
}

func (p *TCPProber) address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(p.Port))
}

func (p *TCPProber) Probe(ctx context.Context, host string) domain.Outcome {
	host = strings.TrimSpace(host)
	if host == "" {
		return offline("invalid_host")
	}
	cctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	d := p.Dialer
	if d == nil {
		d = &net.Dialer{}
	}
	start := time.Now()
	conn, err := d.DialContext(cctx, "tcp", p.address(host))
	if err != nil {
		if cctx.Err() != nil {
			return offline("timeout")
		}
		return offline(err.Error())
	}
	lat := float64(time.Since(start).Microseconds()) / 1000
	_ = conn.Close()
	return online(&lat, "connected")
}
