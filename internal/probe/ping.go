package probe

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

var rttPattern = regexp.MustCompile(`time[=<]\s*(\d+(?:\.\d+)?)\s*ms`)

// PingProber runs the system ping binary once per probe.
type PingProber struct {
	Command string
	Timeout time.Duration
	// Args builds the argument list; nil means `-c 1 -W <secs> host`.
	Args func(host string, timeout time.Duration) []string
}

func NewPingProber(command string, timeout time.Duration) *PingProber {
	if command == "" {
		command = "ping"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PingProber{Command: command, Timeout: timeout}
}

func defaultPingArgs(host string, timeout time.Duration) []string {
	secs := int(math.Ceil(timeout.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return []string{"-c", "1", "-W", strconv.Itoa(secs), host}
}

func (p *PingProber) Probe(ctx context.Context, host string) domain.Outcome {
	host = strings.TrimSpace(host)
	if host == "" || strings.HasPrefix(host, "-") {
		return offline("invalid_host")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argsFn := p.Args
	if argsFn == nil {
		argsFn = defaultPingArgs
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(cctx, p.Command, argsFn(host, timeout)...)
	cmd.Stdout = &out
	cmd.WaitDelay = 500 * time.Millisecond

	if err := cmd.Run(); err != nil {
		if cctx.Err() != nil {
			return offline("timeout")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return offline("exit_status_" + strconv.Itoa(exitErr.ExitCode()))
		}
		return offline("exec_error: " + err.Error())
	}

	lat, ok := ParseRTT(out.String())
	if !ok {
		return online(nil, "rtt_unparsed")
	}
	return online(&lat, "reply")
}

// ParseRTT extracts the first round-trip time in milliseconds from ping output.
func ParseRTT(output string) (float64, bool) {
	m := rttPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
