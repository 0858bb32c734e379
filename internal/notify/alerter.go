package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DownTitle          = "Host not responding"
	defaultSendTimeout = 10 * time.Second
)

// DownAlerter turns went-down events into notifications. Delivery happens
// on a separate goroutine and is attempted once; failures are only logged.
type DownAlerter struct {
	Notifier Notifier
	Logger   *zap.Logger
	Timeout  time.Duration
}

func NewDownAlerter(n Notifier, log *zap.Logger) *DownAlerter {
	return &DownAlerter{Notifier: n, Logger: log, Timeout: defaultSendTimeout}
}

// OnHostDown implements scheduler.AlertSink.
func (a *DownAlerter) OnHostDown(id string) {
	go a.deliver(id)
}

func (a *DownAlerter) deliver(id string) {
	defer func() {
		if r := recover(); r != nil {
			a.Logger.Error("alert_panic", zap.String("host", id), zap.Any("panic", r))
		}
	}()

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.Notifier.Send(ctx, DownTitle, fmt.Sprintf("Ping to %s failed", id)); err != nil {
		a.Logger.Warn("alert_send_error", zap.String("host", id), zap.Error(err))
		return
	}
	a.Logger.Info("alert_sent", zap.String("host", id))
}
