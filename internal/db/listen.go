package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Listener turns Postgres NOTIFY payloads on one channel into refresh triggers.
// Payloads carry a merchant ID; when MerchantID is set, other merchants are ignored.
type Listener struct {
	pool       *pgxpool.Pool
	channel    string
	merchantID string
	onNotify   func(ctx context.Context, payload string)
	logger     *zap.Logger
}

func NewListener(pool *pgxpool.Pool, channel, merchantID string, onNotify func(ctx context.Context, payload string), logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		pool:       pool,
		channel:    channel,
		merchantID: strings.TrimSpace(merchantID),
		onNotify:   onNotify,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled, reconnecting with exponential backoff.
func (l *Listener) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		err := l.listenOnce(ctx, func() { backoff = minBackoff })
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("orders LISTEN interrupted", zap.String("channel", l.channel), zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func (l *Listener) listenOnce(ctx context.Context, connected func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "listen "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}
	connected()
	l.logger.Info("orders LISTEN active", zap.String("channel", l.channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if !l.matches(n.Payload) {
			continue
		}
		l.onNotify(ctx, n.Payload)
	}
}

func (l *Listener) matches(payload string) bool {
	payload = strings.TrimSpace(payload)
	if l.merchantID == "" || payload == "" {
		return true
	}
	return payload == l.merchantID
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
