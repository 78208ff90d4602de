package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/hybrid-retrieval/internal/infrastructure/resilience"
)

// Bus carries retrieval requests as NATS request/reply messages.
type Bus struct {
	conn     *nats.Conn
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	Name                 string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

// Handler answers one request payload. A returned error is logged and no reply is sent.
type Handler func(ctx context.Context, subject string, data []byte) ([]byte, error)

func New(url string) (*Bus, error) {
	return NewWithOptions(url, Options{})
}

func NewWithOptions(url string, options Options) (*Bus, error) {
	name := options.Name
	if name == "" {
		name = "hybrid-retrieval"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:     conn,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Request sends payload and waits for the reply until ctx is done.
func (b *Bus) Request(ctx context.Context, subject string, payload []byte) ([]byte, error) {
	reply, err := resilience.Call(ctx, b.executor, "nats.request", func(callCtx context.Context) ([]byte, error) {
		msg, err := b.conn.RequestWithContext(callCtx, subject, payload)
		if err != nil {
			return nil, fmt.Errorf("nats request %s: %w", subject, err)
		}
		return msg.Data, nil
	}, classifyNATSError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(err)
	}
	return reply, nil
}

// Serve queue-subscribes handler to every subject until ctx is cancelled, then drains.
func (b *Bus) Serve(ctx context.Context, queueGroup string, handler Handler, subjects ...string) error {
	if len(subjects) == 0 {
		return errors.New("nats serve: no subjects")
	}

	subs := make([]*nats.Subscription, 0, len(subjects))
	for _, subject := range subjects {
		sub, err := b.conn.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
			if ctx.Err() != nil {
				return
			}

			handlerCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			reply, err := handler(handlerCtx, msg.Subject, msg.Data)
			if err != nil {
				b.logger.Error("nats_handler_failed", "subject", msg.Subject, "error", err)
				return
			}
			if msg.Reply == "" {
				return
			}
			if err := msg.Respond(reply); err != nil {
				b.logger.Error("nats_respond_failed", "subject", msg.Subject, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("nats subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			return fmt.Errorf("nats drain subscription: %w", err)
		}
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
