package nsq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gonsq "github.com/nsqio/go-nsq"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
)

// Handler processes one delivery. Implementations that also satisfy
// gonsq.FailedMessageLogger are told about messages past MaxAttempts.
type Handler interface {
	HandleMessage(m *gonsq.Message) error
}

type ConsumerConfig struct {
	Topic   string
	Channel string

	// NSQDAddr is used when set; otherwise LookupdAddr.
	NSQDAddr    string
	LookupdAddr string

	MaxAttempts     uint16
	MsgTimeout      time.Duration
	DisconnectGrace time.Duration

	Logger   *slog.Logger
	LogLevel slog.Level
}

// Consumer is a durable subscription with one message in flight at a time.
type Consumer struct {
	cfg      ConsumerConfig
	consumer *gonsq.Consumer
}

func NewConsumer(cfg ConsumerConfig, h Handler) (*Consumer, error) {
	nsqCfg := gonsq.NewConfig()
	nsqCfg.MaxInFlight = 1
	nsqCfg.MaxAttempts = cfg.MaxAttempts
	if cfg.MsgTimeout > 0 {
		nsqCfg.MsgTimeout = cfg.MsgTimeout
	}

	c, err := gonsq.NewConsumer(cfg.Topic, cfg.Channel, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	if cfg.Logger != nil {
		c.SetLogger(slogOutput{logger: cfg.Logger}, logLevel(cfg.LogLevel))
	}
	c.AddHandler(h)

	if cfg.DisconnectGrace <= 0 {
		cfg.DisconnectGrace = 30 * time.Second
	}
	return &Consumer{cfg: cfg, consumer: c}, nil
}

// Run connects and blocks until ctx is cancelled or the broker has been
// unreachable for longer than DisconnectGrace. The latter returns
// ErrBrokerUnavailable; the process is expected to exit and be restarted.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.connect(); err != nil {
		c.consumer.Stop()
		<-c.consumer.StopChan
		return err
	}
	slog.InfoContext(ctx, "nsq consumer connected", "topic", c.cfg.Topic, "channel", c.cfg.Channel)

	ticker := time.NewTicker(c.pollInterval())
	defer ticker.Stop()

	var lostAt time.Time
	for {
		select {
		case <-ctx.Done():
			c.consumer.Stop()
			<-c.consumer.StopChan
			slog.Info("nsq consumer stopped", "topic", c.cfg.Topic)
			return nil
		case <-c.consumer.StopChan:
			return fmt.Errorf("%w: consumer for %s stopped unexpectedly", apperr.ErrBrokerUnavailable, c.cfg.Topic)
		case now := <-ticker.C:
			if c.consumer.Stats().Connections > 0 {
				lostAt = time.Time{}
				continue
			}
			if lostAt.IsZero() {
				lostAt = now
				slog.Warn("nsq consumer has no connections", "topic", c.cfg.Topic)
				continue
			}
			if now.Sub(lostAt) >= c.cfg.DisconnectGrace {
				c.consumer.Stop()
				<-c.consumer.StopChan
				return fmt.Errorf("%w: no connection for %s on %s", apperr.ErrBrokerUnavailable, now.Sub(lostAt).Round(time.Second), c.cfg.Topic)
			}
		}
	}
}

func (c *Consumer) connect() error {
	var err error
	if c.cfg.NSQDAddr != "" {
		err = c.consumer.ConnectToNSQD(c.cfg.NSQDAddr)
	} else {
		err = c.consumer.ConnectToNSQLookupd(c.cfg.LookupdAddr)
	}
	if err != nil {
		return fmt.Errorf("%w: connect %s/%s: %v", apperr.ErrBrokerUnavailable, c.cfg.Topic, c.cfg.Channel, err)
	}
	return nil
}

func (c *Consumer) pollInterval() time.Duration {
	if d := c.cfg.DisconnectGrace / 4; d < time.Second {
		return d
	}
	return time.Second
}

func (c *Consumer) Stats() *gonsq.ConsumerStats {
	return c.consumer.Stats()
}
