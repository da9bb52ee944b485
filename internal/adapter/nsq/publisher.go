package nsq

import (
	"encoding/json"
	"fmt"
	"log/slog"

	gonsq "github.com/nsqio/go-nsq"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
)

// Publisher writes messages to a single nsqd over TCP.
type Publisher struct {
	producer *gonsq.Producer
}

func NewPublisher(tcpAddr string, logger *slog.Logger, level slog.Level) (*Publisher, error) {
	producer, err := gonsq.NewProducer(tcpAddr, gonsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	if logger != nil {
		producer.SetLogger(slogOutput{logger: logger}, logLevel(level))
	}
	return &Publisher{producer: producer}, nil
}

// Publish blocks until nsqd acknowledges the message.
func (p *Publisher) Publish(topic string, body []byte) error {
	if err := p.producer.Publish(topic, body); err != nil {
		return fmt.Errorf("%w: publish to %s: %v", apperr.ErrBrokerUnavailable, topic, err)
	}
	return nil
}

func (p *Publisher) PublishJSON(topic string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}
	return p.Publish(topic, body)
}

func (p *Publisher) Ping() error {
	if err := p.producer.Ping(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrBrokerUnavailable, err)
	}
	return nil
}

func (p *Publisher) Stop() {
	p.producer.Stop()
}
