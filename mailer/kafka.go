package mailer

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	auth "github.com/goliatone/go-user-auth"
)

// EmailJob is the payload published for the mail worker.
type EmailJob struct {
	To        string    `json:"to"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"created_at"`
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Username     string
	Password     string
	TLS          bool
	WriteTimeout time.Duration
	From         string
	FromName     string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMailer hands emails to a worker through a Kafka topic. Messages are
// keyed by recipient so a recipient's emails stay ordered.
type KafkaMailer struct {
	writer messageWriter
	from   string
	logger auth.Logger
	now    func() time.Time
}

var _ auth.Mailer = (*KafkaMailer)(nil)

func NewKafkaMailer(cfg KafkaConfig, logger auth.Logger) *KafkaMailer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}

	if cfg.Username != "" || cfg.TLS {
		transport := &kafka.Transport{}
		if cfg.Username != "" {
			transport.SASL = plain.Mechanism{
				Username: cfg.Username,
				Password: cfg.Password,
			}
		}
		if cfg.TLS {
			transport.TLS = &tls.Config{}
		}
		w.Transport = transport
	}

	return newKafkaMailer(w, formatFrom(cfg.FromName, cfg.From), logger)
}

func newKafkaMailer(w messageWriter, from string, logger auth.Logger) *KafkaMailer {
	return &KafkaMailer{
		writer: w,
		from:   from,
		logger: logger,
		now:    time.Now,
	}
}

func (k *KafkaMailer) SendEmail(ctx context.Context, to, subject, html string) error {
	now := k.now()
	value, err := json.Marshal(EmailJob{
		To:        to,
		From:      k.from,
		Subject:   subject,
		HTML:      html,
		CreatedAt: now,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode email job")
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(to),
		Value: value,
		Time:  now,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to publish email job").
			WithMetadata(map[string]any{"to": to})
	}

	k.logger.Debug("email job published", "to", to, "subject", subject)
	return nil
}

func (k *KafkaMailer) Close() error {
	return k.writer.Close()
}
