package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/bcdannyboy/EmailHunter/internal/aggregate"
)

// Producer is the part of *kgo.Client the Kafka sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaRecord is the value of every produced record.
type KafkaRecord struct {
	RunID    string    `json:"run_id"`
	Domain   string    `json:"domain"`
	Kind     string    `json:"kind"`
	Email    string    `json:"email"`
	Category string    `json:"category"`
	Sources  []string  `json:"sources"`
	At       time.Time `json:"at"`
}

// KafkaSink publishes one record per email, keyed by the address.
type KafkaSink struct {
	producer Producer
	topic    string
	now      func() time.Time
	close    func()
	admin    *kadm.Client
}

// NewKafkaSink connects a franz-go client to brokers.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	s := NewKafkaSinkWithProducer(cl, topic)
	s.close = cl.Close
	s.admin = kadm.NewClient(cl)
	return s, nil
}

// EnsureTopic creates the topic with broker default partitions and
// replication. An existing topic is not an error. Sinks built around a
// bare producer have no admin client and skip the check.
func (s *KafkaSink) EnsureTopic(ctx context.Context) error {
	if s.admin == nil {
		return nil
	}
	resp, err := s.admin.CreateTopic(ctx, -1, -1, nil, s.topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	return nil
}

// NewKafkaSinkWithProducer wraps an existing producer.
func NewKafkaSinkWithProducer(p Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic, now: time.Now, close: func() {}}
}

func (s *KafkaSink) Write(ctx context.Context, runID, domain string, kind aggregate.Kind, m aggregate.Mapping) error {
	if len(m) == 0 {
		return nil
	}

	at := s.now().UTC()
	records := make([]*kgo.Record, 0, len(m))
	for _, email := range m.Emails() {
		value, err := json.Marshal(KafkaRecord{
			RunID:    runID,
			Domain:   domain,
			Kind:     string(kind),
			Email:    email,
			Category: Category(email),
			Sources:  m[email].Sorted(),
			At:       at,
		})
		if err != nil {
			return fmt.Errorf("encode %s: %w", email, err)
		}
		records = append(records, &kgo.Record{Topic: s.topic, Key: []byte(email), Value: value})
	}

	if err := s.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce %s findings: %w", kind, err)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.close()
}
