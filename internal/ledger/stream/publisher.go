// Package stream fans committed gate events out to Kafka for downstream
// reporting and alerting. The ledger's durable append is the source of
// truth; publishing here is after-commit and best effort.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"gatewarden/internal/ledger"
)

// Publisher emits committed gate events.
type Publisher interface {
	Publish(ctx context.Context, event ledger.GateEvent) error
	Close()
}

// Noop drops events. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, ledger.GateEvent) error { return nil }
func (Noop) Close()                                          {}

// KafkaPublisher produces one JSON record per gate event, keyed by subject
// so per-subject history stays ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	logger *slog.Logger
}

func NewKafka(brokers, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, logger: logger}, nil
}

type wireEvent struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	CredentialID string `json:"credentialId,omitempty"`
	IdentityID   string `json:"identityId,omitempty"`
	Plate        string `json:"plate,omitempty"`
	ActorID      string `json:"actorId,omitempty"`
	Visitor      bool   `json:"visitor,omitempty"`
	Timestamp    string `json:"timestamp"`
	Location     string `json:"location,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

func (p *KafkaPublisher) Publish(ctx context.Context, event ledger.GateEvent) error {
	we := wireEvent{
		ID:        event.ID.String(),
		Type:      string(event.Type),
		Status:    string(event.Status),
		Plate:     event.SubjectPlate,
		Visitor:   event.Visitor,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Location:  event.Location,
		Notes:     event.Notes,
	}
	if event.SubjectCredentialID != nil {
		we.CredentialID = event.SubjectCredentialID.String()
	}
	if event.SubjectIdentityID != nil {
		we.IdentityID = event.SubjectIdentityID.String()
	}
	if event.ActorID != nil {
		we.ActorID = event.ActorID.String()
	}

	value, err := json.Marshal(we)
	if err != nil {
		return fmt.Errorf("marshal gate event: %w", err)
	}

	key := we.CredentialID
	if key == "" {
		key = we.IdentityID
	}
	if key == "" {
		key = we.Plate
	}

	record := &kgo.Record{Key: []byte(key), Value: value}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("failed to publish gate event",
				"event_id", we.ID,
				"error", err,
			)
		}
	})
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
