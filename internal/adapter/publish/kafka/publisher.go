// Package kafka publishes completed grade reports to a Kafka topic.
//
// Publishing is transactional so downstream consumers never observe a
// half-committed report, and records carry OpenTelemetry trace context
// through kotel hooks.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// TopicReports is the Kafka topic completed grade reports are published to.
const TopicReports = "grade-reports"

// Publisher wraps a transactional Kafka producer and implements
// domain.ReportPublisher.
type Publisher struct {
	client *kgo.Client
	topic  string
	// transactionChan serializes transactions across concurrent publishes.
	transactionChan chan struct{}
}

// NewPublisher constructs a Publisher with the default transactional id.
// An empty topic falls back to TopicReports.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	return NewPublisherWithTransactionalID(brokers, topic, "ai-code-grader-publisher")
}

// NewPublisherWithTransactionalID constructs a Publisher with a custom
// transactional id so tests and parallel deployments do not collide.
func NewPublisherWithTransactionalID(brokers []string, topic, transactionalID string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if topic == "" {
		topic = TopicReports
	}
	slog.Info("creating kafka publisher",
		slog.Any("brokers", brokers),
		slog.String("transactional_id", transactionalID))

	kotelTracer := kotel.NewTracer(
		kotel.TracerProvider(otel.GetTracerProvider()),
	)
	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotelTracer),
	)

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.WithHooks(kotelService.Hooks()...),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	if err := ensureTopic(context.Background(), client, topic, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", topic),
			slog.Any("error", err))
	}

	return &Publisher{
		client:          client,
		topic:           topic,
		transactionChan: make(chan struct{}, 1),
	}, nil
}

// PublishReport publishes one completed report. The record key is the grade
// id so per-job ordering holds under partitioned topics.
func (p *Publisher) PublishReport(ctx domain.Context, report domain.GradeReport) error {
	select {
	case p.transactionChan <- struct{}{}:
		defer func() { <-p.transactionChan }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.client.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	record, err := buildRecord(p.topic, report)
	if err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return fmt.Errorf("marshal report: %w", err)
	}

	e := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, record, e.Promise())
	if err := e.Err(); err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return fmt.Errorf("produce: %w", err)
	}

	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("grade report published",
		slog.String("topic", p.topic),
		slog.String("grade_id", report.ID),
		slog.String("status", string(report.Status)))
	return nil
}

// Ping verifies broker connectivity, used by the readiness probe.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close closes the underlying Kafka client.
func (p *Publisher) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

func buildRecord(topic string, report domain.GradeReport) (*kgo.Record, error) {
	b, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(report.ID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "grade_id", Value: []byte(report.ID)},
			{Key: "repo_url", Value: []byte(report.RepoURL)},
			{Key: "status", Value: []byte(report.Status)},
		},
	}, nil
}

// ensureTopic creates the topic if it does not exist. Error code 36
// (TOPIC_ALREADY_EXISTS) is treated as success.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000

	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	createResp, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	for _, topicResp := range createResp.Topics {
		if topicResp.ErrorCode == 0 {
			slog.Info("topic created", slog.String("topic", topicResp.Topic))
			continue
		}
		if topicResp.ErrorCode == 36 {
			continue
		}
		errorMsg := ""
		if topicResp.ErrorMessage != nil {
			errorMsg = *topicResp.ErrorMessage
		}
		return fmt.Errorf("create topic error: %s (code %d)", errorMsg, topicResp.ErrorCode)
	}
	return nil
}
