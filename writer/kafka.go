package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	appconfig "pairflow/config"
	"pairflow/logger"
	"pairflow/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PairMessage is the JSON value published for every pair.
type PairMessage struct {
	RunID   string `json:"run_id"`
	BatchID string `json:"batch_id"`
	models.SequencedPair
}

// KafkaWriter publishes one message per pair keyed by symbol, so pairs of
// one instrument stay ordered within a partition.
type KafkaWriter struct {
	writer  messageWriter
	limiter *rate.Limiter
	topic   string
	log     *logger.Log
	stats   stats
}

func NewKafkaWriter(cfg appconfig.KafkaConfig) (*KafkaWriter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	kw := newKafkaWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: timeout,
	}, cfg.Topic, cfg.MessagesPerSecond)

	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"brokers":             cfg.Brokers,
		"topic":               cfg.Topic,
		"messages_per_second": cfg.MessagesPerSecond,
	}).Info("kafka writer initialized")
	return kw, nil
}

func newKafkaWriter(w messageWriter, topic string, perSecond float64) *KafkaWriter {
	return &KafkaWriter{
		writer:  w,
		limiter: newLimiter(perSecond),
		topic:   topic,
		log:     logger.GetLogger(),
	}
}

// newLimiter returns an unlimited limiter for perSecond <= 0.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (kw *KafkaWriter) Name() string { return "kafka" }

func (kw *KafkaWriter) WriteBatch(ctx context.Context, batch models.PairBatch) error {
	msgs := make([]kafka.Message, 0, len(batch.Entries))
	var size int64
	for _, e := range batch.Entries {
		data, err := json.Marshal(PairMessage{RunID: batch.RunID, BatchID: batch.BatchID, SequencedPair: e})
		if err != nil {
			kw.stats.errors++
			return fmt.Errorf("marshal pair %d: %w", e.Seq, err)
		}
		if err := kw.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("kafka rate limiter: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(e.Symbol), Value: data})
		size += int64(len(data))
	}

	if err := kw.writer.WriteMessages(ctx, msgs...); err != nil {
		kw.stats.errors++
		kw.log.WithComponent("kafka_writer").WithError(err).WithFields(logger.Fields{
			"batch_id": batch.BatchID,
			"topic":    kw.topic,
		}).Warn("failed to write messages")
		return fmt.Errorf("write to %s: %w", kw.topic, err)
	}

	kw.stats.batches++
	kw.stats.rows += int64(len(msgs))
	kw.stats.bytes += size
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"batch_id": batch.BatchID,
		"records":  len(msgs),
	}).Debug("batch written to kafka")
	return nil
}

func (kw *KafkaWriter) Close(context.Context) error {
	kw.stats.report("kafka_writer")
	return kw.writer.Close()
}
