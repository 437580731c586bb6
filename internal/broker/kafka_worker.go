package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/IliaW/defacement-crawler/config"
	"github.com/IliaW/defacement-crawler/internal/model"
	"github.com/IliaW/defacement-crawler/internal/telemetry"
	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress/lz4"
)

// KafkaAlertProducer publishes defacement alerts detected in COMPARE mode.
// Alerts arrive on a channel from the compare engine and are written in
// batches.
type KafkaAlertProducer struct {
	alertChan   <-chan *model.DefacementAlert
	kafkaWriter *kafka.Writer
	metrics     *telemetry.AppMetrics
	cfg         *config.ProducerConfig
	wg          *sync.WaitGroup
}

func NewKafkaAlertProducer(alertChan <-chan *model.DefacementAlert, metrics *telemetry.AppMetrics,
	cfg *config.ProducerConfig, wg *sync.WaitGroup) *KafkaAlertProducer {
	kafkaWriter := kafka.Writer{
		Addr:         kafka.TCP(cfg.Addr...),
		Topic:        cfg.AlertTopicName,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: 100 * time.Millisecond,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAsks),
		Async:        cfg.Async,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("failed to send alerts to kafka.", slog.String("err", err.Error()))
			}
		},
		Compression: kafka.Compression(new(lz4.Codec).Code()),
	}
	return &KafkaAlertProducer{
		alertChan:   alertChan,
		kafkaWriter: &kafkaWriter,
		metrics:     metrics,
		cfg:         cfg,
		wg:          wg,
	}
}

func (p *KafkaAlertProducer) Run() {
	slog.Info("starting kafka alert producer...", slog.String("topic", p.cfg.AlertTopicName))
	defer func() {
		err := p.kafkaWriter.Close()
		if err != nil {
			slog.Error("failed to close kafka writer.", slog.String("err", err.Error()))
		}
	}()
	defer p.wg.Done()

	batch := make([]kafka.Message, 0, p.cfg.BatchSize)
	batchTicker := time.NewTicker(p.cfg.BatchTimeout)
	defer batchTicker.Stop()
	for {
		select {
		case <-batchTicker.C:
			if len(batch) == 0 {
				continue
			}
			p.writeMessages(batch)
			batch = batch[:0]
		case alert, ok := <-p.alertChan:
			if !ok {
				if len(batch) > 0 {
					p.writeMessages(batch)
				}
				slog.Info("stopping kafka alert producer.")
				return
			}
			body, err := jsoniter.Marshal(alert)
			if err != nil {
				slog.Error("marshaling error.", slog.String("err", err.Error()), slog.Any("alert", alert))
				p.metrics.AlertSendFailedCnt(1)
				continue
			}
			p.metrics.DefacementDetectedCnt(1)
			batch = append(batch, kafka.Message{
				Key:   []byte(alert.URL),
				Value: body,
			})
			if len(batch) >= p.cfg.BatchSize {
				p.writeMessages(batch)
				batch = batch[:0]
				batchTicker.Reset(p.cfg.BatchTimeout)
			}
		}
	}
}

func (p *KafkaAlertProducer) writeMessages(batch []kafka.Message) {
	err := p.kafkaWriter.WriteMessages(context.Background(), batch...)
	if err != nil {
		slog.Error("failed to send alerts to kafka.", slog.String("err", err.Error()))
		p.metrics.AlertSendFailedCnt(int64(len(batch)))
		return
	}
	slog.Debug("defacement alerts sent to kafka.", slog.Int("batch length", len(batch)))
}
