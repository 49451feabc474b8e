package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"delivery-pricing/internal/config"
	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Producer публикует события расчета заказов и изменения зон
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера Kafka
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Net.DialTimeout = 3 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")
	topics := cfg.Topics
	return &Producer{producer: producer, log: log, topics: &topics}, nil
}

// PublishOrderFinalized публикует итог финализированного заказа
func (p *Producer) PublishOrderFinalized(result *models.PriceResult) error {
	data := models.OrderFinalizedData{
		OrderID:            result.OrderID,
		ZoneID:             result.ZoneID,
		Subtotal:           result.Subtotal,
		DeliveryFee:        result.DeliveryFee,
		Discount:           result.Discount,
		DiscountedTotal:    result.DiscountedTotal,
		AppliedPromotionID: result.AppliedPromotionID,
	}
	event, err := newEvent(models.EventTypeOrderFinalized, data)
	if err != nil {
		return err
	}
	return p.publishEvent(p.topics.Orders, event, result.OrderID.String())
}

// PublishZoneUpdated сообщает об изменении зоны, чтобы экземпляры сбросили кеш города
func (p *Producer) PublishZoneUpdated(zoneID uuid.UUID, city string) error {
	event, err := newEvent(models.EventTypeZoneUpdated, models.ZoneUpdatedData{ZoneID: zoneID, City: city})
	if err != nil {
		return err
	}
	return p.publishEvent(p.topics.Zones, event, zoneID.String())
}

func newEvent(eventType models.EventType, data interface{}) (models.Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}, nil
}

// publishEvent отправляет событие в топик; key задает партицию (по умолчанию ID события)
func (p *Producer) publishEvent(topic string, event models.Event, key ...string) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	partitionKey := event.ID.String()
	if len(key) > 0 && key[0] != "" {
		partitionKey = key[0]
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(partitionKey),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"topic":      topic,
			"event_type": event.Type,
		}).Error("Failed to publish event")
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"topic":      topic,
		"event_id":   event.ID,
		"event_type": event.Type,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")
	return nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
