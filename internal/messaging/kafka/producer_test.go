package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	// Создаем mock producer
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидания
	mockProducer.ExpectSendMessageAndSucceed()

	event := NewOrderEvent(
		EventTypeOrderCreated,
		"test-order-123",
		"user-1",
		"pending",
		map[string]interface{}{
			"total_minor": 2500,
		},
	)

	// Публикуем событие
	err := producer.PublishEvent(TopicOrderEvents, "test-order-123", event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Проверяем, что все ожидания выполнены
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEventWithType_SetsHeader(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		for _, header := range msg.Headers {
			if string(header.Key) == HeaderEventType {
				if got := string(header.Value); got != "order.created" {
					t.Errorf("expected event type header order.created, got %s", got)
				}
				return nil
			}
		}
		t.Errorf("missing %s header", HeaderEventType)
		return nil
	})

	event := NewOrderEvent(EventTypeOrderCreated, "test-order-456", "user-2", "pending", nil)

	err := producer.PublishEventWithType(TopicOrderEvents, "test-order-456", "order.created", event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	// Создаем mock producer с ошибкой
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидание ошибки
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewOrderEvent(EventTypeOrderCreated, "test-order-123", "user-1", "pending", nil)

	// Публикуем событие
	err := producer.PublishEvent(TopicOrderEvents, "test-order-123", event)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewOrderEvent(t *testing.T) {
	orderID := "order-123"
	userID := "user-1"
	status := "paid"
	metadata := map[string]interface{}{
		"total_minor": 1000,
	}

	event := NewOrderEvent(EventTypeOrderStatusChanged, orderID, userID, status, metadata)

	if event.EventType != EventTypeOrderStatusChanged {
		t.Errorf("expected event type %s, got %s", EventTypeOrderStatusChanged, event.EventType)
	}

	if event.OrderID != orderID {
		t.Errorf("expected order id %s, got %s", orderID, event.OrderID)
	}

	if event.UserID != userID {
		t.Errorf("expected user id %s, got %s", userID, event.UserID)
	}

	if event.Status != status {
		t.Errorf("expected status %s, got %s", status, event.Status)
	}

	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}

	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}
