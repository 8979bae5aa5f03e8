package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
	"github.com/segmentio/kafka-go"
)

// PunchEvent 是导出到消息队列的打卡事件
type PunchEvent struct {
	LogID      string             `json:"logId"`
	EmployeeID string             `json:"employeeId"`
	Name       string             `json:"name,omitempty"`
	Email      string             `json:"email,omitempty"`
	Action     domain.PunchAction `json:"action"`
	Timestamp  time.Time          `json:"timestamp"`
}

func NewPunchEvent(entry *domain.AttendanceLog) PunchEvent {
	event := PunchEvent{
		LogID:      entry.ID,
		EmployeeID: entry.EmployeeID,
		Action:     entry.Action,
		Timestamp:  entry.Timestamp,
	}
	if entry.Employee != nil {
		event.Name = entry.Employee.Name
		event.Email = entry.Employee.Email
	}
	return event
}

type Exporter interface {
	ExportPunch(ctx context.Context, entry *domain.AttendanceLog) error
	Close() error
}

type kafkaExporter struct {
	writer *kafka.Writer
}

// NewKafkaExporter 按员工 ID 分区，保证同一员工的事件有序
func NewKafkaExporter(brokers []string, topic string, writeTimeout time.Duration) Exporter {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &kafkaExporter{writer: writer}
}

func (e *kafkaExporter) ExportPunch(ctx context.Context, entry *domain.AttendanceLog) error {
	value, err := json.Marshal(NewPunchEvent(entry))
	if err != nil {
		return goerr.Wrap(err, "failed to encode punch event", goerr.V("log_id", entry.ID))
	}

	message := kafka.Message{
		Key:   []byte(entry.EmployeeID),
		Value: value,
		Time:  entry.Timestamp,
	}

	if err := e.writer.WriteMessages(ctx, message); err != nil {
		return goerr.Wrap(err, "failed to write punch event", goerr.V("log_id", entry.ID), goerr.V("topic", e.writer.Topic))
	}
	return nil
}

func (e *kafkaExporter) Close() error {
	return e.writer.Close()
}

type noopExporter struct{}

// NewNoopExporter 用于未配置 Kafka 的场景
func NewNoopExporter() Exporter {
	return noopExporter{}
}

func (noopExporter) ExportPunch(ctx context.Context, entry *domain.AttendanceLog) error {
	return nil
}

func (noopExporter) Close() error {
	return nil
}
