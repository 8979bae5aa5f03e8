package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/parlour-dev/parlour/backend/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MailPublisher 是发送邮件消息所需的能力，*amqp.Channel 满足该接口
type MailPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

func (h *Handler) publishMail(ctx context.Context, mailMessage domain.MailMessage) error {
	// 序列化邮件
	mailData, err := json.Marshal(mailMessage)
	if err != nil {
		return err
	}

	// 发送邮件到消息队列中
	ctx, cancel := context.WithTimeout(ctx, time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	return h.mailChannel.PublishWithContext(
		ctx,
		"",
		h.config.RabbitMQ.Queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         mailData,
		},
	)
}

// notifyTaskAssigned 通知负责人有新任务，失败只记录日志
func (h *Handler) notifyTaskAssigned(r *http.Request, task *domain.Task, assignee *domain.Employee) {
	if h.mailChannel == nil {
		return
	}

	mailMessage := domain.MailMessage{
		Type: domain.MailTypeTaskAssigned,
		To:   assignee.Email,
		Data: domain.TaskAssignedMailData{
			EmployeeName: assignee.Name,
			TaskTitle:    task.Title,
			Description:  task.Description,
			DueDate:      task.DueDate,
		},
	}

	if err := h.publishMail(context.WithoutCancel(r.Context()), mailMessage); err != nil {
		slog.Warn("无法发送任务分配邮件", "task_id", task.ID, "to", assignee.Email, "error", err)
	}
}
