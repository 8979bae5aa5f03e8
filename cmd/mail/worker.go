package main

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
)

type sender interface {
	DialAndSend(messages ...*mail.Msg) error
}

type mailTemplate struct {
	file    string
	subject string
}

var mailTemplates = map[string]mailTemplate{
	domain.MailTypeTaskAssigned: {file: "task_assigned_email.html", subject: "Parlour - New task assigned"},
}

// outcome 决定一条消息的确认方式
type outcome int

const (
	outcomeAck outcome = iota
	// outcomeDrop 消息本身无效，重试也不会成功
	outcomeDrop
	outcomeRequeue
)

type worker struct {
	from        string
	templateDir string
	sender      sender
	logger      *slog.Logger
}

func (w *worker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				w.logger.Error("消息通道已关闭")
				return
			}
			var err error
			switch w.handle(d.Body) {
			case outcomeAck:
				err = d.Ack(false)
			case outcomeDrop:
				err = d.Nack(false, false)
			case outcomeRequeue:
				err = d.Nack(false, true)
			}
			if err != nil {
				w.logger.Error("无法确认消息", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *worker) handle(body []byte) outcome {
	m, err := w.compose(body)
	if err != nil {
		w.logger.Error("无法构建邮件", slog.Any("error", err))
		return outcomeDrop
	}

	if err := w.sender.DialAndSend(m); err != nil {
		w.logger.Error("邮件发送失败", slog.String("error", err.Error()))
		return outcomeRequeue
	}

	w.logger.Info("邮件已发送", slog.Any("to", m.GetToString()))
	return outcomeAck
}

// compose 按邮件类型选择模板并渲染正文
func (w *worker) compose(body []byte) (*mail.Msg, error) {
	var mailMessage domain.MailMessage
	if err := json.Unmarshal(body, &mailMessage); err != nil {
		return nil, goerr.Wrap(err, "failed to decode mail message")
	}

	tmplInfo, ok := mailTemplates[mailMessage.Type]
	if !ok {
		return nil, goerr.New("unsupported mail type", goerr.V("type", mailMessage.Type))
	}

	data, err := decodeMailData(mailMessage, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode mail data", goerr.V("type", mailMessage.Type))
	}

	tmpl, err := template.ParseFiles(filepath.Join(w.templateDir, tmplInfo.file))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse mail template", goerr.V("file", tmplInfo.file))
	}

	m := mail.NewMsg()
	if err := m.From(w.from); err != nil {
		return nil, goerr.Wrap(err, "invalid sender", goerr.V("from", w.from))
	}
	if err := m.To(mailMessage.To); err != nil {
		return nil, goerr.Wrap(err, "invalid recipient", goerr.V("to", mailMessage.To))
	}
	m.Subject(tmplInfo.subject)
	if err := m.SetBodyHTMLTemplate(tmpl, data); err != nil {
		return nil, goerr.Wrap(err, "failed to render mail body")
	}

	return m, nil
}

// decodeMailData 把 data 转换为具体类型，模板中才能格式化日期
func decodeMailData(mailMessage domain.MailMessage, raw []byte) (any, error) {
	switch mailMessage.Type {
	case domain.MailTypeTaskAssigned:
		var payload struct {
			Data domain.TaskAssignedMailData `json:"data"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return payload.Data, nil
	default:
		return mailMessage.Data, nil
	}
}
