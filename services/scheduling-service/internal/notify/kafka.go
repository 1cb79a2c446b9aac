package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/telehealth/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "scheduling.notification.requested.v1"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSender publishes a rendered notification event for downstream delivery services. Events
// are keyed by appointment id.
type KafkaSender struct {
	writer    messageWriter
	templates *Templates
	now       func() time.Time
}

func NewKafkaSender(writer *kafka.Writer, templates *Templates) *KafkaSender {
	return &KafkaSender{writer: writer, templates: templates, now: time.Now}
}

type notificationEvent struct {
	EventID     string            `json:"event_id"`
	Kind        TemplateKind      `json:"kind"`
	RecipientID string            `json:"recipient_profile_id"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Fields      map[string]string `json:"fields"`
	OccurredAt  string            `json:"occurred_at"`
}

func (s *KafkaSender) Send(ctx context.Context, to Target, kind TemplateKind, fields map[string]string) error {
	if to.ProfileID == "" {
		return ErrNoAddress
	}
	fields = withName(fields, to)
	subject, body, err := s.templates.Render(kind, fields)
	if err != nil {
		return err
	}
	evt := notificationEvent{
		EventID:     uuid.NewString(),
		Kind:        kind,
		RecipientID: to.ProfileID,
		Email:       to.Email,
		Phone:       to.Phone,
		Subject:     subject,
		Body:        body,
		Fields:      fields,
		OccurredAt:  s.now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	headers := kafkax.InjectTraceHeaders(ctx, []kafka.Header{
		{Key: "event_id", Value: []byte(evt.EventID)},
		{Key: "event_type", Value: []byte(kind)},
	})
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(fields["appointment_id"]),
		Value:   payload,
		Headers: headers,
	})
}
