package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/points-rewards-api/internal/models"
	"github.com/noah-isme/points-rewards-api/pkg/config"
	"github.com/noah-isme/points-rewards-api/pkg/jobs"
	"github.com/noah-isme/points-rewards-api/pkg/mailer"
)

const (
	notificationKindEmail = "email"
	notificationKindEvent = "event"
)

// Notifier is the outbound port of the workflow. Implementations must not block on delivery;
// returned errors are logged by callers and never fail a transition.
type Notifier interface {
	SendEmail(ctx context.Context, email models.Email) error
	Publish(ctx context.Context, event models.Event) error
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// NotificationDispatcher delivers emails and realtime events from a bounded worker pool.
type NotificationDispatcher struct {
	queue         *jobs.Queue
	mailer        mailSender
	events        eventPublisher
	eventsEnabled bool
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewNotificationDispatcher wires the worker pool. Start must be called before use.
func NewNotificationDispatcher(mail mailSender, events eventPublisher, cfg config.NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &NotificationDispatcher{
		mailer:        mail,
		events:        events,
		eventsEnabled: cfg.EventsEnabled,
		metrics:       metrics,
		logger:        logger,
	}
	d.queue = jobs.NewQueue("notifications", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
		OnDrop: func(job jobs.Job, reason string) {
			metrics.RecordNotification(job.Type, "dropped")
			logger.Warn("notification dropped", zap.String("kind", job.Type), zap.String("job_id", job.ID), zap.String("reason", reason))
		},
	})
	return d
}

// Start launches the workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop waits for workers to exit. Undelivered notifications are discarded.
func (d *NotificationDispatcher) Stop() {
	d.queue.Stop()
}

// SendEmail queues an email without waiting for SMTP.
func (d *NotificationDispatcher) SendEmail(_ context.Context, email models.Email) error {
	if len(email.To) == 0 {
		return nil
	}
	return d.enqueue(notificationKindEmail, email)
}

// Publish queues a realtime event.
func (d *NotificationDispatcher) Publish(_ context.Context, event models.Event) error {
	if !d.eventsEnabled {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return d.enqueue(notificationKindEvent, event)
}

func (d *NotificationDispatcher) enqueue(kind string, payload interface{}) error {
	if err := d.queue.TryEnqueue(jobs.Job{Type: kind, Payload: payload}); err != nil {
		return fmt.Errorf("queue %s notification: %w", kind, err)
	}
	d.metrics.RecordNotification(kind, "queued")
	return nil
}

func (d *NotificationDispatcher) handle(ctx context.Context, job jobs.Job) error {
	var err error
	switch payload := job.Payload.(type) {
	case models.Email:
		err = d.mailer.Send(ctx, mailer.Message{To: payload.To, Subject: payload.Subject, HTML: payload.HTML})
	case models.Event:
		err = d.events.Publish(ctx, payload)
	default:
		err = fmt.Errorf("unsupported notification payload %T", job.Payload)
	}
	if err != nil {
		d.metrics.RecordNotification(job.Type, "failed")
		return err
	}
	d.metrics.RecordNotification(job.Type, "sent")
	return nil
}
