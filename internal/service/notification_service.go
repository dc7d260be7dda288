package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proedge/enrollment-api/pkg/jobs"
)

// Notification job types.
const (
	notifyEnrollmentConfirmed = "notify.enrollment_confirmed"
	notifyPaymentFailed       = "notify.payment_failed"
)

// EnrollmentConfirmedNote is the payload for a confirmation notification.
type EnrollmentConfirmedNote struct {
	StudentName  string
	StudentEmail string
	CourseTitle  string
	InvoiceNo    string
	Amount       int64
}

// PaymentFailedNote is the payload for a failed payment notification.
type PaymentFailedNote struct {
	StudentEmail string
	OrderID      string
	Amount       int64
}

// NotificationService delivers student-facing notifications on a background
// queue. Delivery is currently log based; the queue boundary keeps the
// confirmation path free of any future provider latency.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs a NotificationService instance.
func NewNotificationService(logger *zap.Logger, queueCfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, queueCfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyEnrollmentConfirmed queues a confirmation message. Enqueue failures
// are logged and dropped: notifications never block or fail an enrollment.
func (s *NotificationService) NotifyEnrollmentConfirmed(note EnrollmentConfirmedNote) {
	s.enqueue(notifyEnrollmentConfirmed, note)
}

// NotifyPaymentFailed queues a payment failure message.
func (s *NotificationService) NotifyPaymentFailed(note PaymentFailedNote) {
	s.enqueue(notifyPaymentFailed, note)
}

func (s *NotificationService) enqueue(jobType string, payload interface{}) {
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: payload})
	if err != nil {
		s.logger.Warn("dropped notification", zap.String("type", jobType), zap.Error(err))
	}
}

func (s *NotificationService) handle(_ context.Context, job jobs.Job) error {
	switch job.Type {
	case notifyEnrollmentConfirmed:
		note, ok := job.Payload.(EnrollmentConfirmedNote)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", job.Type)
		}
		s.logger.Info("enrollment confirmation sent",
			zap.String("email", note.StudentEmail),
			zap.String("course", note.CourseTitle),
			zap.String("invoice_no", note.InvoiceNo),
			zap.Int64("amount", note.Amount))
	case notifyPaymentFailed:
		note, ok := job.Payload.(PaymentFailedNote)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", job.Type)
		}
		s.logger.Info("payment failure notice sent",
			zap.String("email", note.StudentEmail),
			zap.String("order_id", note.OrderID))
	default:
		s.logger.Warn("unknown notification type", zap.String("type", job.Type))
	}
	return nil
}
