package worker

import (
	"context"
	"time"

	"github.com/aurak-emp/attendance/internal/service"

	"github.com/sirupsen/logrus"
)

// NotificationResendWorker периодически переотправляет письма со
// штрих-кодами для записей, оставшихся без доставки. Письмо может
// потеряться из-за сбоя SMTP или рестарта сервиса между коммитом
// регистрации и публикацией задачи.
type NotificationResendWorker struct {
	attendanceService service.AttendanceService
	interval          time.Duration
	staleAfter        time.Duration
	batchSize         int
}

func NewNotificationResendWorker(attendanceService service.AttendanceService, interval, staleAfter time.Duration, batchSize int) *NotificationResendWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &NotificationResendWorker{
		attendanceService: attendanceService,
		interval:          interval,
		staleAfter:        staleAfter,
		batchSize:         batchSize,
	}
}

func (w *NotificationResendWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Notification resend worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Notification resend worker stopped")
			return
		case <-ticker.C:
			w.resendPending(ctx)
		}
	}
}

// resendPending ставит в очередь доставку для зависших регистраций.
// Берутся только записи старше staleAfter: свежие задачи еще могут
// висеть в очереди штатно.
func (w *NotificationResendWorker) resendPending(ctx context.Context) {
	before := time.Now().Add(-w.staleAfter)

	count, err := w.attendanceService.RedispatchPending(ctx, before, w.batchSize)
	if err != nil {
		logrus.Errorf("Failed to redispatch pending notifications: %v", err)
		return
	}

	if count == 0 {
		logrus.Debug("No pending notifications found for resend")
		return
	}

	logrus.Infof("Re-dispatched %d pending barcode deliveries", count)
}

// GetStats возвращает статистику работы воркера
func (w *NotificationResendWorker) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"worker_type": "notification_resend",
		"interval":    w.interval.String(),
		"stale_after": w.staleAfter.String(),
		"batch_size":  w.batchSize,
	}
}
