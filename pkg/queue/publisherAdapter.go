package queue

import (
	"context"

	"github.com/aurak-emp/attendance/internal/service"
)

// PublisherAdapter адаптирует Queue к service.TaskPublisher интерфейсу
type PublisherAdapter struct {
	queue Queue
}

// NewPublisherAdapter создает новый адаптер для публикации задач
func NewPublisherAdapter(q Queue) *PublisherAdapter {
	return &PublisherAdapter{queue: q}
}

// Publish публикует задачу, преобразуя service.Task в queue.Task
func (a *PublisherAdapter) Publish(ctx context.Context, task *service.Task) error {
	if a.queue == nil {
		return nil // Если очередь не инициализирована, игнорируем
	}

	queueTask := &Task{
		ID:         task.ID,
		Type:       TaskType(task.Type),
		Data:       task.Data,
		ExecuteAt:  task.ExecuteAt,
		MaxRetries: task.MaxRetries,
		Attempts:   task.Attempts,
	}

	return a.queue.Publish(ctx, queueTask)
}
