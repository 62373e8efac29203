package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// DLQHandler defines interface for Dead Letter Queue handling
type DLQHandler interface {
	HandleFailedTask(task *Task, err error)
	GetFailedTasks(ctx context.Context, limit int64) ([]*FailedTask, error)
	RequeueFailedTask(ctx context.Context, taskID string, targetQueue string) error
	GetDLQStats(ctx context.Context) (*DLQStats, error)
}

// FailedTask represents a task that exhausted all retry attempts
type FailedTask struct {
	Task     *Task     `json:"task"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// DLQStats contains Dead Letter Queue statistics
type DLQStats struct {
	TotalTasks int64            `json:"total_tasks"`
	ByType     map[string]int64 `json:"by_type"`
	OldestTask time.Time        `json:"oldest_task"`
	Timestamp  time.Time        `json:"timestamp"`
}

// DefaultDLQHandler is the default implementation of DLQHandler
type DefaultDLQHandler struct {
	client *redis.Client
	dlqKey string
}

// NewDefaultDLQHandler creates a new DefaultDLQHandler
func NewDefaultDLQHandler(client *redis.Client, dlqKey string) *DefaultDLQHandler {
	if dlqKey == "" {
		dlqKey = "attendance:dlq"
	}
	return &DefaultDLQHandler{
		client: client,
		dlqKey: dlqKey,
	}
}

// HandleFailedTask stores a failed task in the DLQ
func (h *DefaultDLQHandler) HandleFailedTask(task *Task, err error) {
	failed := &FailedTask{
		Task:     task,
		Error:    err.Error(),
		FailedAt: time.Now(),
	}

	data, marshalErr := json.Marshal(failed)
	if marshalErr != nil {
		log.Printf("Failed to marshal DLQ task %s: %v", task.ID, marshalErr)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Store in sorted set with failure timestamp as score
	score := float64(failed.FailedAt.UnixNano()) / 1e9
	if zErr := h.client.ZAdd(ctx, h.dlqKey, &redis.Z{
		Score:  score,
		Member: data,
	}).Err(); zErr != nil {
		log.Printf("Failed to store task %s in DLQ: %v", task.ID, zErr)
		return
	}

	log.Printf("Task %s moved to DLQ: %v", task.ID, err)
}

// GetFailedTasks returns failed tasks from the DLQ, oldest first
func (h *DefaultDLQHandler) GetFailedTasks(ctx context.Context, limit int64) ([]*FailedTask, error) {
	if limit <= 0 {
		limit = 100
	}

	items, err := h.client.ZRange(ctx, h.dlqKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ: %v", err)
	}

	tasks := make([]*FailedTask, 0, len(items))
	for _, item := range items {
		var failed FailedTask
		if err := json.Unmarshal([]byte(item), &failed); err != nil {
			log.Printf("Skipping corrupted DLQ entry: %v", err)
			continue
		}
		tasks = append(tasks, &failed)
	}

	return tasks, nil
}

// RequeueFailedTask moves a task from DLQ back to the target queue
func (h *DefaultDLQHandler) RequeueFailedTask(ctx context.Context, taskID string, targetQueue string) error {
	items, err := h.client.ZRange(ctx, h.dlqKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read DLQ: %v", err)
	}

	for _, item := range items {
		var failed FailedTask
		if err := json.Unmarshal([]byte(item), &failed); err != nil {
			continue
		}
		if failed.Task == nil || failed.Task.ID != taskID {
			continue
		}

		// Reset attempts for a fresh round of retries
		failed.Task.Attempts = 0
		taskData, err := json.Marshal(failed.Task)
		if err != nil {
			return fmt.Errorf("failed to marshal task %s: %v", taskID, err)
		}

		pipe := h.client.Pipeline()
		pipe.LPush(ctx, targetQueue, taskData)
		pipe.ZRem(ctx, h.dlqKey, item)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to requeue task %s: %v", taskID, err)
		}

		log.Printf("Task %s requeued from DLQ to %s", taskID, targetQueue)
		return nil
	}

	return fmt.Errorf("task %s not found in DLQ", taskID)
}

// GetDLQStats returns DLQ statistics grouped by task type
func (h *DefaultDLQHandler) GetDLQStats(ctx context.Context) (*DLQStats, error) {
	items, err := h.client.ZRangeWithScores(ctx, h.dlqKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ: %v", err)
	}

	stats := &DLQStats{
		TotalTasks: int64(len(items)),
		ByType:     make(map[string]int64),
		Timestamp:  time.Now(),
	}

	for i, item := range items {
		member, ok := item.Member.(string)
		if !ok {
			continue
		}
		var failed FailedTask
		if err := json.Unmarshal([]byte(member), &failed); err != nil {
			continue
		}
		if failed.Task != nil {
			stats.ByType[string(failed.Task.Type)]++
		}
		if i == 0 {
			stats.OldestTask = failed.FailedAt
		}
	}

	return stats, nil
}
