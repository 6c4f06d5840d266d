package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"folio/internal/logger"
)

// TaskType represents the type of scheduled task
type TaskType string

const (
	TaskTypePurgeSessions TaskType = "purge-expired-sessions"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task represents a scheduled task
type Task struct {
	Type        TaskType   `json:"type"`
	Schedule    string     `json:"schedule"`
	LastRunTime time.Time  `json:"last_run_time,omitempty"`
	NextRunTime time.Time  `json:"next_run_time,omitempty"`
	Status      TaskStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	Runs        int64      `json:"runs"`

	entryID cron.EntryID
}

// TaskHandler defines the interface for task handlers
type TaskHandler interface {
	Handle(ctx context.Context) error
}

// HandlerFunc adapts a function to TaskHandler
type HandlerFunc func(ctx context.Context) error

func (f HandlerFunc) Handle(ctx context.Context) error {
	return f(ctx)
}

// Scheduler runs maintenance tasks on cron schedules with a seconds field
type Scheduler struct {
	cron     *cron.Cron
	tasks    map[TaskType]*Task
	handlers map[TaskType]TaskHandler
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		tasks:    make(map[TaskType]*Task),
		handlers: make(map[TaskType]TaskHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler registers a handler for a task type
func (s *Scheduler) RegisterHandler(taskType TaskType, handler TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskType] = handler
}

// AddTask schedules a registered task type
func (s *Scheduler) AddTask(taskType TaskType, schedule string) error {
	s.mu.RLock()
	handler, exists := s.handlers[taskType]
	_, scheduled := s.tasks[taskType]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no handler registered for task type: %s", taskType)
	}
	if scheduled {
		return fmt.Errorf("task already scheduled: %s", taskType)
	}

	task := &Task{
		Type:     taskType,
		Schedule: schedule,
		Status:   TaskStatusPending,
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.runTask(s.ctx, task, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.mu.Lock()
	task.entryID = entryID
	s.tasks[taskType] = task
	s.mu.Unlock()

	logger.Info("Scheduled task", "task", taskType, "schedule", schedule)
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running tasks up to ctx's deadline.
// Calling it again, or before Start, is a no-op.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warn("Scheduler stopped before running tasks finished")
	}
}

// RunNow executes a scheduled task immediately
func (s *Scheduler) RunNow(ctx context.Context, taskType TaskType) error {
	s.mu.RLock()
	task, ok := s.tasks[taskType]
	handler := s.handlers[taskType]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("task not found: %s", taskType)
	}
	return s.runTask(ctx, task, handler)
}

// runTask executes a task
func (s *Scheduler) runTask(ctx context.Context, task *Task, handler TaskHandler) error {
	s.mu.Lock()
	task.Status = TaskStatusRunning
	task.LastRunTime = time.Now()
	s.mu.Unlock()

	err := handler.Handle(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	task.Runs++
	if err != nil {
		task.Status = TaskStatusFailed
		task.Error = err.Error()
		logger.Error("Scheduled task failed", "task", task.Type, "error", err)
	} else {
		task.Status = TaskStatusCompleted
		task.Error = ""
	}
	return err
}

// GetTask returns a snapshot of a task
func (s *Scheduler) GetTask(taskType TaskType) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[taskType]
	if !exists {
		return Task{}, fmt.Errorf("task not found: %s", taskType)
	}
	return s.snapshot(task), nil
}

// ListTasks returns snapshots of all tasks
func (s *Scheduler) ListTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, s.snapshot(task))
	}
	return tasks
}

func (s *Scheduler) snapshot(task *Task) Task {
	out := *task
	out.NextRunTime = s.cron.Entry(task.entryID).Next
	return out
}
