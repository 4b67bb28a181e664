package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/query"
	"admincore/internal/repository"
	"admincore/internal/status"
)

type TaskService struct {
	repo   repository.TaskRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewTaskService(repo repository.TaskRepository, now func() time.Time, logger *zap.Logger) *TaskService {
	if now == nil {
		now = time.Now
	}
	return &TaskService{repo: repo, now: now, logger: logger}
}

func (s *TaskService) Create(ctx context.Context, t model.Task) (model.TaskView, error) {
	created, err := s.repo.CreateTask(ctx, t)
	if err != nil {
		return model.TaskView{}, err
	}
	s.logger.Info("Task created",
		zap.Int64("task_id", created.ID),
		zap.String("category", string(created.Category)),
		zap.String("priority", string(created.Priority)),
	)
	return status.ViewTask(created, s.now()), nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (model.TaskView, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return model.TaskView{}, err
	}
	return status.ViewTask(t, s.now()), nil
}

// Update merges patch into the stored task and re-validates it.
func (s *TaskService) Update(ctx context.Context, id int64, patch model.TaskPatch) (model.TaskView, error) {
	return s.mutate(ctx, id, func(t *model.Task) error {
		t.Apply(patch)
		return t.Validate()
	})
}

func (s *TaskService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Task deleted", zap.Int64("task_id", id))
	return nil
}

// Toggle advances the stored status one step along
// pending -> in-progress -> completed -> pending.
func (s *TaskService) Toggle(ctx context.Context, id int64) (model.TaskView, error) {
	return s.mutate(ctx, id, func(t *model.Task) error {
		t.Status = status.NextTask(t.Status)
		t.Normalize()
		return nil
	})
}

func (s *TaskService) Complete(ctx context.Context, id int64) (model.TaskView, error) {
	return s.mutate(ctx, id, func(t *model.Task) error {
		t.Status = model.TaskCompleted
		t.Normalize()
		return nil
	})
}

func (s *TaskService) List(ctx context.Context) ([]model.TaskView, error) {
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return status.ViewTasks(tasks, s.now()), nil
}

func (s *TaskService) Query(ctx context.Context, p query.Params) (query.Page[model.TaskView], error) {
	if err := query.TaskAccessors.Validate(p); err != nil {
		return query.Page[model.TaskView]{}, err
	}
	views, err := s.List(ctx)
	if err != nil {
		return query.Page[model.TaskView]{}, err
	}
	return query.Run(views, query.TaskAccessors, p)
}

func (s *TaskService) mutate(ctx context.Context, id int64, fn repository.TaskMutator) (model.TaskView, error) {
	t, err := s.repo.UpdateTask(ctx, id, fn)
	if err != nil {
		return model.TaskView{}, err
	}
	s.logger.Debug("Task updated", zap.Int64("task_id", id), zap.String("status", string(t.Status)))
	return status.ViewTask(t, s.now()), nil
}
