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

type DeadlineService struct {
	repo   repository.DeadlineRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewDeadlineService(repo repository.DeadlineRepository, now func() time.Time, logger *zap.Logger) *DeadlineService {
	if now == nil {
		now = time.Now
	}
	return &DeadlineService{repo: repo, now: now, logger: logger}
}

func (s *DeadlineService) Create(ctx context.Context, d model.Deadline) (model.DeadlineView, error) {
	created, err := s.repo.CreateDeadline(ctx, d)
	if err != nil {
		return model.DeadlineView{}, err
	}
	s.logger.Info("Deadline created",
		zap.Int64("deadline_id", created.ID),
		zap.String("type", string(created.Type)),
		zap.Time("due_date", created.DueDate),
	)
	return status.ViewDeadline(created, s.now()), nil
}

func (s *DeadlineService) Get(ctx context.Context, id int64) (model.DeadlineView, error) {
	d, err := s.repo.GetDeadline(ctx, id)
	if err != nil {
		return model.DeadlineView{}, err
	}
	return status.ViewDeadline(d, s.now()), nil
}

func (s *DeadlineService) Update(ctx context.Context, id int64, patch model.DeadlinePatch) (model.DeadlineView, error) {
	return s.mutate(ctx, id, func(d *model.Deadline) error {
		d.Apply(patch)
		return d.Validate()
	})
}

func (s *DeadlineService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteDeadline(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deadline deleted", zap.Int64("deadline_id", id))
	return nil
}

// Toggle flips active <-> completed.
func (s *DeadlineService) Toggle(ctx context.Context, id int64) (model.DeadlineView, error) {
	return s.mutate(ctx, id, func(d *model.Deadline) error {
		d.Status = status.NextDeadline(d.Status)
		d.Normalize()
		return nil
	})
}

func (s *DeadlineService) Complete(ctx context.Context, id int64) (model.DeadlineView, error) {
	return s.mutate(ctx, id, func(d *model.Deadline) error {
		d.Status = model.DeadlineCompleted
		d.Normalize()
		return nil
	})
}

func (s *DeadlineService) List(ctx context.Context) ([]model.DeadlineView, error) {
	deadlines, err := s.repo.ListDeadlines(ctx)
	if err != nil {
		return nil, err
	}
	return status.ViewDeadlines(deadlines, s.now()), nil
}

func (s *DeadlineService) Query(ctx context.Context, p query.Params) (query.Page[model.DeadlineView], error) {
	if err := query.DeadlineAccessors.Validate(p); err != nil {
		return query.Page[model.DeadlineView]{}, err
	}
	views, err := s.List(ctx)
	if err != nil {
		return query.Page[model.DeadlineView]{}, err
	}
	return query.Run(views, query.DeadlineAccessors, p)
}

func (s *DeadlineService) mutate(ctx context.Context, id int64, fn repository.DeadlineMutator) (model.DeadlineView, error) {
	d, err := s.repo.UpdateDeadline(ctx, id, fn)
	if err != nil {
		return model.DeadlineView{}, err
	}
	s.logger.Debug("Deadline updated", zap.Int64("deadline_id", id), zap.String("status", string(d.Status)))
	return status.ViewDeadline(d, s.now()), nil
}
