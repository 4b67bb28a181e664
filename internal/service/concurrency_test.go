package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"admincore/internal/model"
	"admincore/internal/repository"
)

func TestOverlappingRunsDispatchEachDeadlineOnce(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			h := newHarness(t, backend)
			ctx := context.Background()
			for i := 0; i < 20; i++ {
				_, err := h.deadlines.Create(ctx, deadlineDue(fmt.Sprintf("Tender %02d", i), 1))
				require.NoError(t, err)
			}

			var (
				mu         sync.Mutex
				dispatched int
			)
			g, gctx := errgroup.WithContext(ctx)
			for i := 0; i < 8; i++ {
				g.Go(func() error {
					report, err := h.scheduler.Run(gctx)
					if err != nil {
						return err
					}
					mu.Lock()
					dispatched += len(report.Dispatched)
					mu.Unlock()
					return nil
				})
			}
			require.NoError(t, g.Wait())

			assert.Equal(t, 20, dispatched)
			assert.Len(t, h.transport.Messages(), 20)
			history, err := h.scheduler.History(ctx, repository.HistoryFilter{Kind: model.KindDeadline})
			require.NoError(t, err)
			assert.Len(t, history, 20)
		})
	}
}

func TestConcurrentTaskUpdatesAreNotLost(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			h := newHarness(t, backend)
			ctx := context.Background()
			created, err := h.tasks.Create(ctx, taskDue("Count invoices", model.CategoryFinance, 5))
			require.NoError(t, err)

			var g errgroup.Group
			for i := 0; i < 50; i++ {
				g.Go(func() error {
					_, err := h.tasks.mutate(ctx, created.ID, func(t *model.Task) error {
						t.PendingItemCount++
						return nil
					})
					return err
				})
			}
			require.NoError(t, g.Wait())

			got, err := h.tasks.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, 50, got.PendingItemCount)
		})
	}
}
