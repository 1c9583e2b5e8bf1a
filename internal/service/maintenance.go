package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"blocknotes/internal/domain"
)

const (
	orphanSweepJob   = "orphan-sweep"
	orphanSweepBatch = 500

	// DefaultUploadGrace is how long an upload may stay unreferenced before
	// the sweep removes it. It covers the gap between uploading an image
	// and saving the block that shows it.
	DefaultUploadGrace = 24 * time.Hour
)

// ObjectCollector lists and purges uploaded objects for the sweep.
type ObjectCollector interface {
	ListObjects(ctx context.Context, cutoff time.Time) ([]string, error)
	Purge(ctx context.Context, url string) error
}

// ─────────────────────────────────────────────────────────────
// Maintenance Service — scheduled store-wide cleanup
// ─────────────────────────────────────────────────────────────

// MaintenanceService removes dangling page references that no read has
// reached yet, and uploads that no block shows. Runs are scheduled with
// cron and never overlap.
type MaintenanceService struct {
	blocks  domain.BlockStore
	files   ObjectCollector
	emitter EventEmitter
	guard   jobGuard
	cron    *cron.Cron

	UploadGrace time.Duration
}

// NewMaintenanceService builds the sweep. files may be nil, which skips
// the upload sweep.
func NewMaintenanceService(blocks domain.BlockStore, files ObjectCollector, emitter EventEmitter) *MaintenanceService {
	return &MaintenanceService{blocks: blocks, files: files, emitter: emitter, UploadGrace: DefaultUploadGrace}
}

// SweepOrphans deletes every page-reference block whose target page is
// gone, in batches, and returns how many were removed.
func (s *MaintenanceService) SweepOrphans(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		refs, err := s.blocks.ListDanglingRefs(ctx, orphanSweepBatch)
		if err != nil {
			return total, fmt.Errorf("list dangling refs: %w", err)
		}
		if len(refs) == 0 {
			return total, nil
		}
		ids := make([]string, len(refs))
		for i, b := range refs {
			ids[i] = b.ID
		}
		if err := s.blocks.DeleteBlocks(ctx, ids); err != nil {
			return total, fmt.Errorf("delete dangling refs: %w", err)
		}
		total += len(ids)
		if len(refs) < orphanSweepBatch {
			return total, nil
		}
	}
}

// SweepUploads purges uploads older than UploadGrace that no image block
// refers to, and returns how many were removed. Blocks dropped by a save or
// a page deletion leave their uploads for this sweep.
func (s *MaintenanceService) SweepUploads(ctx context.Context) (int, error) {
	if s.files == nil {
		return 0, nil
	}
	urls, err := s.files.ListObjects(ctx, time.Now().Add(-s.UploadGrace))
	if err != nil {
		return 0, fmt.Errorf("list uploads: %w", err)
	}
	removed := 0
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		n, err := s.blocks.CountImageRefs(ctx, url)
		if err != nil {
			return removed, fmt.Errorf("count image refs: %w", err)
		}
		if n > 0 {
			continue
		}
		if err := s.files.Purge(ctx, url); err != nil {
			return removed, fmt.Errorf("purge upload: %w", err)
		}
		removed++
	}
	return removed, nil
}

// RunSweep runs one guarded sweep of references, then uploads. It returns
// false without sweeping when another sweep is in flight.
func (s *MaintenanceService) RunSweep(ctx context.Context) bool {
	return s.guard.Run(orphanSweepJob, func() {
		n, err := s.SweepOrphans(ctx)
		if err != nil {
			s.emitter.Emit(ctx, EventSweepFailed, map[string]any{"removed": n, "error": err.Error()})
			return
		}
		files, err := s.SweepUploads(ctx)
		if err != nil {
			s.emitter.Emit(ctx, EventSweepFailed, map[string]any{"removed": n, "filesRemoved": files, "error": err.Error()})
			return
		}
		s.emitter.Emit(ctx, EventSweepCompleted, map[string]any{"removed": n, "filesRemoved": files})
	})
}

// Start schedules the sweep on a standard five-field cron spec. An empty
// spec disables scheduling.
func (s *MaintenanceService) Start(spec string) error {
	if spec == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.RunSweep(context.Background()) }); err != nil {
		return fmt.Errorf("%w: orphan sweep schedule %q: %v", domain.ErrValidation, spec, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts scheduling and waits for a running sweep or ctx.
func (s *MaintenanceService) Stop(ctx context.Context) {
	if s.cron != nil {
		select {
		case <-s.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.guard.WaitAll(ctx)
}
