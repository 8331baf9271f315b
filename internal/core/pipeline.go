package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/remeh/sizedwaitgroup"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/linker"
	"github.com/DonovanMods/lion-launcher/internal/logging"
	"github.com/DonovanMods/lion-launcher/internal/storage/cache"
)

// DefaultWorkers is the number of concurrent artifact transfers
const DefaultWorkers = 8

// Progress is the aggregate state of a materialization. Both fields only ever grow.
type Progress struct {
	BytesCompleted int64
	BytesTotal     int64
}

// Percent returns completion as 0-100
func (p Progress) Percent() float64 {
	if p.BytesTotal <= 0 {
		return 0
	}
	return float64(p.BytesCompleted) / float64(p.BytesTotal) * 100
}

// PipelineProgressFunc receives aggregate progress updates. It may be called from several goroutines
// but calls are serialized.
type PipelineProgressFunc func(Progress)

// Pipeline fetches artifacts into the shared cache and places them into profile runtimes
type Pipeline struct {
	cache      *cache.Cache
	downloader *Downloader
	linker     linker.Linker
	workers    int
	flights    singleflight.Group
	log        zerolog.Logger
}

// NewPipeline creates a pipeline. workers <= 0 selects DefaultWorkers.
func NewPipeline(c *cache.Cache, d *Downloader, l linker.Linker, workers int) *Pipeline {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{
		cache:      c,
		downloader: d,
		linker:     l,
		workers:    workers,
		log:        logging.Get("pipeline"),
	}
}

// Cache returns the underlying artifact cache
func (p *Pipeline) Cache() *cache.Cache {
	return p.cache
}

// Materialize makes every artifact of graph present under targetDir.
// Cached objects are verified and placed; missing ones are fetched first. A cached object that
// fails verification is reported as *domain.IntegrityError and left alone for Repair.
// Failures are collected across all artifacts and returned joined.
func (p *Pipeline) Materialize(ctx context.Context, graph *domain.VersionGraph, targetDir string, progressFn PipelineProgressFunc) error {
	return p.run(ctx, graph, targetDir, false, progressFn)
}

// Repair revalidates every artifact regardless of cache state, re-fetching any that fail and
// placing all of them again.
func (p *Pipeline) Repair(ctx context.Context, graph *domain.VersionGraph, targetDir string, progressFn PipelineProgressFunc) error {
	return p.run(ctx, graph, targetDir, true, progressFn)
}

// Fetch ensures a single artifact is in the cache and returns the cached path
func (p *Pipeline) Fetch(ctx context.Context, a domain.Artifact, progressFn PipelineProgressFunc) (string, error) {
	tracker := newProgressTracker(a.Size, progressFn)
	path, err := p.ensure(ctx, a, false, tracker)
	if err != nil {
		return "", err
	}
	return path, nil
}

// Invalidate drops a materialized runtime so the next Materialize rebuilds it from the cache
func (p *Pipeline) Invalidate(targetDir string) error {
	if err := os.RemoveAll(targetDir); err != nil {
		return fmt.Errorf("removing runtime: %w", err)
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, graph *domain.VersionGraph, targetDir string, repair bool, progressFn PipelineProgressFunc) error {
	op := "materialize"
	if repair {
		op = "repair"
	}
	p.log.Debug().Str("graph", graph.ID()).Int("artifacts", len(graph.Artifacts)).Str("op", op).Msg("Starting")

	tracker := newProgressTracker(graph.TotalSize(), progressFn)

	var mu sync.Mutex
	var errs []error

	swg := sizedwaitgroup.New(p.workers)
	for _, a := range graph.Artifacts {
		if err := swg.AddWithContext(ctx); err != nil {
			break
		}
		go func(a domain.Artifact) {
			defer swg.Done()
			if err := p.materializeOne(ctx, a, targetDir, repair, tracker); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(a)
	}
	swg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(errs) > 0 {
		p.log.Warn().Str("graph", graph.ID()).Int("failed", len(errs)).Str("op", op).Msg("Artifacts failed")
		return errors.Join(errs...)
	}

	p.log.Debug().Str("graph", graph.ID()).Str("op", op).Msg("Done")
	return nil
}

func (p *Pipeline) materializeOne(ctx context.Context, a domain.Artifact, targetDir string, repair bool, tracker *progressTracker) error {
	src, err := p.ensure(ctx, a, repair, tracker)
	if err != nil {
		return err
	}

	dst := filepath.Join(targetDir, filepath.FromSlash(a.Path))
	if !repair {
		if placed, err := p.linker.IsPlaced(src, dst); err == nil && placed {
			return nil
		}
	}
	if err := p.linker.Place(src, dst); err != nil {
		return fmt.Errorf("placing %s: %w", a.Path, err)
	}
	return nil
}

// ensure returns the cache path of a verified copy of a, fetching it when missing.
// With repair set, an invalid cached copy is deleted and fetched again.
func (p *Pipeline) ensure(ctx context.Context, a domain.Artifact, repair bool, tracker *progressTracker) (string, error) {
	key := cache.Key(a)

	err := p.cache.Verify(a)
	switch {
	case err == nil:
		tracker.complete(a.Size, 0)
		return p.cache.Path(key), nil
	case errors.Is(err, domain.ErrIntegrity):
		if !repair {
			return "", err
		}
		p.log.Info().Str("path", a.Path).Msg("Re-fetching corrupt artifact")
		if err := p.cache.Delete(key); err != nil {
			return "", err
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", err
	}

	if a.URL == "" {
		return "", fmt.Errorf("%w: %s has no download url", domain.ErrManifestUnavailable, a.Path)
	}

	var reported int64
	onBytes := func(dp DownloadProgress) {
		if dp.Downloaded > reported {
			tracker.add(dp.Downloaded - reported)
			reported = dp.Downloaded
		}
	}

	// Concurrent requests for the same key share one download. The flight runs
	// under its starter's context, so a waiter whose own context is still live
	// starts a new flight when the starter was cancelled.
	for {
		v, err, shared := p.flights.Do(key, func() (any, error) {
			return p.download(ctx, a, key, onBytes)
		})
		if err != nil {
			if shared && ctx.Err() == nil && isContextErr(err) {
				p.log.Debug().Str("path", a.Path).Msg("Shared fetch was cancelled, fetching again")
				continue
			}
			return "", err
		}
		tracker.complete(a.Size, reported)
		return v.(string), nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (p *Pipeline) download(ctx context.Context, a domain.Artifact, key string, onBytes ProgressFunc) (string, error) {
	// Another flight may have published it while we waited
	if p.cache.Verify(a) == nil {
		return p.cache.Path(key), nil
	}

	f, err := p.cache.TempFile()
	if err != nil {
		return "", err
	}
	tempPath := f.Name()
	defer os.Remove(tempPath) // no-op after a successful publish

	_, err = p.downloader.DownloadTo(ctx, a.URL, f, Expect{SHA1: a.SHA1, Size: a.Size}, onBytes)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing temp file: %w", cerr)
	}
	if err != nil {
		var integrityErr *domain.IntegrityError
		if errors.As(err, &integrityErr) {
			integrityErr.Path = a.Path
			return "", integrityErr
		}
		return "", fmt.Errorf("fetching %s: %w", a.Path, err)
	}

	path, err := p.cache.Publish(tempPath, key)
	if err != nil {
		return "", err
	}
	p.log.Trace().Str("path", a.Path).Str("key", key).Msg("Cached")
	return path, nil
}

// progressTracker aggregates byte counts from concurrent transfers into monotonic Progress
type progressTracker struct {
	mu        sync.Mutex
	completed int64
	total     int64
	fn        PipelineProgressFunc
}

func newProgressTracker(total int64, fn PipelineProgressFunc) *progressTracker {
	t := &progressTracker{total: total, fn: fn}
	t.emit()
	return t
}

func (t *progressTracker) add(n int64) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed += n
	if t.completed > t.total {
		t.total = t.completed
	}
	t.emitLocked()
}

// complete accounts for the rest of an artifact of the given size after already bytes were reported
func (t *progressTracker) complete(size, already int64) {
	t.add(size - already)
}

func (t *progressTracker) emit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitLocked()
}

func (t *progressTracker) emitLocked() {
	if t.fn != nil {
		t.fn(Progress{BytesCompleted: t.completed, BytesTotal: t.total})
	}
}
