package testkit

import (
	"context"
	"fmt"
	"sync"

	"gomotif/adapters/rng"
	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/run"
	"gomotif/domain/signal"
	"gomotif/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	ledger *InMemoryLedgerAdapter // Shared ledger instance
	runs   *InMemoryRunRepository
	sweeps *InMemorySweepRepository
}

// NewTestKit creates a new test kit instance with in-memory storage
func NewTestKit() (*TestKit, error) {
	return &TestKit{
		ledger: NewInMemoryLedgerAdapter(),
		runs:   NewInMemoryRunRepository(),
		sweeps: NewInMemorySweepRepository(),
	}, nil
}

// RNGAdapter returns the deterministic RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return rng.New()
}

// LedgerAdapter returns a ledger adapter
func (t *TestKit) LedgerAdapter() ports.LedgerPort {
	// Return shared ledger instance so UI and pipeline use same storage
	return t.ledger
}

// LedgerReaderAdapter returns a ledger reader adapter for UI
func (t *TestKit) LedgerReaderAdapter() ports.LedgerReaderPort {
	// Share the same storage as LedgerAdapter
	return t.ledger
}

// RunRepository returns an in-memory run repository
func (t *TestKit) RunRepository() ports.RunRepository {
	return t.runs
}

// SweepRepository returns an in-memory sweep repository
func (t *TestKit) SweepRepository() ports.SweepRepository {
	return t.sweeps
}

// FakeDetector returns a detector that always reports the given candidates
func (t *TestKit) FakeDetector(candidates ...motif.Candidate) ports.DetectorPort {
	return &FakeDetectorAdapter{candidates: candidates}
}

// FakeDetectorAdapter implements DetectorPort with a fixed candidate list
type FakeDetectorAdapter struct {
	candidates []motif.Candidate
}

func (f *FakeDetectorAdapter) Detect(ctx context.Context, sig *signal.Signal, thresholdPercentile int) ([]motif.Candidate, error) {
	out := make([]motif.Candidate, len(f.candidates))
	copy(out, f.candidates)
	return out, nil
}

// InMemoryLedgerAdapter implements LedgerPort with in-memory storage
type InMemoryLedgerAdapter struct {
	artifacts    map[core.ArtifactID]core.Artifact
	runArtifacts map[core.RunID][]core.ArtifactID
	mu           sync.RWMutex
}

func NewInMemoryLedgerAdapter() *InMemoryLedgerAdapter {
	return &InMemoryLedgerAdapter{
		artifacts:    make(map[core.ArtifactID]core.Artifact),
		runArtifacts: make(map[core.RunID][]core.ArtifactID),
	}
}

func (s *InMemoryLedgerAdapter) StoreArtifact(ctx context.Context, runID string, artifact core.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifactID := core.ArtifactID(artifact.ID)
	s.artifacts[artifactID] = artifact

	// Track artifacts by run
	runIDTyped := core.RunID(runID)
	if s.runArtifacts[runIDTyped] == nil {
		s.runArtifacts[runIDTyped] = []core.ArtifactID{}
	}
	s.runArtifacts[runIDTyped] = append(s.runArtifacts[runIDTyped], artifactID)

	return nil
}

func (s *InMemoryLedgerAdapter) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []core.Artifact
	count := 0

	for _, artifact := range s.artifacts {
		// Apply filters
		if filters.Kind != nil && artifact.Kind != *filters.Kind {
			continue
		}

		if filters.RunID != nil {
			runArtifacts, exists := s.runArtifacts[*filters.RunID]
			if !exists {
				continue
			}
			found := false
			for _, aid := range runArtifacts {
				if aid == core.ArtifactID(artifact.ID) {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}

		results = append(results, artifact)
		count++
		if filters.Limit > 0 && count >= filters.Limit {
			break
		}
	}

	return results, nil
}

func (s *InMemoryLedgerAdapter) GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, exists := s.artifacts[artifactID]
	if !exists {
		return nil, fmt.Errorf("%w: artifact %s", core.ErrArtifactNotFound, artifactID)
	}

	return &artifact, nil
}

func (s *InMemoryLedgerAdapter) GetArtifactsByRun(ctx context.Context, runID core.RunID) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifactIDs, exists := s.runArtifacts[runID]
	if !exists {
		return []core.Artifact{}, nil
	}

	artifacts := make([]core.Artifact, 0, len(artifactIDs))
	for _, aid := range artifactIDs {
		if artifact, ok := s.artifacts[aid]; ok {
			artifacts = append(artifacts, artifact)
		}
	}

	return artifacts, nil
}

func (s *InMemoryLedgerAdapter) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return s.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

func (s *InMemoryLedgerAdapter) GetRunManifest(ctx context.Context, runID core.RunID) (*run.ManifestArtifact, error) {
	artifacts, err := s.GetArtifactsByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	for _, artifact := range artifacts {
		if artifact.Kind != core.ArtifactRunManifest {
			continue
		}
		if manifest, ok := artifact.Payload.(*run.ManifestArtifact); ok {
			return manifest, nil
		}
	}

	return nil, fmt.Errorf("%w: manifest for run %s", core.ErrRunNotFound, runID)
}

func (s *InMemoryLedgerAdapter) GetSweepManifest(ctx context.Context, sweepID core.SweepID) (*run.SweepManifestArtifact, error) {
	kind := core.ArtifactSweepManifest
	artifacts, err := s.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind})
	if err != nil {
		return nil, err
	}

	for _, artifact := range artifacts {
		if manifest, ok := artifact.Payload.(*run.SweepManifestArtifact); ok && manifest.SweepID == sweepID {
			return manifest, nil
		}
	}

	return nil, fmt.Errorf("%w: manifest for sweep %s", core.ErrSweepNotFound, sweepID)
}

// InMemoryRunRepository implements RunRepository with in-memory storage
type InMemoryRunRepository struct {
	runs  map[core.RunID]*run.Run
	order []core.RunID
	mu    sync.RWMutex
}

func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{runs: make(map[core.RunID]*run.Run)}
}

func (s *InMemoryRunRepository) SaveRun(ctx context.Context, r *run.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *r
	s.runs[r.ID] = &stored
	s.order = append(s.order, r.ID)
	return nil
}

func (s *InMemoryRunRepository) GetRun(ctx context.Context, runID core.RunID) (*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	found := *r
	return &found, nil
}

func (s *InMemoryRunRepository) ListRuns(ctx context.Context, limit int) ([]*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*run.Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(results) >= limit {
			break
		}
		if r, ok := s.runs[s.order[i]]; ok {
			found := *r
			results = append(results, &found)
		}
	}
	return results, nil
}

func (s *InMemoryRunRepository) UpdateRunStatus(ctx context.Context, runID core.RunID, status run.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.runs[runID]
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	r.Status = status
	r.Error = errMsg
	if status == run.StatusCompleted || status == run.StatusFailed {
		r.CompletedAt = core.Now()
	}
	return nil
}

// InMemorySweepRepository implements SweepRepository with in-memory storage
type InMemorySweepRepository struct {
	sweeps map[core.SweepID]*run.Sweep
	order  []core.SweepID
	mu     sync.RWMutex
}

func NewInMemorySweepRepository() *InMemorySweepRepository {
	return &InMemorySweepRepository{sweeps: make(map[core.SweepID]*run.Sweep)}
}

func (s *InMemorySweepRepository) SaveSweep(ctx context.Context, sw *run.Sweep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *sw
	s.sweeps[sw.ID] = &stored
	s.order = append(s.order, sw.ID)
	return nil
}

func (s *InMemorySweepRepository) GetSweep(ctx context.Context, sweepID core.SweepID) (*run.Sweep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sw, exists := s.sweeps[sweepID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrSweepNotFound, sweepID)
	}
	found := *sw
	return &found, nil
}

func (s *InMemorySweepRepository) ListSweeps(ctx context.Context, limit int) ([]*run.Sweep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*run.Sweep, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(results) >= limit {
			break
		}
		if sw, ok := s.sweeps[s.order[i]]; ok {
			found := *sw
			results = append(results, &found)
		}
	}
	return results, nil
}

func (s *InMemorySweepRepository) UpdateSweepStatus(ctx context.Context, sweepID core.SweepID, status run.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, exists := s.sweeps[sweepID]
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrSweepNotFound, sweepID)
	}
	sw.Status = status
	sw.Error = errMsg
	if status == run.StatusCompleted || status == run.StatusFailed {
		sw.CompletedAt = core.Now()
	}
	return nil
}

func (s *InMemorySweepRepository) DeleteSweep(ctx context.Context, sweepID core.SweepID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sweeps[sweepID]; !exists {
		return fmt.Errorf("%w: %s", core.ErrSweepNotFound, sweepID)
	}
	delete(s.sweeps, sweepID)
	for i, id := range s.order {
		if id == sweepID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
