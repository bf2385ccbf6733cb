package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
	"gomotif/domain/power"
	"gomotif/domain/run"
	"gomotif/domain/sensitivity"
	"gomotif/domain/stability"
	"gomotif/ports"
)

// LedgerRepository persists artifacts in PostgreSQL. The table is
// append-only: there is no update path, and rewriting a stored artifact is
// a primary-key violation by construction.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a PostgreSQL artifact ledger
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// StoreArtifact appends one artifact under the given run (or sweep) ID.
func (r *LedgerRepository) StoreArtifact(ctx context.Context, runID string, artifact core.Artifact) error {
	payloadJSON, err := json.Marshal(artifact.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", artifact.Kind, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, run_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		artifact.ID.String(), runID, string(artifact.Kind), payloadJSON, artifact.CreatedAt.Time())
	if err != nil {
		return fmt.Errorf("insert %s artifact: %w", artifact.Kind, err)
	}
	return nil
}

// ListArtifacts returns artifacts matching the filters, oldest first.
func (r *LedgerRepository) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	query := `SELECT id, kind, payload, created_at FROM artifacts`
	var conds []string
	var args []interface{}

	if filters.RunID != nil {
		args = append(args, filters.RunID.String())
		conds = append(conds, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if filters.Kind != nil {
		args = append(args, string(*filters.Kind))
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []core.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}

// GetArtifact retrieves one artifact by ID.
func (r *LedgerRepository) GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, payload, created_at FROM artifacts WHERE id = $1`, artifactID.String())

	artifact, err := scanArtifact(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: artifact %s", core.ErrArtifactNotFound, artifactID)
		}
		return nil, err
	}
	return &artifact, nil
}

// GetArtifactsByRun returns every artifact stored under a run, oldest first.
func (r *LedgerRepository) GetArtifactsByRun(ctx context.Context, runID core.RunID) ([]core.Artifact, error) {
	id := runID
	return r.ListArtifacts(ctx, ports.ArtifactFilters{RunID: &id})
}

// GetArtifactsByKind returns artifacts of one kind across all runs.
func (r *LedgerRepository) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return r.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

// GetRunManifest retrieves the manifest for a run.
func (r *LedgerRepository) GetRunManifest(ctx context.Context, runID core.RunID) (*run.ManifestArtifact, error) {
	var payloadJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT payload FROM artifacts
		WHERE run_id = $1 AND kind = $2
		ORDER BY created_at DESC LIMIT 1`,
		runID.String(), string(core.ArtifactRunManifest)).Scan(&payloadJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: manifest for run %s", core.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("query run manifest: %w", err)
	}

	var manifest run.ManifestArtifact
	if err := json.Unmarshal(payloadJSON, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal run manifest: %w", err)
	}
	return &manifest, nil
}

// GetSweepManifest retrieves the manifest for a sweep via its payload key.
func (r *LedgerRepository) GetSweepManifest(ctx context.Context, sweepID core.SweepID) (*run.SweepManifestArtifact, error) {
	var payloadJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT payload FROM artifacts
		WHERE kind = $1 AND payload->>'sweep_id' = $2
		ORDER BY created_at DESC LIMIT 1`,
		string(core.ArtifactSweepManifest), sweepID.String()).Scan(&payloadJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: manifest for sweep %s", core.ErrSweepNotFound, sweepID)
		}
		return nil, fmt.Errorf("query sweep manifest: %w", err)
	}

	var manifest run.SweepManifestArtifact
	if err := json.Unmarshal(payloadJSON, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal sweep manifest: %w", err)
	}
	return &manifest, nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArtifact(row rowScanner) (core.Artifact, error) {
	var id, kind string
	var payloadJSON []byte
	var createdAt time.Time

	if err := row.Scan(&id, &kind, &payloadJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return core.Artifact{}, err
		}
		return core.Artifact{}, fmt.Errorf("scan artifact: %w", err)
	}

	artifactKind := core.ArtifactKind(kind)
	payload, err := decodePayload(artifactKind, payloadJSON)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("decode %s payload: %w", kind, err)
	}

	return core.Artifact{
		ID:        core.ID(id),
		Kind:      artifactKind,
		Payload:   payload,
		CreatedAt: core.NewTimestamp(createdAt),
	}, nil
}

// decodePayload rebuilds the concrete payload type for a stored artifact,
// mirroring what the pipeline stores so ledger readers see the same types
// whether the artifact came from memory or from the database.
func decodePayload(kind core.ArtifactKind, raw []byte) (interface{}, error) {
	switch kind {
	case core.ArtifactCandidateTable:
		var v motif.Table
		return v, json.Unmarshal(raw, &v)
	case core.ArtifactNullSummary:
		var v nullmodel.SummaryTable
		return v, json.Unmarshal(raw, &v)
	case core.ArtifactSkippedCandidate:
		v := &run.SkippedCandidateArtifact{}
		return v, json.Unmarshal(raw, v)
	case core.ArtifactPowerCurve:
		v := &power.Curve{}
		return v, json.Unmarshal(raw, v)
	case core.ArtifactStabilityMatrix:
		v := &stability.Matrix{}
		return v, json.Unmarshal(raw, v)
	case core.ArtifactConsensusSummary:
		v := &stability.Report{}
		return v, json.Unmarshal(raw, v)
	case core.ArtifactSensitivityTable:
		v := &sensitivity.Table{}
		return v, json.Unmarshal(raw, v)
	case core.ArtifactRunManifest:
		v := &run.ManifestArtifact{}
		return v, json.Unmarshal(raw, v)
	case core.ArtifactSweepManifest:
		v := &run.SweepManifestArtifact{}
		return v, json.Unmarshal(raw, v)
	case core.ArtifactRunSummary:
		v := &run.SummaryArtifact{}
		return v, json.Unmarshal(raw, v)
	default:
		return json.RawMessage(raw), nil
	}
}

var _ ports.LedgerPort = (*LedgerRepository)(nil)
