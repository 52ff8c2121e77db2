package database

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	coderrors "github.com/coderloop/coderloop/pkg/errors"
	"github.com/coderloop/coderloop/pkg/session"
)

// Store is the PostgreSQL implementation of session.Store (spec §4.2,
// persistence layout in spec §6). Only AppendArtifact runs inside a
// transaction; Create, Load, Persist and the other methods issue their
// statements directly on the pool, so Load's session row and artifact
// rows are read by separate queries.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool as a session.Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ session.Store = (*Store)(nil)

func transientErr(op string, err error) error {
	return coderrors.Wrap(coderrors.KindStorageUnavailable, op, coderrors.NewTransient("unreachable", err))
}

func (s *Store) Create(state *session.SessionState) error {
	ctx := context.Background()
	scoreHistory, _ := json.Marshal(state.ScoreHistory)
	timePerIter, _ := json.Marshal(state.TimePerIterationMs)
	hashes, _ := json.Marshal(contentHashList(state))

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, state, current_iteration, max_iterations,
			quality_threshold, task_timeout_minutes, start_time_ms, last_quality_score,
			score_history, time_per_iteration_ms, content_hashes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		state.SessionID, string(state.State), state.CurrentIteration, state.MaxIterations,
		state.QualityThreshold, state.TaskTimeoutMinutes, state.StartTimeMs, state.LastQualityScore,
		scoreHistory, timePerIter, hashes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coderrors.Wrap(coderrors.KindValidation, "session already exists", err)
		}
		return transientErr("create session", err)
	}
	return s.insertArtifacts(ctx, state.SessionID, state.Artifacts)
}

func (s *Store) Load(sessionID string) (*session.SessionState, error) {
	ctx := context.Background()
	state, err := s.loadSessionRow(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	artifacts, err := s.loadArtifacts(ctx, sessionID)
	if err != nil {
		return nil, transientErr("load artifacts", err)
	}
	state.Artifacts = artifacts
	return state, nil
}

func (s *Store) Persist(state *session.SessionState) error {
	ctx := context.Background()
	scoreHistory, _ := json.Marshal(state.ScoreHistory)
	timePerIter, _ := json.Marshal(state.TimePerIterationMs)
	hashes, _ := json.Marshal(contentHashList(state))

	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET state=$2, current_iteration=$3, max_iterations=$4,
			quality_threshold=$5, task_timeout_minutes=$6, last_quality_score=$7,
			score_history=$8, time_per_iteration_ms=$9, content_hashes=$10
		WHERE session_id=$1`,
		state.SessionID, string(state.State), state.CurrentIteration, state.MaxIterations,
		state.QualityThreshold, state.TaskTimeoutMinutes, state.LastQualityScore,
		scoreHistory, timePerIter, hashes,
	)
	if err != nil {
		return transientErr("persist session", err)
	}
	if tag.RowsAffected() == 0 {
		return coderrors.Wrap(coderrors.KindNotFound, "session not found", coderrors.ErrNotFound)
	}
	return s.insertArtifacts(ctx, state.SessionID, state.Artifacts)
}

func (s *Store) AppendArtifact(sessionID string, a session.Artifact) error {
	ctx := context.Background()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return transientErr("begin append-artifact transaction", err)
	}
	defer tx.Rollback(ctx)

	state, err := s.loadSessionRowTx(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	state.AppendArtifact(a)

	hashes, _ := json.Marshal(contentHashList(state))
	if _, err := tx.Exec(ctx, `UPDATE sessions SET content_hashes=$2 WHERE session_id=$1`, sessionID, hashes); err != nil {
		return transientErr("update content hashes", err)
	}
	if err := s.insertArtifactTx(ctx, tx, sessionID, a); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return transientErr("commit append-artifact transaction", err)
	}
	return nil
}

func (s *Store) List() ([]*session.SessionState, error) {
	ctx := context.Background()
	rows, err := s.pool.Query(ctx, `SELECT session_id FROM sessions ORDER BY start_time_ms ASC`)
	if err != nil {
		return nil, transientErr("list sessions", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, transientErr("scan session id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]*session.SessionState, 0, len(ids))
	for _, id := range ids {
		st, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) EvictOlderThan(cutoff time.Time) (int, error) {
	ctx := context.Background()
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM sessions
		WHERE start_time_ms < $1 AND state IN ('IDLE', 'CONVERGED', 'ESCALATED', 'FAILED')`,
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, transientErr("evict sessions", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) loadSessionRow(ctx context.Context, sessionID string) (*session.SessionState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, state, current_iteration, max_iterations, quality_threshold,
			task_timeout_minutes, start_time_ms, last_quality_score, score_history,
			time_per_iteration_ms, content_hashes
		FROM sessions WHERE session_id=$1`, sessionID)
	return scanSessionRow(row)
}

func (s *Store) loadSessionRowTx(ctx context.Context, tx pgx.Tx, sessionID string) (*session.SessionState, error) {
	row := tx.QueryRow(ctx, `
		SELECT session_id, state, current_iteration, max_iterations, quality_threshold,
			task_timeout_minutes, start_time_ms, last_quality_score, score_history,
			time_per_iteration_ms, content_hashes
		FROM sessions WHERE session_id=$1 FOR UPDATE`, sessionID)
	return scanSessionRow(row)
}

func scanSessionRow(row pgx.Row) (*session.SessionState, error) {
	var (
		id, state                     string
		currentIter, maxIter          int
		qualityThreshold, taskTimeout int
		startTimeMs                   int64
		lastScore                     *int
		scoreHistoryJSON              []byte
		timePerIterJSON               []byte
		hashesJSON                    []byte
	)
	err := row.Scan(&id, &state, &currentIter, &maxIter, &qualityThreshold, &taskTimeout,
		&startTimeMs, &lastScore, &scoreHistoryJSON, &timePerIterJSON, &hashesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coderrors.Wrap(coderrors.KindNotFound, "session not found", coderrors.ErrNotFound)
		}
		return nil, transientErr("scan session row", err)
	}

	s := session.New(id, maxIter, qualityThreshold, taskTimeout, startTimeMs)
	s.State = session.State(state)
	s.CurrentIteration = currentIter
	s.LastQualityScore = lastScore

	var scoreHistory []int
	_ = json.Unmarshal(scoreHistoryJSON, &scoreHistory)
	s.ScoreHistory = scoreHistory

	var timePerIter []int64
	_ = json.Unmarshal(timePerIterJSON, &timePerIter)
	s.TimePerIterationMs = timePerIter

	var hashes []string
	_ = json.Unmarshal(hashesJSON, &hashes)
	for _, h := range hashes {
		s.ContentHashes[h] = struct{}{}
	}
	return s, nil
}

func (s *Store) loadArtifacts(ctx context.Context, sessionID string) ([]session.Artifact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT artifact_id, kind, description, timestamp_ms, content, metadata
		FROM artifacts WHERE session_id=$1 ORDER BY timestamp_ms ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Artifact
	for rows.Next() {
		var (
			a            session.Artifact
			kind         string
			metadataJSON []byte
		)
		if err := rows.Scan(&a.ID, &kind, &a.Description, &a.TimestampMs, &a.Content, &metadataJSON); err != nil {
			return nil, err
		}
		a.Kind = session.ArtifactKind(kind)
		metadata := map[string]string{}
		_ = json.Unmarshal(metadataJSON, &metadata)
		a.Metadata = metadata
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) insertArtifacts(ctx context.Context, sessionID string, artifacts []session.Artifact) error {
	for _, a := range artifacts {
		if err := s.insertArtifactTx(ctx, s.pool, sessionID, a); err != nil {
			return err
		}
	}
	return nil
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx, letting
// insertArtifactTx run inside or outside an explicit transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) insertArtifactTx(ctx context.Context, e execer, sessionID string, a session.Artifact) error {
	metadata, _ := json.Marshal(a.Metadata)
	_, err := e.Exec(ctx, `
		INSERT INTO artifacts (artifact_id, session_id, kind, description, timestamp_ms, content, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (artifact_id) DO NOTHING`,
		a.ID, sessionID, string(a.Kind), a.Description, a.TimestampMs, a.Content, metadata,
	)
	if err != nil {
		return transientErr("insert artifact", err)
	}
	return nil
}

func contentHashList(s *session.SessionState) []string {
	out := make([]string, 0, len(s.ContentHashes))
	for h := range s.ContentHashes {
		out = append(out, h)
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key")
}
