package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pathwise-Labs/Elicit/internal/session"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const sessionColumns = `session_id, status,
	posterior_mean, posterior_covariance, fisher_information,
	completed_vignettes, adaptive_shown, adaptive_complete, stop_reason,
	created_at, updated_at`

func (s *PostgresStore) CreateSession(ctx context.Context, snap *session.Snapshot) error {
	meanJSON, _ := json.Marshal(snap.PosteriorMean)
	covJSON, _ := json.Marshal(snap.PosteriorCovariance)
	fimJSON, _ := json.Marshal(snap.FisherInformationMatrix)
	completedJSON, _ := json.Marshal(snap.CompletedVignettes)

	return s.pool.QueryRow(ctx, `
		INSERT INTO elicit_sessions (session_id, status,
			posterior_mean, posterior_covariance, fisher_information,
			completed_vignettes, adaptive_shown, adaptive_complete, stop_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		snap.SessionID, snap.Status,
		meanJSON, covJSON, fimJSON,
		completedJSON, snap.AdaptiveVignettesShownCount, snap.AdaptivePhaseComplete, snap.StopReason,
	).Scan(&snap.CreatedAt, &snap.UpdatedAt)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*session.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM elicit_sessions WHERE session_id = $1`, id)
	snap, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, snap *session.Snapshot) error {
	meanJSON, _ := json.Marshal(snap.PosteriorMean)
	covJSON, _ := json.Marshal(snap.PosteriorCovariance)
	fimJSON, _ := json.Marshal(snap.FisherInformationMatrix)
	completedJSON, _ := json.Marshal(snap.CompletedVignettes)

	_, err := s.pool.Exec(ctx, `
		UPDATE elicit_sessions SET
			status = $2,
			posterior_mean = $3, posterior_covariance = $4, fisher_information = $5,
			completed_vignettes = $6, adaptive_shown = $7, adaptive_complete = $8,
			stop_reason = $9, updated_at = NOW()
		WHERE session_id = $1`,
		snap.SessionID, snap.Status,
		meanJSON, covJSON, fimJSON,
		completedJSON, snap.AdaptiveVignettesShownCount, snap.AdaptivePhaseComplete,
		snap.StopReason,
	)
	return err
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*session.Snapshot, error) {
	query := `SELECT ` + sessionColumns + ` FROM elicit_sessions WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
	}
	if filter.UpdatedBefore != nil {
		n++
		query += fmt.Sprintf(" AND updated_at < $%d", n)
		args = append(args, *filter.UpdatedBefore)
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*session.Snapshot
	for rows.Next() {
		snap, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *PostgresStore) AppendChoice(ctx context.Context, sessionID string, c session.Choice) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO elicit_choices (session_id, vignette_id, option_id, chosen_at)
		VALUES ($1, $2, $3, $4)`,
		sessionID, c.VignetteID, c.OptionID, c.ChosenAt,
	)
	return err
}

func (s *PostgresStore) ListChoices(ctx context.Context, sessionID string) ([]session.Choice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT vignette_id, option_id, chosen_at
		FROM elicit_choices WHERE session_id = $1
		ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var choices []session.Choice
	for rows.Next() {
		var c session.Choice
		if err := rows.Scan(&c.VignetteID, &c.OptionID, &c.ChosenAt); err != nil {
			return nil, err
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}

func (s *PostgresStore) GetStats(ctx context.Context) (*SessionStats, error) {
	stats := &SessionStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'abandoned' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN adaptive_complete THEN 1 ELSE 0 END), 0),
			COALESCE((SELECT COUNT(*) FROM elicit_choices), 0),
			COALESCE((SELECT COUNT(*) FROM elicit_choices)::float / NULLIF(COUNT(*), 0), 0)
		FROM elicit_sessions`,
	).Scan(&stats.TotalSessions, &stats.ActiveSessions, &stats.CompletedSessions,
		&stats.AbandonedSessions, &stats.AdaptiveComplete, &stats.TotalChoices, &stats.AvgChoices)
	return stats, err
}

func scanSession(row pgx.Row) (*session.Snapshot, error) {
	snap := &session.Snapshot{}
	var meanJSON, covJSON, fimJSON, completedJSON []byte
	var stopReason sql.NullString
	if err := row.Scan(
		&snap.SessionID, &snap.Status,
		&meanJSON, &covJSON, &fimJSON,
		&completedJSON, &snap.AdaptiveVignettesShownCount, &snap.AdaptivePhaseComplete, &stopReason,
		&snap.CreatedAt, &snap.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if stopReason.Valid {
		snap.StopReason = stopReason.String
	}
	if err := json.Unmarshal(meanJSON, &snap.PosteriorMean); err != nil {
		return nil, fmt.Errorf("decode posterior_mean for %s: %w", snap.SessionID, err)
	}
	if err := json.Unmarshal(covJSON, &snap.PosteriorCovariance); err != nil {
		return nil, fmt.Errorf("decode posterior_covariance for %s: %w", snap.SessionID, err)
	}
	if err := json.Unmarshal(fimJSON, &snap.FisherInformationMatrix); err != nil {
		return nil, fmt.Errorf("decode fisher_information for %s: %w", snap.SessionID, err)
	}
	if completedJSON != nil {
		if err := json.Unmarshal(completedJSON, &snap.CompletedVignettes); err != nil {
			return nil, fmt.Errorf("decode completed_vignettes for %s: %w", snap.SessionID, err)
		}
	}
	return snap, nil
}
