package matchersim

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/tracepipe/internal/config"
)

// Store is the target feature store: one row per registered target,
// one feature vector each (re-registering replaces it), queried by
// cosine distance. Adapted from the face-embedding table this codebase
// otherwise keeps in Postgres, renamed persons/face_embeddings to
// targets/target_features since there is exactly one feature per
// target here rather than many per person.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// EnsureSchema creates the vector extension and the target_features
// table if they don't exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS target_features (
			target_id TEXT PRIMARY KEY,
			feature vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, embedDim))
	return err
}

// Upsert replaces the feature stored for targetID; re-registering a
// target is idempotent.
func (s *Store) Upsert(ctx context.Context, targetID string, feature []float32) error {
	vec := pgvector.NewVector(feature)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO target_features (target_id, feature) VALUES ($1, $2)
		ON CONFLICT (target_id) DO UPDATE SET feature = EXCLUDED.feature, created_at = now()`,
		targetID, vec)
	if err != nil {
		return fmt.Errorf("upsert target feature: %w", err)
	}
	return nil
}

type Candidate struct {
	TargetID   string
	Similarity float64
}

// Search returns up to limit targets (10 when limit <= 0) whose cosine
// similarity to query is at or above threshold, closest first.
func (s *Store) Search(ctx context.Context, query []float32, threshold float64, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(query)
	rows, err := s.pool.Query(ctx, `
		SELECT target_id, 1 - (feature <=> $1) AS similarity
		FROM target_features
		WHERE 1 - (feature <=> $1) >= $2
		ORDER BY feature <=> $1
		LIMIT $3`, vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search target features: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.TargetID, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT target_id FROM target_features ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan target id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) Delete(ctx context.Context, targetID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM target_features WHERE target_id = $1`, targetID)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
