package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
	"github.com/kirillkom/regulation-hybrid-search/internal/infrastructure/resilience"
)

const schemaLockID int64 = 2026101501

// tsRankNormalization 32 maps ts_rank into [0,1) as rank/(rank+1).
const tsRankNormalization = 32

// RegulationRepository is the full-text store for regulation chunks. It also
// serves cosine similarity over the optional embedding column.
type RegulationRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

type Options struct {
	ResilienceExecutor *resilience.Executor
}

func NewRegulationRepository(db *sql.DB, options Options) *RegulationRepository {
	return &RegulationRepository{db: db, executor: options.ResilienceExecutor}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the chunk table. A positive embeddingDims also enables
// the vector extension and the embedding column.
func (r *RegulationRepository) EnsureSchema(ctx context.Context, embeddingDims int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/seed startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS regulation_chunks (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	pref_label TEXT NOT NULL DEFAULT '',
	search_vector TSVECTOR NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_regulation_chunks_search ON regulation_chunks USING GIN (search_vector);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if embeddingDims > 0 {
		if _, err := tx.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
			return fmt.Errorf("create vector extension: %w", err)
		}
		ddl := fmt.Sprintf(`ALTER TABLE regulation_chunks ADD COLUMN IF NOT EXISTS embedding vector(%d)`, embeddingDims)
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("add embedding column: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RegulationRepository) SearchText(ctx context.Context, query string, limit int) ([]domain.TextHit, error) {
	tsQuery := buildTSQuery(query)
	if tsQuery == "" || limit <= 0 {
		return []domain.TextHit{}, nil
	}

	var hits []domain.TextHit
	err := r.execute(ctx, "postgres.search_text", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, `
SELECT id, text, pref_label, ts_rank(search_vector, q, $3) AS score
FROM regulation_chunks, CAST($1 AS tsquery) AS q
WHERE search_vector @@ q
ORDER BY score DESC, id
LIMIT $2
`, tsQuery, limit, tsRankNormalization)
		if err != nil {
			return fmt.Errorf("query regulation chunks: %w", err)
		}
		hits, err = scanHits(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// SearchByVector ranks chunks by cosine similarity. Chunks without an
// embedding are never returned.
func (r *RegulationRepository) SearchByVector(ctx context.Context, queryVector []float32, limit int) ([]domain.TextHit, error) {
	if len(queryVector) == 0 || limit <= 0 {
		return []domain.TextHit{}, nil
	}

	var hits []domain.TextHit
	err := r.execute(ctx, "postgres.search_vector", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, `
SELECT id, text, pref_label, 1 - (embedding <=> $1) AS score
FROM regulation_chunks
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1, id
LIMIT $2
`, pgvector.NewVector(queryVector), limit)
		if err != nil {
			return fmt.Errorf("query regulation embeddings: %w", err)
		}
		hits, err = scanHits(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (r *RegulationRepository) UpsertChunk(ctx context.Context, chunk domain.RegulationChunk) error {
	if strings.TrimSpace(chunk.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert chunk", fmt.Errorf("chunk id is required"))
	}
	tokens := buildTSVector(chunk.PrefLabel + " " + chunk.Text)

	if len(chunk.Embedding) == 0 {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO regulation_chunks (id, text, pref_label, search_vector, updated_at)
VALUES ($1, $2, $3, CAST($4 AS tsvector), $5)
ON CONFLICT (id) DO UPDATE
SET text = EXCLUDED.text, pref_label = EXCLUDED.pref_label, search_vector = EXCLUDED.search_vector, updated_at = EXCLUDED.updated_at
`, chunk.ID, chunk.Text, chunk.PrefLabel, tokens, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("upsert regulation chunk: %w", err)
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO regulation_chunks (id, text, pref_label, search_vector, updated_at, embedding)
VALUES ($1, $2, $3, CAST($4 AS tsvector), $5, $6)
ON CONFLICT (id) DO UPDATE
SET text = EXCLUDED.text, pref_label = EXCLUDED.pref_label, search_vector = EXCLUDED.search_vector,
	updated_at = EXCLUDED.updated_at, embedding = EXCLUDED.embedding
`, chunk.ID, chunk.Text, chunk.PrefLabel, tokens, time.Now().UTC(), pgvector.NewVector(chunk.Embedding))
	if err != nil {
		return fmt.Errorf("upsert regulation chunk with embedding: %w", err)
	}
	return nil
}

func (r *RegulationRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return domain.WrapError(domain.ErrUnavailable, "postgres ping", err)
	}
	return nil
}

func (r *RegulationRepository) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	var err error
	if r.executor != nil {
		err = r.executor.Execute(ctx, operation, call, classifyPostgresError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func scanHits(rows *sql.Rows) ([]domain.TextHit, error) {
	defer rows.Close()

	hits := make([]domain.TextHit, 0)
	for rows.Next() {
		var hit domain.TextHit
		if err := rows.Scan(&hit.ID, &hit.Text, &hit.Label, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan regulation chunk: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regulation chunks: %w", err)
	}
	return hits, nil
}
