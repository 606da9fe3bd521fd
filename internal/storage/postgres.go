package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/greeter/internal/config"
	"github.com/your-org/greeter/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
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

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the greetings and visitors tables if they don't exist.
// Safe to call on every startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS greetings (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			greeting TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS visitors (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			image_path TEXT NOT NULL,
			descriptor vector(512),
			last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			visit_count INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_greetings_timestamp ON greetings (timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_last_seen ON visitors (last_seen DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Greetings ---

func (s *PostgresStore) CreateGreeting(ctx context.Context, name, greeting string, ts time.Time) (*models.Greeting, error) {
	g := &models.Greeting{
		Name:      name,
		Greeting:  greeting,
		Timestamp: ts,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO greetings (name, greeting, timestamp) VALUES ($1, $2, $3) RETURNING id`,
		g.Name, g.Greeting, g.Timestamp,
	).Scan(&g.ID)
	if err != nil {
		return nil, fmt.Errorf("create greeting: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) ListGreetings(ctx context.Context, limit int) ([]models.Greeting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, greeting, timestamp FROM greetings ORDER BY timestamp DESC, id DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list greetings: %w", err)
	}
	defer rows.Close()

	var greetings []models.Greeting
	for rows.Next() {
		var g models.Greeting
		if err := rows.Scan(&g.ID, &g.Name, &g.Greeting, &g.Timestamp); err != nil {
			return nil, fmt.Errorf("scan greeting: %w", err)
		}
		greetings = append(greetings, g)
	}
	return greetings, nil
}

func (s *PostgresStore) CountGreetings(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM greetings`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count greetings: %w", err)
	}
	return total, nil
}

// --- Visitors ---

func (s *PostgresStore) CreateVisitor(ctx context.Context, imageKey string, descriptor []float32) (*models.Visitor, error) {
	v := &models.Visitor{
		ImagePath:  imageKey,
		Descriptor: descriptor,
		VisitCount: 1,
	}
	var vec *pgvector.Vector
	if len(descriptor) > 0 {
		pv := pgvector.NewVector(descriptor)
		vec = &pv
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO visitors (image_path, descriptor, last_seen) VALUES ($1, $2, NOW())
		 RETURNING id, last_seen`,
		v.ImagePath, vec,
	).Scan(&v.ID, &v.LastSeen)
	if err != nil {
		return nil, fmt.Errorf("create visitor: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) GetVisitor(ctx context.Context, id int64) (*models.Visitor, error) {
	v := &models.Visitor{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, image_path, last_seen, visit_count FROM visitors WHERE id = $1`, id,
	).Scan(&v.ID, &v.Name, &v.ImagePath, &v.LastSeen, &v.VisitCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get visitor: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListVisitors(ctx context.Context, limit int) ([]models.Visitor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, image_path, last_seen, visit_count FROM visitors
		 ORDER BY last_seen DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	var visitors []models.Visitor
	for rows.Next() {
		var v models.Visitor
		if err := rows.Scan(&v.ID, &v.Name, &v.ImagePath, &v.LastSeen, &v.VisitCount); err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		visitors = append(visitors, v)
	}
	return visitors, nil
}

// RecordSighting marks a returning visit: bumps visit_count, refreshes
// last_seen and points image_path at the newest stored image.
func (s *PostgresStore) RecordSighting(ctx context.Context, id int64, imageKey string) (*models.Visitor, error) {
	v := &models.Visitor{ID: id}
	err := s.pool.QueryRow(ctx,
		`UPDATE visitors SET last_seen = NOW(), visit_count = visit_count + 1, image_path = $2
		 WHERE id = $1
		 RETURNING name, image_path, last_seen, visit_count`,
		id, imageKey,
	).Scan(&v.Name, &v.ImagePath, &v.LastSeen, &v.VisitCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record sighting: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) SetVisitorName(ctx context.Context, id int64, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE visitors SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("set visitor name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
