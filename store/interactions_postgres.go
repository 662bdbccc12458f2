package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rushteam/hybridrec/core"
)

// 表结构约定：
//
//	items(id text, title text, description text, category text, tags text[], attributes jsonb)
//	users(id text, prefer_tags text[], attributes jsonb)
//	interactions(user_id text, item_id text, type text, weight float8, rating float8 null, created_at timestamptz)
const (
	selectItemsSQL = `SELECT id, title, coalesce(description, ''), coalesce(category, ''),
		coalesce(tags, '{}'), coalesce(attributes, '{}'::jsonb) FROM items ORDER BY id`
	selectUsersSQL = `SELECT id, coalesce(prefer_tags, '{}'), coalesce(attributes, '{}'::jsonb)
		FROM users ORDER BY id`
	selectInteractionsSQL = `SELECT user_id, item_id, type, weight, rating, created_at
		FROM interactions ORDER BY created_at, user_id, item_id`
	insertInteractionSQL = `INSERT INTO interactions (user_id, item_id, type, weight, rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

// PostgresInteractionStore 从 PostgreSQL 读取训练数据，并持久化新交互。
type PostgresInteractionStore struct {
	db *pgxpool.Pool
}

// NewPostgresInteractionStore 连接数据库。
func NewPostgresInteractionStore(ctx context.Context, dsn string) (*PostgresInteractionStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: postgres unreachable", err)
	}
	return &PostgresInteractionStore{db: pool}, nil
}

// NewPostgresInteractionStoreWithPool 复用已有连接池。
func NewPostgresInteractionStoreWithPool(pool *pgxpool.Pool) *PostgresInteractionStore {
	return &PostgresInteractionStore{db: pool}
}

func (s *PostgresInteractionStore) Name() string { return "postgres" }

func (s *PostgresInteractionStore) ListItems(ctx context.Context) ([]core.CatalogItem, error) {
	rows, err := s.db.Query(ctx, selectItemsSQL)
	if err != nil {
		return nil, unavailable("list items", err)
	}
	defer rows.Close()

	var out []core.CatalogItem
	for rows.Next() {
		var it core.CatalogItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.Category, &it.Tags, &it.Attributes); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PostgresInteractionStore) ListUsers(ctx context.Context) ([]core.UserProfile, error) {
	rows, err := s.db.Query(ctx, selectUsersSQL)
	if err != nil {
		return nil, unavailable("list users", err)
	}
	defer rows.Close()

	var out []core.UserProfile
	for rows.Next() {
		var u core.UserProfile
		if err := rows.Scan(&u.ID, &u.PreferTags, &u.Attributes); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresInteractionStore) ListInteractions(ctx context.Context) ([]core.Interaction, error) {
	rows, err := s.db.Query(ctx, selectInteractionsSQL)
	if err != nil {
		return nil, unavailable("list interactions", err)
	}
	defer rows.Close()

	var out []core.Interaction
	for rows.Next() {
		var (
			it  core.Interaction
			typ string
		)
		if err := rows.Scan(&it.UserID, &it.ItemID, &typ, &it.Weight, &it.Rating, &it.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		it.Type = core.InteractionType(typ)
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PostgresInteractionStore) AppendInteraction(ctx context.Context, it core.Interaction) error {
	_, err := s.db.Exec(ctx, insertInteractionSQL,
		it.UserID, it.ItemID, string(it.Type), it.Weight, it.Rating, it.Timestamp)
	if err != nil {
		return unavailable("append interaction", err)
	}
	return nil
}

func (s *PostgresInteractionStore) Close() {
	s.db.Close()
}

func unavailable(op string, err error) error {
	return core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: postgres "+op, err)
}

var (
	_ core.InteractionStore    = (*PostgresInteractionStore)(nil)
	_ core.InteractionRecorder = (*PostgresInteractionStore)(nil)
)
