package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// PostgresEntityTable はPostgreSQLを使用したEntityTable実装。
// プロパティはJSONB列に保持し、マージ更新はJSONBの連結（||）で行う。
type PostgresEntityTable struct {
	db    *sql.DB
	table string // クォート済みテーブル名
	psql  sq.StatementBuilderType
}

var _ EntityTable = (*PostgresEntityTable)(nil)

// NewPostgresEntityTable はPostgresEntityTableを生成する。
// tableNameはSQL識別子としてクォートされる。
func NewPostgresEntityTable(db *sql.DB, tableName string) *PostgresEntityTable {
	return &PostgresEntityTable{
		db:    db,
		table: pq.QuoteIdentifier(tableName),
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CreateIfAbsent はテーブルが存在しなければ作成する。
func (t *PostgresEntityTable) CreateIfAbsent(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		partition_key TEXT NOT NULL,
		row_key TEXT NOT NULL,
		properties JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (partition_key, row_key)
	)`, t.table)

	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("テーブル %s の作成に失敗しました: %w", t.table, err)
	}
	return nil
}

// Upsert はINSERT ... ON CONFLICTでエンティティを作成または更新する。
func (t *PostgresEntityTable) Upsert(ctx context.Context, entity Entity, mode UpdateMode) error {
	props := entity.Properties
	if props == nil {
		props = map[string]any{}
	}
	body, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("プロパティのエンコードに失敗しました: %w", err)
	}

	conflict := "ON CONFLICT (partition_key, row_key) DO UPDATE SET properties = " +
		t.table + ".properties || EXCLUDED.properties, updated_at = EXCLUDED.updated_at"
	if mode == UpdateModeReplace {
		conflict = "ON CONFLICT (partition_key, row_key) DO UPDATE SET properties = EXCLUDED.properties, updated_at = EXCLUDED.updated_at"
	}

	query, args, err := t.psql.
		Insert(t.table).
		Columns("partition_key", "row_key", "properties", "updated_at").
		Values(entity.PartitionKey, entity.RowKey, string(body), sq.Expr("NOW()")).
		Suffix(conflict).
		ToSql()
	if err != nil {
		return fmt.Errorf("UPSERT文の生成に失敗しました: %w", err)
	}

	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("エンティティのUPSERTに失敗しました: %w", err)
	}
	return nil
}

// Scan は条件に一致するエンティティを全件返す。
func (t *PostgresEntityTable) Scan(ctx context.Context, filter ScanFilter) ([]Entity, error) {
	builder := t.psql.
		Select("partition_key", "row_key", "properties", "updated_at").
		From(t.table)
	if filter.PartitionKey != "" {
		builder = builder.Where(sq.Eq{"partition_key": filter.PartitionKey})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("SELECT文の生成に失敗しました: %w", err)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("エンティティの走査に失敗しました: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var (
			e         Entity
			raw       []byte
			updatedAt time.Time
		)
		if err := rows.Scan(&e.PartitionKey, &e.RowKey, &raw, &updatedAt); err != nil {
			return nil, fmt.Errorf("エンティティの読み取りに失敗しました: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Properties); err != nil {
			return nil, fmt.Errorf("プロパティのデコードに失敗しました: row_key=%s: %w", e.RowKey, err)
		}
		e.Timestamp = updatedAt.UTC()

		if filter.Match != nil && !filter.Match(e) {
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エンティティの走査中にエラーが発生しました: %w", err)
	}
	return out, nil
}

// Delete は指定キーのエンティティを削除する。
func (t *PostgresEntityTable) Delete(ctx context.Context, partitionKey, rowKey string) error {
	query, args, err := t.psql.
		Delete(t.table).
		Where(sq.And{
			sq.Eq{"partition_key": partitionKey},
			sq.Eq{"row_key": rowKey},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("DELETE文の生成に失敗しました: %w", err)
	}

	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("エンティティの削除に失敗しました: %w", err)
	}
	return nil
}
