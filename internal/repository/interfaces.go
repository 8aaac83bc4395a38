// Package repository はデータ永続化のインターフェースと実装を定義する。
//
// 永続化は2層になっている。EntityTable は (PartitionKey, RowKey) をキーに
// 任意のプロパティを保持する汎用エンティティテーブルで、PostgreSQL・Azure Table Storage・
// メモリの実装を持つ。RecordStore はその上でFeedRecordの保存・期間検索・期限切れ削除を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/layofflens/internal/model"
)

// Entity は汎用エンティティテーブルの1行を表す。
type Entity struct {
	PartitionKey string
	RowKey       string
	Timestamp    time.Time // ストア側の最終更新時刻。書き込み時は無視される
	Properties   map[string]any
}

// UpdateMode はUpsertの既存エンティティに対する書き込み方法を表す。
type UpdateMode int

const (
	// UpdateModeMerge は指定されたプロパティのみを既存エンティティへ上書きする。
	UpdateModeMerge UpdateMode = iota
	// UpdateModeReplace は既存エンティティのプロパティを全て置き換える。
	UpdateModeReplace
)

// ScanFilter はScanの絞り込み条件。
// PartitionKey はストア側で、Match はクライアント側で評価される。
type ScanFilter struct {
	PartitionKey string
	Match        func(Entity) bool
}

// EntityTable は汎用キー・バリュー型エンティティストアのインターフェース。
type EntityTable interface {
	// CreateIfAbsent はテーブルが存在しなければ作成する。既に存在する場合はエラーにしない。
	CreateIfAbsent(ctx context.Context) error

	// Upsert は (PartitionKey, RowKey) をキーにエンティティを作成または更新する。
	Upsert(ctx context.Context, entity Entity, mode UpdateMode) error

	// Scan は条件に一致するエンティティを全件返す。順序は保証しない。
	Scan(ctx context.Context, filter ScanFilter) ([]Entity, error)

	// Delete は指定キーのエンティティを削除する。存在しない場合はエラーにしない。
	Delete(ctx context.Context, partitionKey, rowKey string) error
}

// RecordReader はレコード一覧・集計の読み出しに必要な操作のインターフェース。
type RecordReader interface {
	// QueryRange は since 以降（since自身を含む）のレコードを日付降順、
	// 同日時はスコア降順で返す。since が nil の場合は全件を返す。
	QueryRange(ctx context.Context, since *time.Time) ([]model.FeedRecord, error)
}

// RecordWriter は取り込み処理に必要な書き込み操作のインターフェース。
type RecordWriter interface {
	// EnsureTable は保存先テーブルの存在を保証する。
	EnsureTable(ctx context.Context) error

	// Upsert はレコードをマージ上書きで保存する。
	Upsert(ctx context.Context, rec *model.FeedRecord) error
}

// RecordPurger は保持期間を過ぎたレコードの削除操作のインターフェース。
type RecordPurger interface {
	// PurgeOlderThan は date < now - retentionDays のレコードを削除し、削除件数を返す。
	PurgeOlderThan(ctx context.Context, retentionDays int) (int, error)
}
