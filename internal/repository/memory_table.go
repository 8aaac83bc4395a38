package repository

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryEntityTable はプロセス内メモリに保持するEntityTable実装。
// テストおよびストレージ未接続でのローカル動作確認に使う。
type MemoryEntityTable struct {
	mu      sync.RWMutex
	created bool
	rows    map[string]map[string]Entity // partitionKey -> rowKey -> entity
	now     func() time.Time
}

var _ EntityTable = (*MemoryEntityTable)(nil)

// NewMemoryEntityTable は空のMemoryEntityTableを生成する。
func NewMemoryEntityTable() *MemoryEntityTable {
	return &MemoryEntityTable{
		rows: make(map[string]map[string]Entity),
		now:  time.Now,
	}
}

// CreateIfAbsent はテーブル作成済みとして記録する。
func (m *MemoryEntityTable) CreateIfAbsent(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = true
	return nil
}

// Created はCreateIfAbsentが呼ばれたかどうかを返す。
func (m *MemoryEntityTable) Created() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.created
}

// Upsert はエンティティを作成または更新する。プロパティはコピーして保持する。
func (m *MemoryEntityTable) Upsert(_ context.Context, entity Entity, mode UpdateMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	part, ok := m.rows[entity.PartitionKey]
	if !ok {
		part = make(map[string]Entity)
		m.rows[entity.PartitionKey] = part
	}

	props := make(map[string]any, len(entity.Properties))
	if existing, ok := part[entity.RowKey]; ok && mode == UpdateModeMerge {
		maps.Copy(props, existing.Properties)
	}
	maps.Copy(props, entity.Properties)

	part[entity.RowKey] = Entity{
		PartitionKey: entity.PartitionKey,
		RowKey:       entity.RowKey,
		Timestamp:    m.now().UTC(),
		Properties:   props,
	}
	return nil
}

// Scan は条件に一致するエンティティのコピーを返す。
func (m *MemoryEntityTable) Scan(_ context.Context, filter ScanFilter) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entity
	for pk, part := range m.rows {
		if filter.PartitionKey != "" && pk != filter.PartitionKey {
			continue
		}
		for _, e := range part {
			c := Entity{
				PartitionKey: e.PartitionKey,
				RowKey:       e.RowKey,
				Timestamp:    e.Timestamp,
				Properties:   maps.Clone(e.Properties),
			}
			if filter.Match != nil && !filter.Match(c) {
				continue
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// Delete は指定キーのエンティティを削除する。
func (m *MemoryEntityTable) Delete(_ context.Context, partitionKey, rowKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if part, ok := m.rows[partitionKey]; ok {
		delete(part, rowKey)
	}
	return nil
}

// Len は保持しているエンティティの総数を返す。
func (m *MemoryEntityTable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, part := range m.rows {
		n += len(part)
	}
	return n
}
