package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// azuriteConnectionString はAzuriteエミュレータの既定アカウントへの接続文字列。
const azuriteConnectionString = "DefaultEndpointsProtocol=http;" +
	"AccountName=devstoreaccount1;" +
	"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
	"TableEndpoint=http://127.0.0.1:10002/devstoreaccount1;"

// AzureEntityTable はAzure Table Storageを使用したEntityTable実装。
type AzureEntityTable struct {
	client *aztables.Client
}

var _ EntityTable = (*AzureEntityTable)(nil)

// NewAzureEntityTable は接続文字列からAzureEntityTableを生成する。
// "UseDevelopmentStorage=true" を含む場合はローカルのAzuriteに接続する。
// 接続文字列が不正な場合はエラーを返す。
func NewAzureEntityTable(connectionString, tableName string) (*AzureEntityTable, error) {
	connStr := normalizeConnectionString(connectionString)
	if connStr == "" {
		return nil, errors.New("AZURE_STORAGE_CONNECTION_STRING が空です")
	}
	if !strings.Contains(connStr, "AccountName=") || !strings.Contains(connStr, "AccountKey=") {
		return nil, errors.New("Azure Storage の接続文字列に AccountName または AccountKey が含まれていません")
	}

	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return nil, fmt.Errorf("Azure Table クライアントの生成に失敗しました: %w", err)
	}
	return &AzureEntityTable{client: svc.NewClient(tableName)}, nil
}

func normalizeConnectionString(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "UseDevelopmentStorage=true") {
		return azuriteConnectionString
	}
	return s
}

// CreateIfAbsent はテーブルを作成する。409 Conflict（既に存在）は成功として扱う。
func (t *AzureEntityTable) CreateIfAbsent(ctx context.Context) error {
	_, err := t.client.CreateTable(ctx, nil)
	if err == nil || hasStatus(err, http.StatusConflict) {
		return nil
	}
	return fmt.Errorf("Azure テーブルの作成に失敗しました: %w", err)
}

// Upsert はエンティティを作成または更新する。
func (t *AzureEntityTable) Upsert(ctx context.Context, entity Entity, mode UpdateMode) error {
	body, err := marshalAzureEntity(entity)
	if err != nil {
		return err
	}

	updateMode := aztables.UpdateModeMerge
	if mode == UpdateModeReplace {
		updateMode = aztables.UpdateModeReplace
	}

	if _, err := t.client.UpsertEntity(ctx, body, &aztables.UpsertEntityOptions{UpdateMode: updateMode}); err != nil {
		return fmt.Errorf("Azure エンティティのUPSERTに失敗しました: %w", err)
	}
	return nil
}

// Scan はページャで全ページを読み出し、条件に一致するエンティティを返す。
func (t *AzureEntityTable) Scan(ctx context.Context, filter ScanFilter) ([]Entity, error) {
	opts := &aztables.ListEntitiesOptions{}
	if filter.PartitionKey != "" {
		f := partitionFilter(filter.PartitionKey)
		opts.Filter = &f
	}

	var out []Entity
	pager := t.client.NewListEntitiesPager(opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("Azure エンティティの走査に失敗しました: %w", err)
		}
		for _, raw := range page.Entities {
			e, err := unmarshalAzureEntity(raw)
			if err != nil {
				return nil, err
			}
			if filter.Match != nil && !filter.Match(e) {
				continue
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// Delete は指定キーのエンティティを削除する。404 Not Found は成功として扱う。
func (t *AzureEntityTable) Delete(ctx context.Context, partitionKey, rowKey string) error {
	_, err := t.client.DeleteEntity(ctx, partitionKey, rowKey, nil)
	if err == nil || hasStatus(err, http.StatusNotFound) {
		return nil
	}
	return fmt.Errorf("Azure エンティティの削除に失敗しました: %w", err)
}

func hasStatus(err error, status int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == status
}

// partitionFilter はODataのパーティション絞り込み式を返す。文字列中の ' は '' にエスケープする。
func partitionFilter(pk string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(pk, "'", "''") + "'"
}

// marshalAzureEntity はエンティティをTable StorageのJSON表現に変換する。
func marshalAzureEntity(e Entity) ([]byte, error) {
	doc := make(map[string]any, len(e.Properties)+2)
	for k, v := range e.Properties {
		doc[k] = v
	}
	doc["PartitionKey"] = e.PartitionKey
	doc["RowKey"] = e.RowKey

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("Azure エンティティのエンコードに失敗しました: %w", err)
	}
	return body, nil
}

// unmarshalAzureEntity はTable StorageのJSON表現をエンティティに変換する。
// システムプロパティとodataメタデータはPropertiesから除外する。
func unmarshalAzureEntity(raw []byte) (Entity, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Entity{}, fmt.Errorf("Azure エンティティのデコードに失敗しました: %w", err)
	}

	e := Entity{Properties: make(map[string]any, len(doc))}
	for k, v := range doc {
		switch {
		case k == "PartitionKey":
			e.PartitionKey, _ = v.(string)
		case k == "RowKey":
			e.RowKey, _ = v.(string)
		case k == "Timestamp":
			if s, ok := v.(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
					e.Timestamp = ts.UTC()
				}
			}
		case strings.HasPrefix(k, "odata.") || strings.Contains(k, "@odata."):
			// メタデータ
		default:
			e.Properties[k] = v
		}
	}
	return e, nil
}
