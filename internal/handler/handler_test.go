package handler

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/hitoshi/layofflens/internal/item"
	"github.com/hitoshi/layofflens/internal/model"
)

// --- モック定義 ---

// mockItemService はItemServiceInterfaceのモック実装。
type mockItemService struct {
	listItemsFn func(ctx context.Context, p item.ListParams) (*item.ListResult, error)
}

func (m *mockItemService) ListItems(ctx context.Context, p item.ListParams) (*item.ListResult, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx, p)
	}
	return &item.ListResult{Items: []model.FeedRecord{}}, nil
}

// mockAnalyticsService はAnalyticsServiceInterfaceのモック実装。
type mockAnalyticsService struct {
	getAnalyticsFn func(ctx context.Context, days int) (*model.Stats, error)
}

func (m *mockAnalyticsService) GetAnalytics(ctx context.Context, days int) (*model.Stats, error) {
	if m.getAnalyticsFn != nil {
		return m.getAnalyticsFn(ctx, days)
	}
	return model.EmptyStats(), nil
}

// mockIngester はIngesterのモック実装。
type mockIngester struct {
	runCycleFn func(ctx context.Context) (int, error)
}

func (m *mockIngester) RunCycle(ctx context.Context) (int, error) {
	if m.runCycleFn != nil {
		return m.runCycleFn(ctx)
	}
	return 0, nil
}

// mockPurger はPurgerのモック実装。
type mockPurger struct {
	runFn func(ctx context.Context, retentionDays int) (int, error)
}

func (m *mockPurger) Run(ctx context.Context, retentionDays int) (int, error) {
	if m.runFn != nil {
		return m.runFn(ctx, retentionDays)
	}
	return 0, nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
