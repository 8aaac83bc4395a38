// Package worker はバックグラウンドジョブのcronスケジューリングを提供する。
// 取り込みサイクル（ingest）と保持期間切れの削除（cleanup）をここから定期実行する。
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc はスケジュール実行される処理。
type JobFunc func(ctx context.Context) error

// Scheduler はcron式に従ってジョブを実行する。
// 同一ジョブの実行が重なった場合は後発をスキップする。
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	jobs   int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// locがnilの場合はUTCを使う。
func NewScheduler(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := &cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    context.Background(),
	}
}

// Add はジョブを登録する。specは5フィールドの標準cron式。
func (s *Scheduler) Add(name, spec string, job JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runJob(s.ctx, name, job)
	})
	if err != nil {
		return fmt.Errorf("cron式が不正です: job=%s spec=%q: %w", name, spec, err)
	}
	s.jobs++
	s.logger.Info("ジョブを登録しました",
		slog.String("job", name),
		slog.String("schedule", spec),
	)
	return nil
}

// Jobs は登録済みジョブ数を返す。
func (s *Scheduler) Jobs() int {
	return s.jobs
}

// Start はスケジューラを起動し、コンテキストがキャンセルされるまでブロックする。
// ジョブにはctxが渡される。停止時は実行中のジョブの完了を待つ。
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("スケジューラを開始しました", slog.Int("job_count", s.jobs))

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("スケジューラを停止しました")
}

// RunNow はスケジュールとは別にジョブを即時実行する。起動直後の初回実行に使う。
func (s *Scheduler) RunNow(ctx context.Context, name string, job JobFunc) {
	s.runJob(ctx, name, job)
}

func (s *Scheduler) runJob(ctx context.Context, name string, job JobFunc) {
	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("ジョブの実行に失敗しました",
			slog.String("job", name),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
		return
	}
	s.logger.Info("ジョブが完了しました",
		slog.String("job", name),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// cronLogger はcron.Loggerをslogに橋渡しする。
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)...)
}
