package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/iabalyuk/freightbot/storage"
)

const reportWindow = 24 * time.Hour

// StatsSource is the part of the store the worker reads.
type StatsSource interface {
	Stats(ctx context.Context, since time.Time) (storage.Stats, error)
}

// StatsWorker periodically posts aggregate statistics to the operators.
type StatsWorker struct {
	source   StatsSource
	notifyCh chan<- string
	schedule string
	log      zerolog.Logger
	now      func() time.Time

	cron         *cron.Cron
	isRunning    bool
	runningMutex sync.Mutex
}

// NewStatsWorkerConfig represents the configuration for the stats worker.
type NewStatsWorkerConfig struct {
	Source   StatsSource
	NotifyCh chan<- string
	// Schedule is a standard five-field cron expression.
	Schedule string
	Logger   *zerolog.Logger
	Now      func() time.Time
}

// NewStatsWorker creates a worker; it fails on a malformed schedule.
func NewStatsWorker(config NewStatsWorkerConfig) (*StatsWorker, error) {
	w := &StatsWorker{
		source:   config.Source,
		notifyCh: config.NotifyCh,
		schedule: config.Schedule,
		log:      zerolog.Nop(),
		now:      config.Now,
		cron:     cron.New(),
	}
	if config.Logger != nil {
		w.log = config.Logger.With().Str("component", "stats_worker").Logger()
	}
	if w.now == nil {
		w.now = time.Now
	}
	if _, err := w.cron.AddFunc(w.schedule, w.tick); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", w.schedule, err)
	}
	return w, nil
}

// Start starts the schedule.
func (w *StatsWorker) Start() {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()

	if w.isRunning {
		return
	}
	w.cron.Start()
	w.isRunning = true
	w.log.Info().Str("schedule", w.schedule).Msg("stats worker started")
}

// Stop stops the schedule and waits for a running report to finish.
func (w *StatsWorker) Stop() {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()

	if !w.isRunning {
		return
	}
	<-w.cron.Stop().Done()
	w.isRunning = false
	w.log.Info().Msg("stats worker stopped")
}

func (w *StatsWorker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.ForceReport(ctx); err != nil {
		w.log.Error().Err(err).Msg("stats report failed")
	}
}

// ForceReport collects the statistics now and queues the report.
func (w *StatsWorker) ForceReport(ctx context.Context) error {
	st, err := w.source.Stats(ctx, w.now().Add(-reportWindow))
	if err != nil {
		return fmt.Errorf("failed to collect stats: %w", err)
	}
	w.log.Info().
		Int("users", st.TotalUsers).
		Int("new_users", st.NewUsers).
		Int("cargo", st.Cargo).
		Int("trucks", st.Trucks).
		Msg("stats collected")

	select {
	case w.notifyCh <- FormatReport(st):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("report not delivered: %w", ctx.Err())
	}
}

// FormatReport renders statistics for operators.
func FormatReport(st storage.Stats) string {
	var b strings.Builder
	b.WriteString("📊 Статистика\n")
	fmt.Fprintf(&b, "Всего пользователей: %d\n", st.TotalUsers)
	fmt.Fprintf(&b, "Новых за 24 часа: %d\n", st.NewUsers)
	fmt.Fprintf(&b, "Грузов: %d\n", st.Cargo)
	fmt.Fprintf(&b, "ТС: %d", st.Trucks)
	return b.String()
}
