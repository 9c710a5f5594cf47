package processor

import (
	"context"
	"fmt"

	"reviewhub/pkg/logger"
	"reviewhub/pkg/metrics"
	"reviewhub/reviews-service/internal/app/reviews/entity"

	"github.com/robfig/cron/v3"
)

// StatsSource - источник агрегатов, реализуется ReviewService
type StatsSource interface {
	Stats(ctx context.Context) (entity.AggregateStats, error)
}

// StatsRefresher по расписанию пересчитывает gauge-метрики среднего рейтинга и количества отзывов
type StatsRefresher struct {
	cron   *cron.Cron
	source StatsSource
}

func NewStatsRefresher(source StatsSource) *StatsRefresher {
	c := cron.New(cron.WithLogger(cron.PrintfLogger(logger.Printer())))

	return &StatsRefresher{
		cron:   c,
		source: source,
	}
}

// Start регистрирует задачу и сразу выполняет первый пересчет
func (r *StatsRefresher) Start(ctx context.Context, schedule string) error {
	logger.Info().Str("schedule", schedule).Msg("Starting stats refresher")

	if _, err := r.cron.AddFunc(schedule, func() { r.Refresh(ctx) }); err != nil {
		return fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}

	r.cron.Start()
	r.Refresh(ctx)

	return nil
}

// Refresh выполняет один пересчет, ошибка только логируется
func (r *StatsRefresher) Refresh(ctx context.Context) {
	stats, err := r.source.Stats(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to refresh review stats")
		return
	}

	metrics.ReviewsAverageRating.Set(stats.AverageRating)
	metrics.ReviewsCount.Set(float64(stats.ReviewsCount))

	logger.Debug().
		Float64("average_rating", stats.AverageRating).
		Int("reviews_count", stats.ReviewsCount).
		Msg("Review stats refreshed")
}

func (r *StatsRefresher) Stop() {
	logger.Info().Msg("Stopping stats refresher...")
	ctx := r.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("Stats refresher stopped")
}

func (r *StatsRefresher) GetEntries() []cron.Entry {
	return r.cron.Entries()
}
