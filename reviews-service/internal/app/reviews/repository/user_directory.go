package repository

import (
	"context"
	"fmt"

	"reviewhub/pkg/metrics"

	"gorm.io/gorm"
)

// userRecord - проекция таблицы users основного сайта, сервис только читает её
type userRecord struct {
	ID       int64  `gorm:"column:id;primaryKey"`
	Username string `gorm:"column:username"`
}

func (userRecord) TableName() string {
	return "users"
}

// userDirectory реализует UserDirectory поверх PostgreSQL через GORM
type userDirectory struct {
	db *gorm.DB
}

// NewUserDirectory создает справочник пользователей
func NewUserDirectory(db *gorm.DB) UserDirectory {
	return &userDirectory{db: db}
}

// Usernames получает имена одним запросом WHERE id IN (...)
func (d *userDirectory) Usernames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	timer := metrics.NewDbTimer(metricsService, metrics.DbOpSelect, "users")
	defer timer.ObserveDuration()

	var rows []userRecord
	result := d.db.WithContext(ctx).
		Select("id", "username").
		Where("id IN ?", ids).
		Find(&rows)
	if result.Error != nil {
		metrics.RecordDbError(metricsService, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to get usernames: %w", result.Error)
	}

	for _, row := range rows {
		names[row.ID] = row.Username
	}

	return names, nil
}

// staticUserDirectory используется, когда PostgreSQL не настроен
type staticUserDirectory struct {
	names map[int64]string
}

func NewStaticUserDirectory(names map[int64]string) UserDirectory {
	copied := make(map[int64]string, len(names))
	for id, name := range names {
		copied[id] = name
	}
	return &staticUserDirectory{names: copied}
}

func (d *staticUserDirectory) Usernames(_ context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	for _, id := range ids {
		if name, ok := d.names[id]; ok {
			names[id] = name
		}
	}
	return names, nil
}
