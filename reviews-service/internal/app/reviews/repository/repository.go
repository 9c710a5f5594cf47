package repository

import (
	"context"
	"errors"
	"time"

	"reviewhub/reviews-service/internal/app/reviews/entity"
)

var (
	// Стандартные ошибки репозитория для обработки в service layer
	ErrReviewNotFound = errors.New("review not found")
	ErrReviewExists   = errors.New("user already has a review")
	ErrSelfLike       = errors.New("author cannot like own review")
)

// ReviewStore хранит отзывы одного субъекта и отношения лайков
// Мутации атомарны относительно друг друга, Snapshot не видит частично применённых изменений
type ReviewStore interface {
	// Snapshot возвращает копию всех отзывов на один момент времени, порядок не определён
	Snapshot(ctx context.Context) ([]entity.Review, error)
	// Create присваивает ID и CreatedAt; ErrReviewExists если у пользователя уже есть отзыв
	Create(ctx context.Context, review *entity.Review) error
	// DeleteByUser удаляет отзыв пользователя вместе со всеми лайками на нём
	DeleteByUser(ctx context.Context, userID int64) (*entity.Review, error)
	Like(ctx context.Context, reviewID, userID int64) (entity.LikeResult, error)
	Unlike(ctx context.Context, reviewID, userID int64) (entity.LikeResult, error)
}

// UserDirectory отдаёт имена пользователей для отображения в списке
type UserDirectory interface {
	// Usernames возвращает имена известных пользователей, неизвестные id в результат не попадают
	Usernames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// SessionStore хранит привязку user_id к IP клиента
type SessionStore interface {
	Bind(ctx context.Context, userID int64, ip string, ttl time.Duration) error
	Verify(ctx context.Context, userID int64, ip string) (bool, error)
	Close() error
}
