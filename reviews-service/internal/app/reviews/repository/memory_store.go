package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"reviewhub/reviews-service/internal/app/reviews/entity"
)

type reviewRecord struct {
	review  entity.Review
	likedBy map[int64]struct{}
}

// memoryReviewStore - хранилище в памяти процесса
// Один RWMutex на весь субъект: мутации выполняются по одной, чтения идут параллельно
type memoryReviewStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*reviewRecord
	byUser map[int64]int64 // userID -> reviewID, обеспечивает один отзыв на пользователя
	now    func() time.Time
}

// NewMemoryReviewStore создает хранилище отзывов в памяти
func NewMemoryReviewStore() ReviewStore {
	return newMemoryReviewStore(time.Now)
}

func newMemoryReviewStore(now func() time.Time) *memoryReviewStore {
	return &memoryReviewStore{
		byID:   make(map[int64]*reviewRecord),
		byUser: make(map[int64]int64),
		now:    now,
	}
}

func (s *memoryReviewStore) Snapshot(ctx context.Context) ([]entity.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	reviews := make([]entity.Review, 0, len(s.byID))
	for _, rec := range s.byID {
		reviews = append(reviews, rec.snapshot())
	}
	return reviews, nil
}

func (s *memoryReviewStore) Create(ctx context.Context, review *entity.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[review.UserID]; exists {
		return ErrReviewExists
	}

	s.nextID++
	review.ID = s.nextID
	review.CreatedAt = s.now()
	review.LikedBy = []int64{}

	s.byID[review.ID] = &reviewRecord{
		review:  *review,
		likedBy: make(map[int64]struct{}),
	}
	s.byUser[review.UserID] = review.ID

	return nil
}

func (s *memoryReviewStore) DeleteByUser(ctx context.Context, userID int64) (*entity.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reviewID, ok := s.byUser[userID]
	if !ok {
		return nil, ErrReviewNotFound
	}

	// Лайки на отзыв живут в самой записи и исчезают вместе с ней
	deleted := s.byID[reviewID].snapshot()
	delete(s.byID, reviewID)
	delete(s.byUser, userID)

	return &deleted, nil
}

func (s *memoryReviewStore) Like(ctx context.Context, reviewID, userID int64) (entity.LikeResult, error) {
	return s.toggle(ctx, reviewID, userID, true)
}

func (s *memoryReviewStore) Unlike(ctx context.Context, reviewID, userID int64) (entity.LikeResult, error) {
	return s.toggle(ctx, reviewID, userID, false)
}

func (s *memoryReviewStore) toggle(ctx context.Context, reviewID, userID int64, like bool) (entity.LikeResult, error) {
	if err := ctx.Err(); err != nil {
		return entity.LikeResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[reviewID]
	if !ok {
		return entity.LikeResult{}, ErrReviewNotFound
	}
	if rec.review.UserID == userID {
		return entity.LikeResult{}, ErrSelfLike
	}

	_, liked := rec.likedBy[userID]
	changed := liked != like
	if changed {
		if like {
			rec.likedBy[userID] = struct{}{}
		} else {
			delete(rec.likedBy, userID)
		}
	}

	return entity.LikeResult{
		AuthorID: rec.review.UserID,
		Likes:    len(rec.likedBy),
		Changed:  changed,
	}, nil
}

// snapshot копирует запись, LikedBy отсортирован для детерминированного вывода
func (r *reviewRecord) snapshot() entity.Review {
	review := r.review
	review.LikedBy = make([]int64, 0, len(r.likedBy))
	for id := range r.likedBy {
		review.LikedBy = append(review.LikedBy, id)
	}
	sort.Slice(review.LikedBy, func(i, j int) bool { return review.LikedBy[i] < review.LikedBy[j] })
	return review
}
