package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reviewhub/pkg/logger"
	"reviewhub/pkg/metrics"
	"reviewhub/reviews-service/internal/app/reviews/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	metricsService      = "reviews-service"
	reviewsCollection   = "reviews"
	countersCollection  = "counters"
	reviewsSequenceName = "reviews"
)

type mongoReviewStore struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

// NewReviewRepository создает хранилище отзывов в MongoDB
// Уникальный индекс по user_id обеспечивает один отзыв на пользователя даже при гонках
func NewReviewRepository(ctx context.Context, db *mongo.Database) (ReviewStore, error) {
	collection := db.Collection(reviewsCollection)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetName("user_id_unique").SetUnique(true),
	})
	if err != nil {
		// Без уникального индекса запускаться нельзя
		return nil, fmt.Errorf("failed to create unique index on user_id: %w", err)
	}

	// Индекс по liked_by ускоряет выборку лайков пользователя, не обязателен
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "liked_by", Value: 1}},
		Options: options.Index().SetName("liked_by_idx"),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create index on liked_by")
	}

	return &mongoReviewStore{
		collection: collection,
		counters:   db.Collection(countersCollection),
	}, nil
}

func (r *mongoReviewStore) Snapshot(ctx context.Context) ([]entity.Review, error) {
	timer := metrics.NewDbTimer(metricsService, metrics.DbOpSelect, reviewsCollection)
	defer timer.ObserveDuration()

	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		metrics.RecordDbError(metricsService, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := make([]entity.Review, 0)
	if err := cursor.All(ctx, &reviews); err != nil {
		metrics.RecordDbError(metricsService, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}

	for i := range reviews {
		if reviews[i].LikedBy == nil {
			reviews[i].LikedBy = []int64{}
		}
	}

	return reviews, nil
}

// Create создает новый отзыв, ID берётся из последовательности в коллекции counters
func (r *mongoReviewStore) Create(ctx context.Context, review *entity.Review) error {
	timer := metrics.NewDbTimer(metricsService, metrics.DbOpInsert, reviewsCollection)
	defer timer.ObserveDuration()

	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}

	review.ID = id
	// MongoDB хранит время с точностью до миллисекунд
	review.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	review.LikedBy = []int64{}

	if _, err := r.collection.InsertOne(ctx, review); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrReviewExists
		}
		metrics.RecordDbError(metricsService, metrics.DbOpInsert)
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

func (r *mongoReviewStore) DeleteByUser(ctx context.Context, userID int64) (*entity.Review, error) {
	timer := metrics.NewDbTimer(metricsService, metrics.DbOpDelete, reviewsCollection)
	defer timer.ObserveDuration()

	var deleted entity.Review
	err := r.collection.FindOneAndDelete(ctx, bson.M{"user_id": userID}).Decode(&deleted)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReviewNotFound
		}
		metrics.RecordDbError(metricsService, metrics.DbOpDelete)
		return nil, fmt.Errorf("failed to delete review: %w", err)
	}

	return &deleted, nil
}

func (r *mongoReviewStore) Like(ctx context.Context, reviewID, userID int64) (entity.LikeResult, error) {
	return r.toggle(ctx, reviewID, userID, "$addToSet")
}

func (r *mongoReviewStore) Unlike(ctx context.Context, reviewID, userID int64) (entity.LikeResult, error) {
	return r.toggle(ctx, reviewID, userID, "$pull")
}

// toggle применяет $addToSet/$pull одной атомарной операцией над документом
// Фильтр исключает автора, поэтому самолайк не может попасть в liked_by
func (r *mongoReviewStore) toggle(ctx context.Context, reviewID, userID int64, op string) (entity.LikeResult, error) {
	timer := metrics.NewDbTimer(metricsService, metrics.DbOpUpdate, reviewsCollection)
	defer timer.ObserveDuration()

	filter := bson.M{"_id": reviewID, "user_id": bson.M{"$ne": userID}}
	update := bson.M{op: bson.M{"liked_by": userID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before entity.Review
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.LikeResult{}, r.explainMiss(ctx, reviewID)
		}
		metrics.RecordDbError(metricsService, metrics.DbOpUpdate)
		return entity.LikeResult{}, fmt.Errorf("failed to update likes: %w", err)
	}

	wasLiked := before.IsLikedBy(userID)
	likes := before.Likes()
	adding := op == "$addToSet"

	changed := wasLiked != adding
	if changed {
		if adding {
			likes++
		} else {
			likes--
		}
	}

	return entity.LikeResult{
		AuthorID: before.UserID,
		Likes:    likes,
		Changed:  changed,
	}, nil
}

// explainMiss различает "нет такого отзыва" и "автор лайкает свой отзыв"
func (r *mongoReviewStore) explainMiss(ctx context.Context, reviewID int64) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": reviewID}, options.Count().SetLimit(1))
	if err != nil {
		metrics.RecordDbError(metricsService, metrics.DbOpSelect)
		return fmt.Errorf("failed to check review: %w", err)
	}
	if count == 0 {
		return ErrReviewNotFound
	}
	return ErrSelfLike
}

func (r *mongoReviewStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": reviewsSequenceName},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		metrics.RecordDbError(metricsService, metrics.DbOpUpdate)
		return 0, fmt.Errorf("failed to allocate review id: %w", err)
	}

	return counter.Seq, nil
}
