package service

import (
	"math"
	"sort"

	"reviewhub/reviews-service/internal/app/reviews/entity"
)

// sortAliases - допустимые значения параметра sort, popular отправляет старый клиент
var sortAliases = map[string]entity.SortKey{
	"":                           entity.SortNewest,
	string(entity.SortNewest):    entity.SortNewest,
	string(entity.SortOldest):    entity.SortOldest,
	string(entity.SortHighest):   entity.SortHighest,
	string(entity.SortLowest):    entity.SortLowest,
	string(entity.SortMostLiked): entity.SortMostLiked,
	"popular":                    entity.SortMostLiked,
}

// ParseSortKey переводит значение из запроса в SortKey
func ParseSortKey(raw string) (entity.SortKey, error) {
	key, ok := sortAliases[raw]
	if !ok {
		return "", newError(KindInvalidArgument, MsgUnknownSort, nil)
	}
	return key, nil
}

// sortReviews упорядочивает отзывы на месте, при равенстве ключа - по id по возрастанию
func sortReviews(reviews []entity.Review, key entity.SortKey) {
	less := func(a, b *entity.Review) (bool, bool) {
		switch key {
		case entity.SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt), true
			}
		case entity.SortHighest:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating, true
			}
		case entity.SortLowest:
			if a.Rating != b.Rating {
				return a.Rating < b.Rating, true
			}
		case entity.SortMostLiked:
			if a.Likes() != b.Likes() {
				return a.Likes() > b.Likes(), true
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt), true
			}
		}
		return false, false
	}

	sort.SliceStable(reviews, func(i, j int) bool {
		if result, decided := less(&reviews[i], &reviews[j]); decided {
			return result
		}
		return reviews[i].ID < reviews[j].ID
	})
}

// computeStats считает среднее с округлением до одного знака, 0 для пустого набора
func computeStats(reviews []entity.Review) entity.AggregateStats {
	if len(reviews) == 0 {
		return entity.AggregateStats{}
	}

	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	avg := float64(total) / float64(len(reviews))

	return entity.AggregateStats{
		AverageRating: math.Round(avg*10) / 10,
		ReviewsCount:  len(reviews),
	}
}
