package service

import (
	"fmt"
	"time"
)

// FormatTimeAgo возвращает относительную метку времени для списка отзывов
// Начиная с 30 дней показывается абсолютная дата
func FormatTimeAgo(createdAt, now time.Time) string {
	diff := now.Sub(createdAt)
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff < time.Minute:
		return "только что"
	case diff < time.Hour:
		n := int(diff / time.Minute)
		return fmt.Sprintf("%d %s назад", n, plural(n, "минуту", "минуты", "минут"))
	case diff < 24*time.Hour:
		n := int(diff / time.Hour)
		return fmt.Sprintf("%d %s назад", n, plural(n, "час", "часа", "часов"))
	case diff < 30*24*time.Hour:
		n := int(diff / (24 * time.Hour))
		return fmt.Sprintf("%d %s назад", n, plural(n, "день", "дня", "дней"))
	default:
		return createdAt.In(now.Location()).Format("02.01.2006 в 15:04")
	}
}

func plural(n int, one, few, many string) string {
	n100 := n % 100
	n10 := n % 10
	switch {
	case n100 >= 11 && n100 <= 14:
		return many
	case n10 == 1:
		return one
	case n10 >= 2 && n10 <= 4:
		return few
	default:
		return many
	}
}
