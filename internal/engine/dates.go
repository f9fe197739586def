package engine

import (
	"fmt"
	"time"

	"trackx/backend/internal/model"
)

const day = 24 * time.Hour

// TrendDays is the width of the weekly completion trend.
const TrendDays = 7

// DaysBetween returns the number of calendar days from a to b. It is
// negative when b is before a.
func DaysBetween(a, b model.Date) (int, error) {
	from, err := a.Time(time.UTC)
	if err != nil {
		return 0, err
	}
	to, err := b.Time(time.UTC)
	if err != nil {
		return 0, err
	}
	return int(to.Sub(from) / day), nil
}

// dayOffset is the number of whole days between t and now, clamped at 0
// for timestamps slightly ahead of now.
func dayOffset(now, t time.Time) int {
	elapsed := now.Sub(t)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / day)
}

func trendLabel(offset int) string {
	switch offset {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	default:
		return fmt.Sprintf("%dd ago", offset)
	}
}
