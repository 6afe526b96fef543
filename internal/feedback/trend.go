package feedback

import (
	"math"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// TrendPoint is the Confusion Index for one calendar day.
type TrendPoint struct {
	Date           string  `json:"date"`
	ConfusionIndex float64 `json:"confusion_index"`
}

type dayCount struct {
	negative int
	total    int
}

// DailyTrend buckets records by calendar day in loc and returns the share of
// negative emotions per day, rounded to three decimals and sorted by date.
// A nil loc means time.Local.
func DailyTrend(records []Record, loc *time.Location) []TrendPoint {
	if loc == nil {
		loc = time.Local
	}

	days := make(map[string]*dayCount)
	for _, r := range records {
		day := time.Unix(r.Timestamp, 0).In(loc).Format(dateLayout)
		c, ok := days[day]
		if !ok {
			c = &dayCount{}
			days[day] = c
		}
		c.total++
		if r.Emotion.Negative() {
			c.negative++
		}
	}

	points := make([]TrendPoint, 0, len(days))
	for day, c := range days {
		ratio := float64(c.negative) / float64(c.total)
		points = append(points, TrendPoint{
			Date:           day,
			ConfusionIndex: math.Round(ratio*1000) / 1000,
		})
	}

	// ISO dates sort lexicographically in chronological order.
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	return points
}

// Summary is the emotion distribution shown on the dashboard.
type Summary struct {
	Total  int             `json:"total"`
	Counts map[Emotion]int `json:"counts"`
}

// Summarize counts records per emotion. Every label is present in Counts.
func Summarize(records []Record) Summary {
	s := Summary{Counts: make(map[Emotion]int, len(emotions))}
	for _, e := range emotions {
		s.Counts[e] = 0
	}
	for _, r := range records {
		s.Total++
		s.Counts[r.Emotion]++
	}
	return s
}
