package app

import (
	"sort"

	"contest-service/internal/domain"
)

// Listing defaults mirror the API's page size bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// NormalizeQuery clamps offset and limit into the accepted range.
func NormalizeQuery(q domain.ListQuery) domain.ListQuery {
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}

func paginate[T any](items []T, q domain.ListQuery) domain.Page[T] {
	q = NormalizeQuery(q)
	total := len(items)
	from := q.Offset
	if from > total {
		from = total
	}
	to := from + q.Limit
	if to > total {
		to = total
	}
	return domain.NewPage(items[from:to], total, q)
}

func sortListings(items []domain.ContestListing) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].StartTime.Equal(items[j].StartTime) {
			return items[i].StartTime.Before(items[j].StartTime)
		}
		return items[i].ID < items[j].ID
	})
}

func sortCompleted(items []domain.CompletedContest) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].SubmittedAt.Equal(items[j].SubmittedAt) {
			return items[i].SubmittedAt.After(items[j].SubmittedAt)
		}
		return items[i].ID < items[j].ID
	})
}
