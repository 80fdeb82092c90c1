package api

import (
	"context"

	"medrunner-portal/internal/model"
)

const pageSize = 20

// PageFunc fetches one page starting at token.
type PageFunc[T any] func(ctx context.Context, limit int, token string) (model.PaginatedResponse[T], error)

// FetchAllPaginated walks pages until the server stops returning a
// continuation token or at least limit items were collected (limit <= 0 means
// no limit).
func FetchAllPaginated[T any](ctx context.Context, fetch PageFunc[T], limit int) ([]T, error) {
	results := make([]T, 0)
	token := ""

	for {
		page, err := fetch(ctx, pageSize, token)
		if err != nil {
			return nil, err
		}
		results = append(results, page.Data...)

		token = page.PaginationToken
		if token == "" || (limit > 0 && len(results) >= limit) {
			return results, nil
		}
	}
}
