package repository

import (
	"context"
	"log/slog"

	"dealstream/internal/supa"
	"dealstream/pkg/model"
)

// ValidationConfig holds configurable limits for repository input.
type ValidationConfig struct {
	MaxPageLimit int // Maximum allowed page size (default: 100)
}

// DefaultValidationConfig returns the default validation configuration.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{MaxPageLimit: 100}
}

var validationConfig = DefaultValidationConfig()

// SetValidationConfig updates the validation configuration.
func SetValidationConfig(cfg ValidationConfig) {
	if cfg.MaxPageLimit <= 0 {
		cfg.MaxPageLimit = DefaultValidationConfig().MaxPageLimit
	}
	validationConfig = cfg
}

// findPage runs the paired data fetch and row count for one table.
// apply adds the filter predicate to both queries, so the count is
// always taken against the identical filter set in the same logical
// operation. A failed count degrades the result instead of failing the
// whole operation; a failed data fetch is a hard error.
func findPage[T any](ctx context.Context, ch *supa.Channel, table string, page model.PageRequest, order model.Order, apply func(*supa.QueryBuilder)) (model.PageResult[T], error) {
	var zero model.PageResult[T]
	if err := page.Validate(validationConfig.MaxPageLimit); err != nil {
		return zero, err
	}

	dataQuery := ch.From(table)
	if apply != nil {
		apply(dataQuery)
	}
	dataQuery.Order(order.Column, order.Descending)
	dataQuery.Range(page.Offset(), page.Limit)

	var rows []T
	if err := dataQuery.Execute(ctx, &rows); err != nil {
		return zero, err
	}

	countQuery := ch.From(table)
	if apply != nil {
		apply(countQuery)
	}
	total, err := countQuery.Count(ctx)
	if err != nil {
		slog.Warn("row count failed, returning degraded page",
			"table", table,
			"page", page.Page,
			"rows", len(rows),
			"error", err,
		)
		return model.DegradedPageResult(rows, page.Page, page.Limit), nil
	}

	return model.NewPageResult(rows, total, page.Page, page.Limit), nil
}

// findOne fetches a single row by the applied filter set, mapping the
// zero-row case to NotFound.
func findOne[T any](ctx context.Context, ch *supa.Channel, table string, apply func(*supa.QueryBuilder)) (*T, error) {
	query := ch.From(table).Single()
	if apply != nil {
		apply(query)
	}
	var row T
	if err := query.Execute(ctx, &row); err != nil {
		return nil, err
	}
	return &row, nil
}
