package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/painvault/internal/db"
	"github.com/hpungsan/painvault/internal/errors"
)

// ListDeliveriesInput contains parameters for the ListDeliveries operation.
type ListDeliveriesInput struct {
	Limit      int
	Offset     int
	FailedOnly bool
}

// ListDeliveriesOutput contains the result of the ListDeliveries operation.
type ListDeliveriesOutput struct {
	Items      []db.Delivery `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// ListDeliveries returns the delivery log, newest first.
func ListDeliveries(ctx context.Context, database *sql.DB, input ListDeliveriesInput) (*ListDeliveriesOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	items, total, err := db.ListDeliveries(ctx, database, limit, offset, input.FailedOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []db.Delivery{}
	}

	return &ListDeliveriesOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}

// GetDelivery returns one delivery log row by id.
func GetDelivery(ctx context.Context, database *sql.DB, id string) (*db.Delivery, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	return db.GetDelivery(ctx, database, id)
}
