package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/painvault/internal/errors"
)

// Delivery is one row of the delivery log. The log is diagnostic only:
// failed rows are never replayed.
type Delivery struct {
	ID           string `json:"id"`
	CreatedAt    int64  `json:"created_at"`
	Domain       string `json:"domain"`
	Source       string `json:"source"`
	CampaignID   string `json:"campaign"`
	PageURL      string `json:"url,omitempty"`
	PageTitle    string `json:"page_title,omitempty"`
	SelectedText string `json:"selected_text"`
	OK           bool   `json:"ok"`
	HTTPStatus   int    `json:"http_status,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// InsertDelivery appends a row to the delivery log.
func InsertDelivery(ctx context.Context, db *sql.DB, d *Delivery) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO deliveries (
			id, created_at, domain, source, campaign_id, page_url, page_title,
			selected_text, ok, http_status, error_code, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, d.CreatedAt, d.Domain, d.Source, d.CampaignID,
		toNullString(d.PageURL), toNullString(d.PageTitle), d.SelectedText,
		boolToInt(d.OK), toNullInt(d.HTTPStatus),
		toNullString(d.ErrorCode), toNullString(d.ErrorMessage),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListDeliveries returns log rows newest first.
func ListDeliveries(ctx context.Context, db *sql.DB, limit, offset int, failedOnly bool) ([]Delivery, int, error) {
	where := ""
	if failedOnly {
		where = " WHERE ok = 0"
	}

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deliveries"+where).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, created_at, domain, source, campaign_id, page_url, page_title,
			selected_text, ok, http_status, error_code, error_message
		FROM deliveries`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	items := make([]Delivery, 0)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return items, total, nil
}

// GetDelivery retrieves a single log row by its ULID.
func GetDelivery(ctx context.Context, db *sql.DB, id string) (*Delivery, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, created_at, domain, source, campaign_id, page_url, page_title,
			selected_text, ok, http_status, error_code, error_message
		FROM deliveries WHERE id = ?
	`, id)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		return nil, errors.NewNotFound(id)
	}
	d, err := scanDelivery(rows)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return d, nil
}

// PruneDeliveries deletes log rows created before the given Unix time.
func PruneDeliveries(ctx context.Context, db *sql.DB, before int64) (int, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM deliveries WHERE created_at < ?", before)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

func scanDelivery(rows *sql.Rows) (*Delivery, error) {
	var (
		d          Delivery
		pageURL    sql.NullString
		pageTitle  sql.NullString
		ok         int
		httpStatus sql.NullInt64
		errCode    sql.NullString
		errMsg     sql.NullString
	)
	err := rows.Scan(
		&d.ID, &d.CreatedAt, &d.Domain, &d.Source, &d.CampaignID, &pageURL, &pageTitle,
		&d.SelectedText, &ok, &httpStatus, &errCode, &errMsg,
	)
	if err != nil {
		return nil, err
	}
	d.PageURL = pageURL.String
	d.PageTitle = pageTitle.String
	d.OK = ok != 0
	d.HTTPStatus = int(httpStatus.Int64)
	d.ErrorCode = errCode.String
	d.ErrorMessage = errMsg.String
	return &d, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// toNullInt maps 0 to NULL.
func toNullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
