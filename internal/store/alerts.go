package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/shop-memory/internal/model"
)

const alertColumns = `id, user_id, watch_item_id, alert_type, old_price, new_price, reasoning,
	requires_approval, user_response, created_at, responded_at`

// ListAlerts returns the user's alerts, newest first, optionally filtered by
// response status.
func (s *SQLiteStore) ListAlerts(ctx context.Context, userID string, status model.AlertResponse) ([]model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = ?`
	args := []interface{}{userID}
	if status != "" {
		if !model.ValidAlertResponses[status] {
			return nil, fmt.Errorf("alert status %q: %w", status, ErrInvalidItem)
		}
		query += ` AND user_response = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list alerts", err)
	}
	defer rows.Close()

	alerts := []model.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, unavailable("list alerts", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list alerts", err)
	}
	return alerts, nil
}

// RespondAlert records a terminal response on a pending alert owned by the
// user. Responding twice fails with ErrAlreadyResolved.
func (s *SQLiteStore) RespondAlert(ctx context.Context, userID, alertID string, response model.AlertResponse) (*model.Alert, error) {
	if !model.TerminalResponses[response] {
		return nil, fmt.Errorf("alert response %q: %w", response, ErrInvalidItem)
	}

	var updated *model.Alert
	err := s.withTx(ctx, "respond alert", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE alerts SET user_response = ?, responded_at = ?
			 WHERE id = ? AND user_id = ? AND user_response = ?`,
			string(response), formatTime(time.Now()), alertID, userID, string(model.ResponsePending))
		if err != nil {
			return unavailable("respond alert", err)
		}

		a, err := getAlert(ctx, tx, alertID)
		if err != nil {
			return err
		}
		if a.UserID != userID {
			return notFound("alert", alertID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("alert %q is %s: %w", alertID, a.UserResponse, ErrAlreadyResolved)
		}
		updated = a
		return nil
	})
	return updated, err
}

func getAlert(ctx context.Context, q queryer, id string) (*model.Alert, error) {
	row := q.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("alert", id)
	}
	if err != nil {
		return nil, unavailable("get alert", err)
	}
	return a, nil
}

func scanAlert(sc scanner) (*model.Alert, error) {
	var a model.Alert
	var alertType, response, createdAt string
	var oldPrice sql.NullFloat64
	var approval int
	var respondedAt sql.NullString

	err := sc.Scan(&a.ID, &a.UserID, &a.WatchItemID, &alertType, &oldPrice, &a.NewPrice, &a.Reasoning,
		&approval, &response, &createdAt, &respondedAt)
	if err != nil {
		return nil, err
	}

	a.AlertType = model.AlertType(alertType)
	a.OldPrice = floatPtr(oldPrice)
	a.RequiresApproval = approval == 1
	a.UserResponse = model.AlertResponse(response)
	a.CreatedAt = parseTime(createdAt)
	a.RespondedAt = parseNullTime(respondedAt)
	return &a, nil
}
