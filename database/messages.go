package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"matatu-feedback/models"
)

// RecordMessage stores an audit row for an outgoing channel message
func (d *Database) RecordMessage(ctx context.Context, msg models.ChannelMessage) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO channel_messages (channel, direction, recipient, body, transport_id, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		msg.Channel, msg.Direction, msg.Recipient, msg.Body, msg.TransportID, msg.Read, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record %s message: %w", msg.Channel, err)
	}
	return nil
}

// GetContactPhone returns the phone number of a registered user
func (d *Database) GetContactPhone(ctx context.Context, userID string) (string, error) {
	var phone sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT phone FROM users WHERE id = ?", userID).Scan(&phone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get phone for user %s: %w", userID, err)
	}
	if !phone.Valid || phone.String == "" {
		return "", ErrNotFound
	}
	return phone.String, nil
}
