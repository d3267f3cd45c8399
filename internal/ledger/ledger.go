// Package ledger provides an append-only history of dispatched group
// commands for auditing.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dokzlo13/lightgroupd/internal/group"
)

// Entry represents one recorded group command
type Entry struct {
	ID        int64
	CommandID string
	GroupName string
	Command   string
	Status    string
	Targets   int
	Failed    []string // device IDs whose member command failed
	Timestamp time.Time
}

// Ledger records group command outcomes
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends one dispatched command and its outcome. Returns the
// generated command ID.
func (l *Ledger) Record(groupName string, cmd group.Command, out group.Outcome) (string, error) {
	commandID := uuid.NewString()

	var failedJSON []byte
	if len(out.Failed) > 0 {
		ids := make([]string, len(out.Failed))
		for i, f := range out.Failed {
			ids[i] = f.DeviceID
		}
		var err error
		failedJSON, err = json.Marshal(ids)
		if err != nil {
			return "", fmt.Errorf("failed to marshal failed members: %w", err)
		}
	}

	_, err := l.db.Exec(`
		INSERT INTO command_ledger (command_id, group_name, command, status, targets, failed, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, commandID, groupName, cmd.Type.String(), out.Status.String(), len(out.Targets), string(failedJSON), time.Now().UTC().Unix())
	if err != nil {
		return "", err
	}

	return commandID, nil
}

// Recent returns the latest entries for a group, newest first.
func (l *Ledger) Recent(groupName string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, command_id, group_name, command, status, targets, failed, timestamp
		FROM command_ledger
		WHERE group_name = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, groupName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var failedStr sql.NullString
		var timestamp int64

		if err := rows.Scan(&entry.ID, &entry.CommandID, &entry.GroupName, &entry.Command,
			&entry.Status, &entry.Targets, &failedStr, &timestamp); err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if failedStr.Valid && failedStr.String != "" {
			if err := json.Unmarshal([]byte(failedStr.String), &entry.Failed); err != nil {
				return nil, fmt.Errorf("failed to unmarshal failed members: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM command_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
