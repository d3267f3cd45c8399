// Package state persists last-observed member snapshots so groups can
// report last-known state across daemon restarts.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dokzlo13/lightgroupd/internal/group"
)

// Store persists member snapshots keyed by group and device
type Store struct {
	db *sql.DB
}

// New creates a new Store using the provided database connection
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save upserts the snapshot for one group member
func (s *Store) Save(groupName, deviceID string, snap group.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO member_snapshot (group_name, device_id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(group_name, device_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, groupName, deviceID, string(payload), time.Now().UTC().Unix())
	return err
}

// LoadGroup returns the persisted snapshots for all members of a group
func (s *Store) LoadGroup(groupName string) (map[string]group.Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT device_id, payload FROM member_snapshot WHERE group_name = ?
	`, groupName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make(map[string]group.Snapshot)
	for rows.Next() {
		var deviceID, payload string
		if err := rows.Scan(&deviceID, &payload); err != nil {
			return nil, err
		}

		var snap group.Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", deviceID, err)
		}
		snapshots[deviceID] = snap
	}

	return snapshots, rows.Err()
}

// Groups returns the names of all groups with persisted snapshots
func (s *Store) Groups() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT group_name FROM member_snapshot`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteGroup removes all persisted snapshots for a group. Used when a
// group disappears from configuration.
func (s *Store) DeleteGroup(groupName string) error {
	_, err := s.db.Exec(`DELETE FROM member_snapshot WHERE group_name = ?`, groupName)
	return err
}
