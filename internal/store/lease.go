package store

import (
	"database/sql"
	"fmt"
	"time"
)

// LeaseStore hands out short-lived exclusive leases through the shared
// database. The generator takes a lease before producing instances so two
// concurrent runs cannot both do the work.
type LeaseStore struct {
	db *sql.DB
}

func NewLeaseStore(db *sql.DB) *LeaseStore {
	return &LeaseStore{db: db}
}

// Acquire attempts to take the named lease for owner until now+ttl. It
// returns false when another owner holds an unexpired lease. Expired
// leases are claimed in place.
func (s *LeaseStore) Acquire(key, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var currentOwner string
	var expiresAt time.Time
	err = tx.QueryRow(`SELECT owner, expires_at FROM generation_leases WHERE key = ?`, key).
		Scan(&currentOwner, &expiresAt)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.Exec(
			`INSERT INTO generation_leases (key, owner, expires_at) VALUES (?, ?, ?)`,
			key, owner, now.Add(ttl),
		); err != nil {
			return false, fmt.Errorf("insert lease: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("read lease: %w", err)
	case currentOwner != owner && expiresAt.After(now):
		return false, nil
	default:
		if _, err := tx.Exec(
			`UPDATE generation_leases SET owner = ?, expires_at = ? WHERE key = ?`,
			owner, now.Add(ttl), key,
		); err != nil {
			return false, fmt.Errorf("update lease: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Release frees the lease early. Only the current owner's release has any
// effect; a stale owner releasing is a no-op.
func (s *LeaseStore) Release(key, owner string) error {
	_, err := s.db.Exec(`DELETE FROM generation_leases WHERE key = ? AND owner = ?`, key, owner)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
