package db

import (
	"time"

	"gorm.io/gorm"
)

// firstLoginChunkSize bounds the id list of a single first-login query so
// signup attribution never issues one unbounded IN clause.
const firstLoginChunkSize = 500

// LoginRecord is the narrow projection of a LoginEvent the aggregator works on.
type LoginRecord struct {
	UserID    uint
	IP        string
	CreatedAt time.Time
}

// Store exposes the range-scoped, read-only event queries behind the
// dashboard. It never mutates the event tables.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SignupTimes returns the creation timestamps of accounts created in [start, end).
func (s *Store) SignupTimes(start, end time.Time) ([]time.Time, error) {
	var times []time.Time
	err := s.db.Model(&User{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at").
		Pluck("created_at", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}

// SignupUserIDs returns the ids of accounts created in [start, end).
func (s *Store) SignupUserIDs(start, end time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&User{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// LoginsInRange returns login tuples in [start, end), narrow columns only.
func (s *Store) LoginsInRange(start, end time.Time) ([]LoginRecord, error) {
	var records []LoginRecord
	err := s.db.Model(&LoginEvent{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Select("user_id", "ip", "created_at").
		Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FirstLoginIPs returns, per user id, the IP of that user's earliest login
// event. Users with no logins are absent from the result. The id list is
// queried in chunks of firstLoginChunkSize.
func (s *Store) FirstLoginIPs(userIDs []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(userIDs))
	for len(userIDs) > 0 {
		chunk := userIDs
		if len(chunk) > firstLoginChunkSize {
			chunk = chunk[:firstLoginChunkSize]
		}
		userIDs = userIDs[len(chunk):]

		type row struct {
			UserID uint
			IP     string
		}
		var rows []row
		err := s.db.Raw(
			`SELECT DISTINCT ON (user_id) user_id, ip FROM login_events WHERE user_id IN ? ORDER BY user_id, created_at ASC`,
			chunk,
		).Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.UserID] = r.IP
		}
	}
	return out, nil
}

// LeadEventsByKind returns up to limit raw lead events, newest first.
// An empty kind means both chat and contact events.
func (s *Store) LeadEventsByKind(kind string, limit int) ([]LeadEvent, error) {
	q := s.db.Model(&LeadEvent{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var events []LeadEvent
	if err := q.Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
