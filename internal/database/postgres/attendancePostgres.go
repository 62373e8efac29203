package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aurak-emp/attendance/internal/entity"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type attendanceRepository struct {
	db *sql.DB
}

func NewAttendanceRepository(db *sql.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

// Create inserts a new attendance row. A duplicate barcode is reported as
// entity.ErrBarcodeExists so the caller can redraw and retry.
func (r *attendanceRepository) Create(ctx context.Context, attendance *entity.Attendance) error {
	query := `
		INSERT INTO attendances (
			event_id, first_name, last_name, email, phone_number, affiliation,
			aurak_id, department, organization, position,
			dietary_restrictions, special_requests,
			barcode, created_at, is_present, notified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, FALSE, FALSE)
		RETURNING id
	`

	now := time.Now()

	err := r.db.QueryRowContext(ctx, query,
		attendance.EventID,
		attendance.FirstName,
		attendance.LastName,
		attendance.Email,
		attendance.PhoneNumber,
		attendance.Affiliation,
		attendance.AurakID,
		attendance.Department,
		attendance.Organization,
		attendance.Position,
		attendance.DietaryRestrictions,
		attendance.SpecialRequests,
		attendance.Barcode,
		now,
	).Scan(&attendance.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return entity.ErrBarcodeExists
		}
		return fmt.Errorf("failed to create attendance: %v", err)
	}

	attendance.CreatedAt = now
	attendance.IsPresent = false
	attendance.CheckinTime = nil
	attendance.Notified = false

	return nil
}

func (r *attendanceRepository) GetByID(ctx context.Context, id int64) (*entity.Attendance, error) {
	query := `
		SELECT
			id, event_id, first_name, last_name, email, phone_number, affiliation,
			COALESCE(aurak_id, ''), COALESCE(department, ''), COALESCE(organization, ''), COALESCE(position, ''),
			COALESCE(dietary_restrictions, ''), COALESCE(special_requests, ''),
			barcode, created_at, is_present, checkin_time, notified
		FROM attendances
		WHERE id = $1
	`

	var attendance entity.Attendance
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&attendance.ID,
		&attendance.EventID,
		&attendance.FirstName,
		&attendance.LastName,
		&attendance.Email,
		&attendance.PhoneNumber,
		&attendance.Affiliation,
		&attendance.AurakID,
		&attendance.Department,
		&attendance.Organization,
		&attendance.Position,
		&attendance.DietaryRestrictions,
		&attendance.SpecialRequests,
		&attendance.Barcode,
		&attendance.CreatedAt,
		&attendance.IsPresent,
		&attendance.CheckinTime,
		&attendance.Notified,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrAttendeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance: %v", err)
	}

	return &attendance, nil
}

func (r *attendanceRepository) GetByBarcode(ctx context.Context, barcode string) (*entity.Attendance, error) {
	query := `
		SELECT
			id, event_id, first_name, last_name, email, phone_number, affiliation,
			COALESCE(aurak_id, ''), COALESCE(department, ''), COALESCE(organization, ''), COALESCE(position, ''),
			COALESCE(dietary_restrictions, ''), COALESCE(special_requests, ''),
			barcode, created_at, is_present, checkin_time, notified
		FROM attendances
		WHERE barcode = $1
	`

	var attendance entity.Attendance
	err := r.db.QueryRowContext(ctx, query, barcode).Scan(
		&attendance.ID,
		&attendance.EventID,
		&attendance.FirstName,
		&attendance.LastName,
		&attendance.Email,
		&attendance.PhoneNumber,
		&attendance.Affiliation,
		&attendance.AurakID,
		&attendance.Department,
		&attendance.Organization,
		&attendance.Position,
		&attendance.DietaryRestrictions,
		&attendance.SpecialRequests,
		&attendance.Barcode,
		&attendance.CreatedAt,
		&attendance.IsPresent,
		&attendance.CheckinTime,
		&attendance.Notified,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrAttendeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance by barcode: %v", err)
	}

	return &attendance, nil
}

// CheckInByBarcode performs the presence transition with transaction and row-level
// locking so that concurrent scans of the same barcode serialize to exactly one
// writer. The checkin_time written by the first scan is never overwritten.
func (r *attendanceRepository) CheckInByBarcode(ctx context.Context, barcode string, at time.Time) (*entity.Attendance, bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	// Блокируем строку по штрих-коду
	query := `
		SELECT
			id, event_id, first_name, last_name, email, phone_number, affiliation,
			COALESCE(aurak_id, ''), COALESCE(department, ''), COALESCE(organization, ''), COALESCE(position, ''),
			COALESCE(dietary_restrictions, ''), COALESCE(special_requests, ''),
			barcode, created_at, is_present, checkin_time, notified
		FROM attendances
		WHERE barcode = $1
		FOR UPDATE
	`

	var attendance entity.Attendance
	err = tx.QueryRowContext(ctx, query, barcode).Scan(
		&attendance.ID,
		&attendance.EventID,
		&attendance.FirstName,
		&attendance.LastName,
		&attendance.Email,
		&attendance.PhoneNumber,
		&attendance.Affiliation,
		&attendance.AurakID,
		&attendance.Department,
		&attendance.Organization,
		&attendance.Position,
		&attendance.DietaryRestrictions,
		&attendance.SpecialRequests,
		&attendance.Barcode,
		&attendance.CreatedAt,
		&attendance.IsPresent,
		&attendance.CheckinTime,
		&attendance.Notified,
	)

	if err == sql.ErrNoRows {
		return nil, false, entity.ErrAttendeeNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock attendance row: %v", err)
	}

	// Повторный скан: отметка уже стоит, время не трогаем
	if attendance.IsPresent {
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %v", err)
		}
		return &attendance, true, nil
	}

	query = `UPDATE attendances SET is_present = TRUE, checkin_time = $1 WHERE id = $2 AND is_present = FALSE`
	result, err := tx.ExecContext(ctx, query, at, attendance.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update checkin time: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return nil, false, entity.ErrAttendeeNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %v", err)
	}

	attendance.IsPresent = true
	attendance.CheckinTime = &at

	return &attendance, false, nil
}

// GetPresentByEvent retrieves checked-in attendees for an event
func (r *attendanceRepository) GetPresentByEvent(ctx context.Context, eventID int64) ([]*entity.Attendance, error) {
	query := `
		SELECT
			id, event_id, first_name, last_name, email, phone_number, affiliation,
			COALESCE(aurak_id, ''), COALESCE(department, ''), COALESCE(organization, ''), COALESCE(position, ''),
			COALESCE(dietary_restrictions, ''), COALESCE(special_requests, ''),
			barcode, created_at, is_present, checkin_time, notified
		FROM attendances
		WHERE event_id = $1 AND is_present
		ORDER BY checkin_time ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query present attendees: %v", err)
	}
	defer rows.Close()

	return scanAttendances(rows)
}

// GetByEventID retrieves every attendance for an event regardless of presence
func (r *attendanceRepository) GetByEventID(ctx context.Context, eventID int64) ([]*entity.Attendance, error) {
	query := `
		SELECT
			id, event_id, first_name, last_name, email, phone_number, affiliation,
			COALESCE(aurak_id, ''), COALESCE(department, ''), COALESCE(organization, ''), COALESCE(position, ''),
			COALESCE(dietary_restrictions, ''), COALESCE(special_requests, ''),
			barcode, created_at, is_present, checkin_time, notified
		FROM attendances
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendances by event: %v", err)
	}
	defer rows.Close()

	return scanAttendances(rows)
}

func (r *attendanceRepository) MarkNotified(ctx context.Context, id int64) error {
	query := `UPDATE attendances SET notified = TRUE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark attendance notified: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return entity.ErrAttendeeNotFound
	}

	return nil
}

// GetUnnotified retrieves registrations whose barcode e-mail has not been
// delivered yet, oldest first
func (r *attendanceRepository) GetUnnotified(ctx context.Context, before time.Time, limit int) ([]*entity.Attendance, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT
			id, event_id, first_name, last_name, email, phone_number, affiliation,
			COALESCE(aurak_id, ''), COALESCE(department, ''), COALESCE(organization, ''), COALESCE(position, ''),
			COALESCE(dietary_restrictions, ''), COALESCE(special_requests, ''),
			barcode, created_at, is_present, checkin_time, notified
		FROM attendances
		WHERE NOT notified AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unnotified attendances: %v", err)
	}
	defer rows.Close()

	return scanAttendances(rows)
}

// GetEventAttendanceStats returns registration/presence counters for an event
func (r *attendanceRepository) GetEventAttendanceStats(ctx context.Context, eventID int64) (*entity.EventAttendanceStats, error) {
	query := `
		SELECT
			COUNT(*) as total_registered,
			COALESCE(SUM(CASE WHEN is_present THEN 1 ELSE 0 END), 0) as total_present,
			COALESCE(SUM(CASE WHEN notified THEN 1 ELSE 0 END), 0) as total_notified
		FROM attendances
		WHERE event_id = $1
	`

	stats := &entity.EventAttendanceStats{
		EventID:       eventID,
		ByAffiliation: make(map[string]int64),
	}

	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&stats.TotalRegistered,
		&stats.TotalPresent,
		&stats.TotalNotified,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance stats: %v", err)
	}

	query = `
		SELECT affiliation, COUNT(*)
		FROM attendances
		WHERE event_id = $1
		GROUP BY affiliation
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliation breakdown: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var affiliation string
		var count int64
		if err := rows.Scan(&affiliation, &count); err != nil {
			return nil, fmt.Errorf("failed to scan affiliation count: %v", err)
		}
		stats.ByAffiliation[affiliation] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating affiliation counts: %v", err)
	}

	return stats, nil
}

func scanAttendances(rows *sql.Rows) ([]*entity.Attendance, error) {
	var attendances []*entity.Attendance
	for rows.Next() {
		var attendance entity.Attendance
		err := rows.Scan(
			&attendance.ID,
			&attendance.EventID,
			&attendance.FirstName,
			&attendance.LastName,
			&attendance.Email,
			&attendance.PhoneNumber,
			&attendance.Affiliation,
			&attendance.AurakID,
			&attendance.Department,
			&attendance.Organization,
			&attendance.Position,
			&attendance.DietaryRestrictions,
			&attendance.SpecialRequests,
			&attendance.Barcode,
			&attendance.CreatedAt,
			&attendance.IsPresent,
			&attendance.CheckinTime,
			&attendance.Notified,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %v", err)
		}
		attendances = append(attendances, &attendance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendances: %v", err)
	}

	return attendances, nil
}
