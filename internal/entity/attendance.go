package entity

import (
	"time"
)

type Affiliation string

const (
	AffiliationFaculty  Affiliation = "faculty"
	AffiliationStudent  Affiliation = "student"
	AffiliationStaff    Affiliation = "staff"
	AffiliationExternal Affiliation = "external"
)

// IsValid проверяет, что affiliation входит в фиксированный перечень
func (a Affiliation) IsValid() bool {
	switch a {
	case AffiliationFaculty, AffiliationStudent, AffiliationStaff, AffiliationExternal:
		return true
	}
	return false
}

type Attendance struct {
	ID                  int64       `json:"id" db:"id"`
	EventID             int64       `json:"event_id" db:"event_id"`
	FirstName           string      `json:"first_name" db:"first_name"`
	LastName            string      `json:"last_name" db:"last_name"`
	Email               string      `json:"email" db:"email"`
	PhoneNumber         string      `json:"phone_number" db:"phone_number"`
	Affiliation         Affiliation `json:"affiliation" db:"affiliation"`
	AurakID             string      `json:"aurak_id,omitempty" db:"aurak_id"`
	Department          string      `json:"department,omitempty" db:"department"`
	Organization        string      `json:"organization,omitempty" db:"organization"`
	Position            string      `json:"position,omitempty" db:"position"`
	DietaryRestrictions string      `json:"dietary_restrictions,omitempty" db:"dietary_restrictions"`
	SpecialRequests     string      `json:"special_requests,omitempty" db:"special_requests"`
	Barcode             string      `json:"barcode" db:"barcode"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	IsPresent           bool        `json:"is_present" db:"is_present"`
	CheckinTime         *time.Time  `json:"checkin_time" db:"checkin_time"`
	Notified            bool        `json:"notified" db:"notified"`
}

// FullName возвращает полное имя участника
func (a *Attendance) FullName() string {
	return a.FirstName + " " + a.LastName
}

// CheckInResult описывает исход сканирования штрих-кода на входе.
// Повторное сканирование возвращает тот же payload, что и первое:
// оператор на входе не должен получать ошибку при повторном скане.
type CheckInResult struct {
	Attendance     *Attendance `json:"-"`
	Name           string      `json:"name"`
	Role           Affiliation `json:"role"`
	CheckinTime    time.Time   `json:"checkin_time"`
	AlreadyPresent bool        `json:"-"`
}

// EventAttendanceStats представляет статистику посещаемости мероприятия
type EventAttendanceStats struct {
	EventID         int64            `json:"event_id"`
	TotalRegistered int64            `json:"total_registered"`
	TotalPresent    int64            `json:"total_present"`
	TotalNotified   int64            `json:"total_notified"`
	ByAffiliation   map[string]int64 `json:"by_affiliation"`
}
