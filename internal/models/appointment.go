package models

import "time"

// RequestStatus is the lifecycle state of a booking request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether the value is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// AppointmentRequest is a student's ask for a meeting slot with a
// faculty member. Faculty is stored as a display name to match the
// historical data shape.
type AppointmentRequest struct {
	ID              string        `db:"id" json:"id"`
	StudentName     string        `db:"student_name" json:"student_name"`
	Faculty         string        `db:"faculty" json:"faculty"`
	Date            string        `db:"date" json:"date"`
	Time            string        `db:"time" json:"time"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	Reason          string        `db:"reason" json:"reason"`
	Status          RequestStatus `db:"status" json:"status"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// ApprovedAppointment is the denormalized copy materialized exactly once
// when a request transitions to approved. Rows are never mutated or
// deleted by this system.
type ApprovedAppointment struct {
	ID              string        `db:"id" json:"id"`
	RequestID       string        `db:"request_id" json:"request_id"`
	StudentName     string        `db:"student_name" json:"student_name"`
	Faculty         string        `db:"faculty" json:"faculty"`
	Date            string        `db:"date" json:"date"`
	Time            string        `db:"time" json:"time"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	Reason          string        `db:"reason" json:"reason"`
	Status          RequestStatus `db:"status" json:"status"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// CreateAppointmentRequest is the payload for booking a slot.
type CreateAppointmentRequest struct {
	Faculty         string `json:"faculty" validate:"required"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
	Reason          string `json:"reason" validate:"max=500"`
}

// AppointmentFilter narrows appointment request listings.
type AppointmentFilter struct {
	Faculty  string
	Status   *RequestStatus
	Page     int
	PageSize int
}
