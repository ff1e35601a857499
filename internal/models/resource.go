package models

import "time"

// Resource is a reservable shared asset (auditorium, board room,
// classroom) shown in the resource directory.
type Resource struct {
	ID           string    `db:"id" json:"id"`
	ResourceType string    `db:"resource_type" json:"resource_type"`
	Location     string    `db:"location" json:"location"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ResourceBlockRequest reserves a shared resource for a time window.
// Its lifecycle is independent of appointment requests.
type ResourceBlockRequest struct {
	ID           string        `db:"id" json:"id"`
	ResourceType string        `db:"resource_type" json:"resource_type"`
	Location     string        `db:"location" json:"location"`
	Date         string        `db:"date" json:"date"`
	StartTime    string        `db:"start_time" json:"start_time"`
	EndTime      string        `db:"end_time" json:"end_time"`
	Purpose      string        `db:"purpose" json:"purpose"`
	Status       RequestStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// CreateResourceBlockRequest is the payload for reserving a resource
// window. EndTime must fall strictly after StartTime on the same day.
type CreateResourceBlockRequest struct {
	ResourceType string `json:"resource_type" validate:"required"`
	Location     string `json:"location" validate:"required"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime    string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string `json:"end_time" validate:"required,datetime=15:04"`
	Purpose      string `json:"purpose" validate:"max=500"`
}

// ResourceBlockFilter narrows resource block listings.
type ResourceBlockFilter struct {
	Status   *RequestStatus
	Page     int
	PageSize int
}
