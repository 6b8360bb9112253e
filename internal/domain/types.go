package domain

import "time"

// DefaultType is used when a countdown is created without a category.
const DefaultType = "Birthday"

type Countdown struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FireTime returns the instant an alert for this countdown should go off,
// leadMinutes before the target date.
func (c Countdown) FireTime(leadMinutes int) time.Time {
	return c.Date.Add(-time.Duration(leadMinutes) * time.Minute)
}
