package models

import "time"

type Greeting struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Greeting  string    `json:"greeting" db:"greeting"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
