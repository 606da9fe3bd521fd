package models

import "time"

type Visitor struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name,omitempty" db:"name"`
	ImagePath  string    `json:"image_path" db:"image_path"`
	Descriptor []float32 `json:"-" db:"descriptor"`
	LastSeen   time.Time `json:"last_seen" db:"last_seen"`
	VisitCount int       `json:"visit_count" db:"visit_count"`
}
