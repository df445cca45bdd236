package model

import "time"

// Subject is a catalog field of study grouping related exams.
type Subject struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Field     string    `json:"field"`
	ExamCount int       `json:"exam_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
