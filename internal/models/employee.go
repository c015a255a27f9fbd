package models

// Employee represents a company employee who may hold cards
type Employee struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}
