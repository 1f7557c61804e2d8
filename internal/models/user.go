package models

import "time"

// User statuses
const (
	UserStatusActive = "active"
	UserStatusBanned = "banned"
)

// User carries only what the ledger needs: the ban flag checked before
// any balance mutation. Account management lives in another service.
type User struct {
	ID        uint   `gorm:"primarykey"`
	Status    string `gorm:"not null;default:'active'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
