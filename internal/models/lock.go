package models

// SessionLock guards a wallet session against concurrent transfers.
// Used for coordinating work between multiple instances in HA mode
type SessionLock struct {
	LockName   string `gorm:"primaryKey;size:255"`
	InstanceID string `gorm:"size:255;not null"`
	AcquiredAt int64  `gorm:"not null;index"`
	ExpiresAt  int64  `gorm:"not null;index"`
}

// TableName specifies the table name for GORM
func (SessionLock) TableName() string {
	return "session_locks"
}
