package domain

import "time"

// ProcessedEvent remembers the response to an inbound event so a gateway
// redelivering it gets the same answer without a second dispatch. Rerolls
// are not idempotent, so replays must not reach the pipeline.
type ProcessedEvent struct {
	Key       string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	RequestID string    `gorm:"type:TEXT NOT NULL"`
	GroupID   int64     `gorm:"not null;default:0"`
	SenderID  int64     `gorm:"not null"`
	Command   string    `gorm:"type:TEXT NOT NULL;default:''"`
	Response  []byte    `gorm:"type:blob;not null"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedEvent) TableName() string { return "processed_events" }
