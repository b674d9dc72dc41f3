package models

import "time"

// AgentLog captures a decision source's complete I/O for one turn.
type AgentLog struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	NegotiationID string `gorm:"size:32;index:idx_negotiation_turn"`
	Party         string `gorm:"size:8"`
	Turn          int    `gorm:"index:idx_negotiation_turn"`
	Direction     string `gorm:"size:4"`
	Content       string `gorm:"type:text"`
	InputTokens   int
	OutputTokens  int
	Model         string `gorm:"size:64"`
	LatencyMs     int
	CreatedAt     time.Time
}
