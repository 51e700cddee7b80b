package models

import "time"

// AuditEvent records an authentication attempt.
type AuditEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EventType    string    `gorm:"not null" json:"event_type"` // e.g. "login_attempt"
	Username     string    `json:"username"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	Status       string    `gorm:"not null" json:"status"` // "success" or "failure"
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_log"
}
