package audit

import "time"

// AuditLog rows are write-once. The repository exposes no update or delete
// path; Seq breaks timestamp ties so per-actor ordering survives replay.
type AuditLog struct {
	ID                   string    `gorm:"primaryKey;column:id"`
	ActorEffectiveID     int64     `gorm:"column:actor_effective_id;not null;index"`
	OriginalUserID       *int64    `gorm:"column:original_user_id"`
	IsImpersonated       bool      `gorm:"column:is_impersonated;default:false"`
	ImpersonationContext string    `gorm:"column:impersonation_context;type:jsonb"`
	Action               string    `gorm:"column:action;not null"`
	ResourceType         string    `gorm:"column:resource_type;not null"`
	ResourceID           string    `gorm:"column:resource_id"`
	Seq                  uint64    `gorm:"column:seq;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;default:now()"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
