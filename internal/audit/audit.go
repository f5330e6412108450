package audit

import (
	"context"
	"time"
)

// Actor captures who performed an action. It is always derived from the
// session record by the session package, never assembled from caller input,
// so impersonation flags cannot be falsified by handlers.
type Actor struct {
	EffectiveUserID int64
	OriginalUserID  *int64
	IsImpersonated  bool
	Context         map[string]interface{}
}

// Entry is a write-once audit record. Seq is a monotonic sequence that
// breaks timestamp ties so per-actor ordering is total; the recorder resumes
// it from the store, so it keeps increasing across restarts.
type Entry struct {
	ID                   string                 `json:"id"`
	ActorEffectiveID     int64                  `json:"actor_effective_id"`
	OriginalUserID       *int64                 `json:"original_user_id,omitempty"`
	IsImpersonated       bool                   `json:"is_impersonated"`
	ImpersonationContext map[string]interface{} `json:"impersonation_context,omitempty"`
	Action               string                 `json:"action"`
	ResourceType         string                 `json:"resource_type"`
	ResourceID           string                 `json:"resource_id,omitempty"`
	Seq                  uint64                 `json:"seq"`
	CreatedAt            time.Time              `json:"created_at"`
}

// RepositoryAPI is append-only. There is deliberately no update or delete.
// MaxSeq reports the highest stored sequence number, zero for an empty
// trail; the recorder seeds its counter from it at startup.
type RepositoryAPI interface {
	Append(entry *Entry) error
	List(actorID *int64, afterSeq uint64, limit int) ([]*Entry, error)
	MaxSeq() (uint64, error)
}

// RecorderAPI is the contract business handlers and the session manager use.
// Record never returns an error: a failed write is reported operationally
// and must not roll back the action it describes.
type RecorderAPI interface {
	Record(ctx context.Context, actor Actor, action, resourceType, resourceID string)
}
