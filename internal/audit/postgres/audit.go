package postgres

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/medshift/staffing-platform/internal/audit"
	auditmodel "github.com/medshift/staffing-platform/internal/core/datamodel/audit"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(entry *audit.Entry) error {
	ctxJSON := "{}"
	if len(entry.ImpersonationContext) > 0 {
		raw, err := json.Marshal(entry.ImpersonationContext)
		if err != nil {
			return err
		}
		ctxJSON = string(raw)
	}

	row := auditmodel.AuditLog{
		ID:                   entry.ID,
		ActorEffectiveID:     entry.ActorEffectiveID,
		OriginalUserID:       entry.OriginalUserID,
		IsImpersonated:       entry.IsImpersonated,
		ImpersonationContext: ctxJSON,
		Action:               entry.Action,
		ResourceType:         entry.ResourceType,
		ResourceID:           entry.ResourceID,
		Seq:                  entry.Seq,
		CreatedAt:            entry.CreatedAt,
	}
	return r.db.Create(&row).Error
}

func (r *Repository) List(actorID *int64, afterSeq uint64, limit int) ([]*audit.Entry, error) {
	query := r.db.Model(&auditmodel.AuditLog{}).Order("seq ASC").Limit(limit)
	if actorID != nil {
		query = query.Where("actor_effective_id = ?", *actorID)
	}
	if afterSeq > 0 {
		query = query.Where("seq > ?", afterSeq)
	}

	var rows []auditmodel.AuditLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]*audit.Entry, 0, len(rows))
	for i := range rows {
		entry, err := toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *Repository) MaxSeq() (uint64, error) {
	var max *uint64
	if err := r.db.Model(&auditmodel.AuditLog{}).
		Select("MAX(seq)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func toDomain(row *auditmodel.AuditLog) (*audit.Entry, error) {
	var impCtx map[string]interface{}
	if row.ImpersonationContext != "" && row.ImpersonationContext != "{}" {
		if err := json.Unmarshal([]byte(row.ImpersonationContext), &impCtx); err != nil {
			return nil, err
		}
	}
	return &audit.Entry{
		ID:                   row.ID,
		ActorEffectiveID:     row.ActorEffectiveID,
		OriginalUserID:       row.OriginalUserID,
		IsImpersonated:       row.IsImpersonated,
		ImpersonationContext: impCtx,
		Action:               row.Action,
		ResourceType:         row.ResourceType,
		ResourceID:           row.ResourceID,
		Seq:                  row.Seq,
		CreatedAt:            row.CreatedAt,
	}, nil
}
