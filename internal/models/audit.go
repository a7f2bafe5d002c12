package models

import "time"

// AuditAction names what happened to a document.
type AuditAction string

const (
	AuditActionView     AuditAction = "view"
	AuditActionDownload AuditAction = "download"
	AuditActionUpload   AuditAction = "upload"
	AuditActionDelete   AuditAction = "delete"
	AuditActionShare    AuditAction = "share"
	AuditActionComment  AuditAction = "comment"
	AuditActionLike     AuditAction = "like"
)

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	switch a {
	case AuditActionView, AuditActionDownload, AuditActionUpload, AuditActionDelete,
		AuditActionShare, AuditActionComment, AuditActionLike:
		return true
	}
	return false
}

// AuditLog records one action on a document. UserID is the subject (the
// document owner); ActorID is who acted and is empty for anonymous access
// through a share link.
type AuditLog struct {
	ID          string      `db:"id" json:"id" bson:"_id"`
	UserID      string      `db:"user_id" json:"user_id" bson:"user_id"`
	ActorID     *string     `db:"actor_id" json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	DocumentID  *string     `db:"document_id" json:"document_id,omitempty" bson:"document_id,omitempty"`
	Action      AuditAction `db:"action" json:"action" bson:"action"`
	Description string      `db:"description" json:"description" bson:"description"`
	IPAddress   string      `db:"ip_address" json:"ip_address" bson:"ip_address"`
	UserAgent   string      `db:"user_agent" json:"user_agent" bson:"user_agent"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at" bson:"created_at"`
}

// AuditFilter narrows audit queries. SubjectID restricts to entries about a
// single user's documents.
type AuditFilter struct {
	SubjectID  string
	ActorID    string
	DocumentID string
	Action     AuditAction
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// AuditActionStat aggregates entries for one action.
type AuditActionStat struct {
	Action AuditAction `db:"action" json:"action" bson:"_id"`
	Count  int64       `db:"count" json:"count" bson:"count"`
	LastAt time.Time   `db:"last_at" json:"last_at" bson:"last_at"`
}

// AuditActorStat aggregates entries for one actor.
type AuditActorStat struct {
	ActorID string    `db:"actor_id" json:"actor_id" bson:"_id"`
	Count   int64     `db:"count" json:"count" bson:"count"`
	LastAt  time.Time `db:"last_at" json:"last_at" bson:"last_at"`
}

// AuditStats is the grouped summary of a filtered audit log.
type AuditStats struct {
	Total    int64             `json:"total"`
	ByAction []AuditActionStat `json:"by_action"`
	ByActor  []AuditActorStat  `json:"by_actor"`
}
