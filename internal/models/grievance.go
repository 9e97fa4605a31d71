package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/communityhub/grievance-backend/internal/domain/valueobject"
)

// Grievance описывает жалобу одного участника на другого участника или группу.
// Строка никогда не удаляется: закрытые жалобы остаются историей сообщества.
type Grievance struct {
	ID                uuid.UUID                   `db:"id" json:"id"`
	Title             string                      `db:"title" json:"title"`
	Description       string                      `db:"description" json:"description"`
	Category          string                      `db:"category" json:"category"`
	Priority          string                      `db:"priority" json:"priority"`
	ReporterID        uuid.UUID                   `db:"reporter_id" json:"reporter_id"`
	RespondentUserID  *uuid.UUID                  `db:"respondent_user_id" json:"respondent_user_id,omitempty"`
	RespondentGroupID *uuid.UUID                  `db:"respondent_group_id" json:"respondent_group_id,omitempty"`
	MediatorID        *uuid.UUID                  `db:"mediator_id" json:"mediator_id,omitempty"`
	Status            valueobject.GrievanceStatus `db:"status" json:"status"`
	ResolutionText    *string                     `db:"resolution_text" json:"resolution_text,omitempty"`
	Version           int64                       `db:"version" json:"version"`
	CreatedAt         time.Time                   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time                   `db:"updated_at" json:"updated_at"`
	ResolvedAt        *time.Time                  `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsClosed возвращает true, когда жалоба в терминальном статусе.
func (g *Grievance) IsClosed() bool {
	return g.Status.IsTerminal()
}

// IsParty возвращает true, если пользователь — заявитель или названный ответчик.
func (g *Grievance) IsParty(userID uuid.UUID) bool {
	if g.ReporterID == userID {
		return true
	}
	return g.RespondentUserID != nil && *g.RespondentUserID == userID
}

// IsMediator возвращает true, если пользователь — назначенный посредник.
func (g *Grievance) IsMediator(userID uuid.UUID) bool {
	return g.MediatorID != nil && *g.MediatorID == userID
}

// ResolutionLogEntry — запись журнала разбирательства. Журнал только дописывается:
// записи никогда не изменяются и не удаляются, это постоянный след всех действий.
type ResolutionLogEntry struct {
	ID           uuid.UUID            `db:"id" json:"id"`
	GrievanceID  uuid.UUID            `db:"grievance_id" json:"grievance_id"`
	AuthorID     uuid.UUID            `db:"author_id" json:"author_id"`
	NoteType     valueobject.NoteType `db:"note_type" json:"note_type"`
	Content      string               `db:"content" json:"content"`
	EvidenceRefs pq.StringArray       `db:"evidence_refs" json:"evidence_refs,omitempty"`
	IsSystem     bool                 `db:"is_system" json:"is_system"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
}

// Vote — голос участника по жалобе, не более одного на пару (grievance_id, voter_id).
type Vote struct {
	ID          uuid.UUID              `db:"id" json:"id"`
	GrievanceID uuid.UUID              `db:"grievance_id" json:"grievance_id"`
	VoterID     uuid.UUID              `db:"voter_id" json:"voter_id"`
	Choice      valueobject.VoteChoice `db:"choice" json:"choice"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
}

// VoteTally — сводка голосов по жалобе, пересчитывается по требованию.
type VoteTally struct {
	GrievanceID       uuid.UUID `json:"grievance_id"`
	SupportReporter   int       `json:"support_reporter"`
	Neutral           int       `json:"neutral"`
	SupportRespondent int       `json:"support_respondent"`
	Total             int       `json:"total"`
}
