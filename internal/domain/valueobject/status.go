package valueobject

import "github.com/communityhub/grievance-backend/internal/pkg/apperror"

type GrievanceStatus string

const (
	StatusOpen        GrievanceStatus = "open"
	StatusUnderReview GrievanceStatus = "under_review"
	StatusMediation   GrievanceStatus = "mediation"
	StatusResolved    GrievanceStatus = "resolved"
	StatusDismissed   GrievanceStatus = "dismissed"
)

func (s GrievanceStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusUnderReview, StatusMediation, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// IsTerminal возвращает true для статусов, после которых жалоба доступна только для чтения.
func (s GrievanceStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

func NewGrievanceStatus(status string) (GrievanceStatus, error) {
	s := GrievanceStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус жалобы")
	}
	return s, nil
}

type VoteChoice string

const (
	ChoiceSupportReporter   VoteChoice = "support_reporter"
	ChoiceNeutral           VoteChoice = "neutral"
	ChoiceSupportRespondent VoteChoice = "support_respondent"
)

func (c VoteChoice) IsValid() bool {
	switch c {
	case ChoiceSupportReporter, ChoiceNeutral, ChoiceSupportRespondent:
		return true
	}
	return false
}

func NewVoteChoice(choice string) (VoteChoice, error) {
	c := VoteChoice(choice)
	if !c.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный вариант голоса")
	}
	return c, nil
}

type NoteType string

const (
	NoteTypeNote       NoteType = "note"
	NoteTypeResponse   NoteType = "response"
	NoteTypeMediation  NoteType = "mediation"
	NoteTypeProposal   NoteType = "proposal"
	NoteTypeDecision   NoteType = "decision"
	NoteTypeEscalation NoteType = "escalation"
)

func (t NoteType) IsValid() bool {
	switch t {
	case NoteTypeNote, NoteTypeResponse, NoteTypeMediation, NoteTypeProposal, NoteTypeDecision, NoteTypeEscalation:
		return true
	}
	return false
}

func NewNoteType(noteType string) (NoteType, error) {
	t := NoteType(noteType)
	if !t.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный тип записи")
	}
	return t, nil
}
