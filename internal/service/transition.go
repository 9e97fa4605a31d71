package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/communityhub/grievance-backend/internal/domain/valueobject"
	"github.com/communityhub/grievance-backend/internal/models"
	"github.com/communityhub/grievance-backend/internal/pkg/apperror"
)

// CaseRole — отношение вызывающего к конкретной жалобе. Роль всегда вычисляется
// заново из полей жалобы и личности вызывающего: посредник и ответчик могут
// смениться между вызовами, поэтому кэшировать роль нельзя.
type CaseRole string

const (
	RoleReporter   CaseRole = "reporter"
	RoleRespondent CaseRole = "respondent"
	RoleMediator   CaseRole = "mediator"
	RoleAdmin      CaseRole = "admin"
	RoleUninvolved CaseRole = "uninvolved"
)

// transitionTable — единственное место, где закодировано, кто и куда может
// перевести жалобу. Читающая и пишущая стороны сверяются только с ней.
var transitionTable = map[valueobject.GrievanceStatus]map[valueobject.GrievanceStatus][]CaseRole{
	valueobject.StatusOpen: {
		valueobject.StatusUnderReview: {RoleReporter, RoleMediator, RoleAdmin},
		valueobject.StatusMediation:   {RoleMediator, RoleAdmin},
	},
	valueobject.StatusUnderReview: {
		valueobject.StatusMediation: {RoleMediator, RoleAdmin},
		valueobject.StatusDismissed: {RoleMediator, RoleAdmin},
	},
	valueobject.StatusMediation: {
		valueobject.StatusResolved:  {RoleReporter, RoleMediator, RoleAdmin},
		valueobject.StatusDismissed: {RoleMediator, RoleAdmin},
	},
}

// noteTypeRoles ограничивает типы записей журнала той же ролевой моделью,
// что и переходы: посредник и администратор ведут медиацию и решения,
// заявитель — заметки и эскалации, остальные — ответы и предложения.
var noteTypeRoles = map[valueobject.NoteType][]CaseRole{
	valueobject.NoteTypeMediation:  {RoleMediator, RoleAdmin},
	valueobject.NoteTypeDecision:   {RoleMediator, RoleAdmin},
	valueobject.NoteTypeNote:       {RoleReporter},
	valueobject.NoteTypeEscalation: {RoleReporter},
	valueobject.NoteTypeResponse:   {RoleRespondent, RoleUninvolved},
	valueobject.NoteTypeProposal:   {RoleRespondent, RoleUninvolved},
}

// RoleOf вычисляет роль пользователя относительно жалобы. Стороны дела имеют
// приоритет над служебными ролями: администратор, подавший жалобу, действует
// по ней как заявитель, а не как администратор.
func RoleOf(g *models.Grievance, caller *models.User) CaseRole {
	if g.ReporterID == caller.ID {
		return RoleReporter
	}
	if g.RespondentUserID != nil && *g.RespondentUserID == caller.ID {
		return RoleRespondent
	}
	if g.IsMediator(caller.ID) {
		return RoleMediator
	}
	if caller.IsAdmin() {
		return RoleAdmin
	}
	return RoleUninvolved
}

// CheckTransition — чистая функция (текущий статус, роль, целевой статус) -> ошибка.
// Порядок проверок фиксирован: терминальный статус, затем таблица переходов,
// затем роль. Никаких побочных эффектов здесь нет.
func CheckTransition(from, to valueobject.GrievanceStatus, role CaseRole) error {
	if !to.IsValid() {
		return apperror.New(apperror.ErrCodeValidation, "некорректный целевой статус")
	}
	if from.IsTerminal() {
		return apperror.ErrGrievanceClosed
	}

	allowedRoles, ok := transitionTable[from][to]
	if !ok {
		return apperror.New(apperror.ErrCodeInvalidTransition,
			fmt.Sprintf("переход %s → %s не разрешён", from, to))
	}

	for _, allowed := range allowedRoles {
		if allowed == role {
			return nil
		}
	}
	return apperror.ErrForbidden
}

// CheckNoteType проверяет, что роль может писать записи указанного типа.
func CheckNoteType(noteType valueobject.NoteType, role CaseRole) error {
	for _, allowed := range noteTypeRoles[noteType] {
		if allowed == role {
			return nil
		}
	}
	return apperror.ErrForbidden
}

// transitionNoteType выбирает тип системной записи журнала для смены статуса.
func transitionNoteType(to valueobject.GrievanceStatus) valueobject.NoteType {
	switch to {
	case valueobject.StatusResolved, valueobject.StatusDismissed:
		return valueobject.NoteTypeDecision
	case valueobject.StatusMediation:
		return valueobject.NoteTypeMediation
	default:
		return valueobject.NoteTypeNote
	}
}

// systemLogEntry собирает системную запись журнала о действии над жалобой.
func systemLogEntry(grievanceID, authorID uuid.UUID, noteType valueobject.NoteType, content string) *models.ResolutionLogEntry {
	return &models.ResolutionLogEntry{
		GrievanceID: grievanceID,
		AuthorID:    authorID,
		NoteType:    noteType,
		Content:     content,
		IsSystem:    true,
	}
}
