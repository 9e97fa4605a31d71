package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/communityhub/grievance-backend/internal/domain/valueobject"
	"github.com/communityhub/grievance-backend/internal/models"
	"github.com/communityhub/grievance-backend/internal/pkg/apperror"
)

func TestCheckTransition(t *testing.T) {
	cases := []struct {
		name     string
		from     valueobject.GrievanceStatus
		to       valueobject.GrievanceStatus
		role     CaseRole
		wantCode apperror.ErrorCode
	}{
		{"заявитель открывает рассмотрение", valueobject.StatusOpen, valueobject.StatusUnderReview, RoleReporter, ""},
		{"посредник открывает рассмотрение", valueobject.StatusOpen, valueobject.StatusUnderReview, RoleMediator, ""},
		{"администратор сразу в медиацию", valueobject.StatusOpen, valueobject.StatusMediation, RoleAdmin, ""},
		{"посредник в медиацию из рассмотрения", valueobject.StatusUnderReview, valueobject.StatusMediation, RoleMediator, ""},
		{"посредник отклоняет из рассмотрения", valueobject.StatusUnderReview, valueobject.StatusDismissed, RoleMediator, ""},
		{"заявитель разрешает из медиации", valueobject.StatusMediation, valueobject.StatusResolved, RoleReporter, ""},
		{"администратор отклоняет из медиации", valueobject.StatusMediation, valueobject.StatusDismissed, RoleAdmin, ""},

		{"заявитель не может сразу в медиацию", valueobject.StatusOpen, valueobject.StatusMediation, RoleReporter, apperror.ErrCodeForbidden},
		{"ответчик не двигает статус", valueobject.StatusOpen, valueobject.StatusUnderReview, RoleRespondent, apperror.ErrCodeForbidden},
		{"посторонний не двигает статус", valueobject.StatusMediation, valueobject.StatusResolved, RoleUninvolved, apperror.ErrCodeForbidden},
		{"ответчик не отклоняет", valueobject.StatusUnderReview, valueobject.StatusDismissed, RoleRespondent, apperror.ErrCodeForbidden},

		{"нет прямого пути open → resolved", valueobject.StatusOpen, valueobject.StatusResolved, RoleAdmin, apperror.ErrCodeInvalidTransition},
		{"нет пути назад в open", valueobject.StatusUnderReview, valueobject.StatusOpen, RoleAdmin, apperror.ErrCodeInvalidTransition},
		{"нет отклонения из open", valueobject.StatusOpen, valueobject.StatusDismissed, RoleAdmin, apperror.ErrCodeInvalidTransition},
		{"нет разрешения из рассмотрения", valueobject.StatusUnderReview, valueobject.StatusResolved, RoleAdmin, apperror.ErrCodeInvalidTransition},

		{"из resolved выхода нет", valueobject.StatusResolved, valueobject.StatusMediation, RoleAdmin, apperror.ErrCodeInvalidState},
		{"из dismissed выхода нет", valueobject.StatusDismissed, valueobject.StatusUnderReview, RoleAdmin, apperror.ErrCodeInvalidState},

		{"неизвестный целевой статус", valueobject.StatusOpen, valueobject.GrievanceStatus("archived"), RoleAdmin, apperror.ErrCodeValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(tc.from, tc.to, tc.role)
			if tc.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperror.HasCode(err, tc.wantCode), "ожидался код %s, получили %v", tc.wantCode, err)
		})
	}
}

// Терминальный статус проверяется раньше таблицы переходов: даже «разрешённый»
// на вид переход из закрытой жалобы отвечает INVALID_STATE, а не INVALID_TRANSITION.
func TestCheckTransition_TerminalBeforeTable(t *testing.T) {
	err := CheckTransition(valueobject.StatusResolved, valueobject.StatusResolved, RoleAdmin)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidState))
}

func TestRoleOf(t *testing.T) {
	reporterID := uuid.New()
	respondentID := uuid.New()
	mediatorID := uuid.New()

	g := &models.Grievance{
		ReporterID:       reporterID,
		RespondentUserID: &respondentID,
		MediatorID:       &mediatorID,
	}

	assert.Equal(t, RoleReporter, RoleOf(g, &models.User{ID: reporterID}))
	assert.Equal(t, RoleRespondent, RoleOf(g, &models.User{ID: respondentID}))
	assert.Equal(t, RoleMediator, RoleOf(g, &models.User{ID: mediatorID}))
	assert.Equal(t, RoleAdmin, RoleOf(g, &models.User{ID: uuid.New(), Role: models.RoleAdmin}))
	assert.Equal(t, RoleUninvolved, RoleOf(g, &models.User{ID: uuid.New(), Role: models.RoleMember}))
}

// Стороны дела имеют приоритет над служебной ролью: администратор, подавший
// жалобу, действует по ней как заявитель.
func TestRoleOf_PartyOutranksAdmin(t *testing.T) {
	adminID := uuid.New()
	g := &models.Grievance{ReporterID: adminID}

	role := RoleOf(g, &models.User{ID: adminID, Role: models.RoleAdmin})
	assert.Equal(t, RoleReporter, role)
}

func TestCheckNoteType(t *testing.T) {
	cases := []struct {
		noteType valueobject.NoteType
		role     CaseRole
		allowed  bool
	}{
		{valueobject.NoteTypeMediation, RoleMediator, true},
		{valueobject.NoteTypeMediation, RoleAdmin, true},
		{valueobject.NoteTypeDecision, RoleMediator, true},
		{valueobject.NoteTypeNote, RoleReporter, true},
		{valueobject.NoteTypeEscalation, RoleReporter, true},
		{valueobject.NoteTypeResponse, RoleRespondent, true},
		{valueobject.NoteTypeProposal, RoleUninvolved, true},

		{valueobject.NoteTypeMediation, RoleReporter, false},
		{valueobject.NoteTypeEscalation, RoleMediator, false},
		{valueobject.NoteTypeNote, RoleAdmin, false},
		{valueobject.NoteTypeDecision, RoleRespondent, false},
		{valueobject.NoteTypeResponse, RoleReporter, false},
	}

	for _, tc := range cases {
		err := CheckNoteType(tc.noteType, tc.role)
		if tc.allowed {
			assert.NoError(t, err, "%s / %s", tc.noteType, tc.role)
		} else {
			assert.True(t, apperror.IsForbidden(err), "%s / %s должен быть запрещён", tc.noteType, tc.role)
		}
	}
}

func TestTransitionNoteType(t *testing.T) {
	assert.Equal(t, valueobject.NoteTypeDecision, transitionNoteType(valueobject.StatusResolved))
	assert.Equal(t, valueobject.NoteTypeDecision, transitionNoteType(valueobject.StatusDismissed))
	assert.Equal(t, valueobject.NoteTypeMediation, transitionNoteType(valueobject.StatusMediation))
	assert.Equal(t, valueobject.NoteTypeNote, transitionNoteType(valueobject.StatusUnderReview))
}
