package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/communityhub/grievance-backend/internal/domain/valueobject"
	"github.com/communityhub/grievance-backend/internal/goroutine"
	"github.com/communityhub/grievance-backend/internal/logger"
	"github.com/communityhub/grievance-backend/internal/models"
	"github.com/communityhub/grievance-backend/internal/pkg/apperror"
	"github.com/communityhub/grievance-backend/internal/repository"
	"github.com/communityhub/grievance-backend/internal/repository/common"
	"github.com/communityhub/grievance-backend/internal/validation"
)

// GrievanceStore описывает хранилище жалоб с условными обновлениями по version.
type GrievanceStore interface {
	Create(ctx context.Context, g *models.Grievance) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Grievance, error)
	UpdateStatus(ctx context.Context, g *models.Grievance, entry *models.ResolutionLogEntry) error
	UpdateMediator(ctx context.Context, g *models.Grievance, entry *models.ResolutionLogEntry) error
	List(ctx context.Context, filter repository.GrievanceFilter, limit, offset int) ([]models.Grievance, error)
}

// ResolutionLogStore описывает дописываемый журнал разбирательства.
type ResolutionLogStore interface {
	Add(ctx context.Context, e *models.ResolutionLogEntry) error
	ListByGrievance(ctx context.Context, grievanceID uuid.UUID) ([]models.ResolutionLogEntry, error)
}

// VoteStore описывает хранилище голосов с атомарной проверкой уникальности.
type VoteStore interface {
	Insert(ctx context.Context, v *models.Vote) (bool, error)
	ListByGrievance(ctx context.Context, grievanceID uuid.UUID) ([]models.Vote, error)
	Tally(ctx context.Context, grievanceID uuid.UUID) (*models.VoteTally, error)
}

// UserDirectory — источник личности и полномочий вызывающего. Сервис доверяет
// ему как уже аутентифицированному входу и сам аутентификацией не занимается.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListCertifiedMediators(ctx context.Context) ([]models.User, error)
}

// GroupDirectory — источник состава групп для ответчиков-групп.
type GroupDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	ListMemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
}

// GrievanceNotifier доставляет событие об изменении жалобы. Доставка
// fire-and-forget: её сбой никогда не откатывает уже зафиксированное изменение.
type GrievanceNotifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// GrievanceService — ядро процесса разбора жалоб: подача, назначение
// посредника, движение по статусам, голоса и журнал. Все операции
// синхронные, фоновых задач у сервиса нет.
type GrievanceService struct {
	grievances GrievanceStore
	log        ResolutionLogStore
	votes      VoteStore
	users      UserDirectory
	groups     GroupDirectory
	hub        GrievanceNotifier
}

// NewGrievanceService создаёт сервис жалоб.
func NewGrievanceService(grievances GrievanceStore, log ResolutionLogStore, votes VoteStore, users UserDirectory, groups GroupDirectory) *GrievanceService {
	return &GrievanceService{
		grievances: grievances,
		log:        log,
		votes:      votes,
		users:      users,
		groups:     groups,
	}
}

// SetHub подключает канал уведомлений об изменениях жалоб.
func (s *GrievanceService) SetHub(hub GrievanceNotifier) {
	s.hub = hub
}

// FileGrievanceInput содержит данные новой жалобы.
type FileGrievanceInput struct {
	ReporterID        uuid.UUID
	Title             string
	Description       string
	Category          string
	Priority          string
	RespondentUserID  *uuid.UUID
	RespondentGroupID *uuid.UUID
}

// FileGrievance регистрирует новую жалобу в статусе open с version = 1.
func (s *GrievanceService) FileGrievance(ctx context.Context, in FileGrievanceInput) (*models.Grievance, error) {
	if err := validation.ValidateLength("заголовок", strings.TrimSpace(in.Title), validation.MinTitleLength, validation.MaxTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("описание", strings.TrimSpace(in.Description), validation.MinDescriptionLength, validation.MaxDescriptionLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	// Ответчик не более одного: либо участник, либо группа, либо никто
	// (общая жалоба без названного ответчика).
	if in.RespondentUserID != nil && in.RespondentGroupID != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "ответчиком может быть либо участник, либо группа, но не оба сразу")
	}

	category := in.Category
	if category == "" {
		category = models.GrievanceCategoryOther
	}
	if _, ok := models.ValidGrievanceCategories[category]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректная категория жалобы")
	}

	priority := in.Priority
	if priority == "" {
		priority = models.GrievancePriorityMedium
	}
	if _, ok := models.ValidGrievancePriorities[priority]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный приоритет жалобы")
	}

	if in.RespondentUserID != nil {
		if _, err := s.users.GetByID(ctx, *in.RespondentUserID); err != nil {
			return nil, s.mapStoreErr(err)
		}
	}
	if in.RespondentGroupID != nil {
		if _, err := s.groups.GetByID(ctx, *in.RespondentGroupID); err != nil {
			return nil, s.mapStoreErr(err)
		}
	}

	g := &models.Grievance{
		Title:             strings.TrimSpace(in.Title),
		Description:       strings.TrimSpace(in.Description),
		Category:          category,
		Priority:          priority,
		ReporterID:        in.ReporterID,
		RespondentUserID:  in.RespondentUserID,
		RespondentGroupID: in.RespondentGroupID,
		Status:            valueobject.StatusOpen,
	}
	if err := s.grievances.Create(ctx, g); err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.notifyParties(ctx, g, "grievance.filed", map[string]any{
		"grievance_id": g.ID,
		"status":       g.Status,
	})
	return g, nil
}

// AdvanceStatus переводит жалобу в следующий статус. Транзитная таблица и роль
// проверяются на каждом вызове; смена статуса и системная запись журнала
// фиксируются атомарно под условием по version.
func (s *GrievanceService) AdvanceStatus(ctx context.Context, grievanceID, requestedBy uuid.UUID, toStatus valueobject.GrievanceStatus, resolutionText *string) (*models.Grievance, error) {
	g, err := s.grievances.GetByID(ctx, grievanceID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	caller, err := s.users.GetByID(ctx, requestedBy)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	from := g.Status
	if err := CheckTransition(from, toStatus, RoleOf(g, caller)); err != nil {
		return nil, err
	}

	if toStatus == valueobject.StatusResolved {
		if resolutionText == nil || strings.TrimSpace(*resolutionText) == "" {
			return nil, apperror.New(apperror.ErrCodeValidation, "для разрешения жалобы требуется текст решения")
		}
		if err := validation.ValidateLength("текст решения", *resolutionText, validation.MinResolutionTextLength, validation.MaxResolutionTextLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		text := strings.TrimSpace(*resolutionText)
		g.ResolutionText = &text
		// resolved_at выставляется ровно один раз: из resolved жалоба не выходит.
		now := time.Now()
		g.ResolvedAt = &now
	}

	g.Status = toStatus
	entry := systemLogEntry(g.ID, requestedBy, transitionNoteType(toStatus),
		fmt.Sprintf("статус изменён: %s → %s", from, toStatus))

	if err := s.grievances.UpdateStatus(ctx, g, entry); err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.notifyParties(ctx, g, "grievance.status_changed", map[string]any{
		"grievance_id": g.ID,
		"status":       g.Status,
	})
	return g, nil
}

// AssignMediator назначает или переназначает посредника. Администратор
// выбирает из годного пула; любой другой вызывающий может только
// самоназначиться, если сам сертифицирован и не имеет интереса в деле.
func (s *GrievanceService) AssignMediator(ctx context.Context, grievanceID, mediatorID, requestedBy uuid.UUID) (*models.Grievance, error) {
	g, err := s.grievances.GetByID(ctx, grievanceID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	if g.IsClosed() {
		return nil, apperror.ErrGrievanceClosed
	}

	caller, err := s.users.GetByID(ctx, requestedBy)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	if !caller.IsAdmin() && requestedBy != mediatorID {
		// Назначать других может только администратор; остальным доступно
		// лишь самоназначение.
		return nil, apperror.ErrForbidden
	}
	if role := RoleOf(g, caller); role == RoleReporter || role == RoleRespondent {
		return nil, apperror.ErrForbidden
	}

	eligible, err := s.eligibleMediators(ctx, g)
	if err != nil {
		return nil, err
	}
	isEligible := false
	for _, candidate := range eligible {
		if candidate.ID == mediatorID {
			isEligible = true
			break
		}
	}
	if !isEligible {
		return nil, apperror.New(apperror.ErrCodeForbidden, "кандидат не может быть посредником по этой жалобе")
	}

	content := "посредник назначен"
	if g.MediatorID != nil {
		content = "посредник переназначен"
	}

	g.MediatorID = &mediatorID
	entry := systemLogEntry(g.ID, requestedBy, valueobject.NoteTypeNote, content)
	if err := s.grievances.UpdateMediator(ctx, g, entry); err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.notifyParties(ctx, g, "grievance.mediator_assigned", map[string]any{
		"grievance_id": g.ID,
		"mediator_id":  mediatorID,
	})
	return g, nil
}

// RecordVote записывает голос участника. Стороны дела и посредник голосовать
// не могут; повторный голос отклоняется, а не перезаписывается.
func (s *GrievanceService) RecordVote(ctx context.Context, grievanceID, voterID uuid.UUID, choice valueobject.VoteChoice) (*models.Vote, error) {
	if !choice.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный вариант голоса")
	}

	g, err := s.grievances.GetByID(ctx, grievanceID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	if g.IsClosed() {
		return nil, apperror.ErrGrievanceClosed
	}
	if g.IsParty(voterID) || g.IsMediator(voterID) {
		return nil, apperror.ErrForbidden
	}

	v := &models.Vote{
		GrievanceID: grievanceID,
		VoterID:     voterID,
		Choice:      choice,
	}
	inserted, err := s.votes.Insert(ctx, v)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	if !inserted {
		return nil, apperror.ErrAlreadyVoted
	}

	s.notifyParties(ctx, g, "grievance.vote_recorded", map[string]any{
		"grievance_id": g.ID,
	})
	return v, nil
}

// AppendNote дописывает человеческую запись журнала. Допустимый набор типов
// записей зависит от роли автора в деле.
func (s *GrievanceService) AppendNote(ctx context.Context, grievanceID, authorID uuid.UUID, noteType valueobject.NoteType, content string, evidenceRefs []string) (*models.ResolutionLogEntry, error) {
	if !noteType.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный тип записи")
	}
	if err := validation.ValidateLength("содержание записи", strings.TrimSpace(content), validation.MinNoteContentLength, validation.MaxNoteContentLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateEvidenceRefs(evidenceRefs); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	g, err := s.grievances.GetByID(ctx, grievanceID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	if g.IsClosed() {
		return nil, apperror.ErrGrievanceClosed
	}

	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	if err := CheckNoteType(noteType, RoleOf(g, author)); err != nil {
		return nil, err
	}

	entry := &models.ResolutionLogEntry{
		GrievanceID:  grievanceID,
		AuthorID:     authorID,
		NoteType:     noteType,
		Content:      strings.TrimSpace(content),
		EvidenceRefs: evidenceRefs,
	}
	if err := s.log.Add(ctx, entry); err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.notifyParties(ctx, g, "grievance.note_added", map[string]any{
		"grievance_id": g.ID,
		"note_type":    noteType,
	})
	return entry, nil
}

// GetGrievance возвращает жалобу по идентификатору.
func (s *GrievanceService) GetGrievance(ctx context.Context, id uuid.UUID) (*models.Grievance, error) {
	g, err := s.grievances.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return g, nil
}

// ListGrievances возвращает жалобы по фильтру с пагинацией.
func (s *GrievanceService) ListGrievances(ctx context.Context, filter repository.GrievanceFilter, limit, offset int) ([]models.Grievance, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.grievances.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return list, nil
}

// ListLogEntries возвращает журнал жалобы в порядке создания.
func (s *GrievanceService) ListLogEntries(ctx context.Context, grievanceID uuid.UUID) ([]models.ResolutionLogEntry, error) {
	if _, err := s.grievances.GetByID(ctx, grievanceID); err != nil {
		return nil, s.mapStoreErr(err)
	}
	entries, err := s.log.ListByGrievance(ctx, grievanceID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return entries, nil
}

// ListVotes возвращает голоса по жалобе.
func (s *GrievanceService) ListVotes(ctx context.Context, grievanceID uuid.UUID) ([]models.Vote, error) {
	if _, err := s.grievances.GetByID(ctx, grievanceID); err != nil {
		return nil, s.mapStoreErr(err)
	}
	votes, err := s.votes.ListByGrievance(ctx, grievanceID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return votes, nil
}

// ComputeTally пересчитывает сводку голосов по жалобе.
func (s *GrievanceService) ComputeTally(ctx context.Context, grievanceID uuid.UUID) (*models.VoteTally, error) {
	if _, err := s.grievances.GetByID(ctx, grievanceID); err != nil {
		return nil, s.mapStoreErr(err)
	}
	tally, err := s.votes.Tally(ctx, grievanceID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return tally, nil
}

// ComputeEligibleMediators возвращает пул посредников без конфликта интересов
// по данной жалобе. Считается заново на каждый запрос.
func (s *GrievanceService) ComputeEligibleMediators(ctx context.Context, grievanceID uuid.UUID) ([]models.User, error) {
	g, err := s.grievances.GetByID(ctx, grievanceID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return s.eligibleMediators(ctx, g)
}

func (s *GrievanceService) eligibleMediators(ctx context.Context, g *models.Grievance) ([]models.User, error) {
	candidates, err := s.users.ListCertifiedMediators(ctx)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	var groupMembers []uuid.UUID
	if g.RespondentGroupID != nil {
		groupMembers, err = s.groups.ListMemberIDs(ctx, *g.RespondentGroupID)
		if err != nil {
			return nil, s.mapStoreErr(err)
		}
	}
	return FilterEligibleMediators(g, candidates, groupMembers), nil
}

// notifyParties рассылает событие заявителю, ответчику и посреднику.
// Рассылка асинхронна и никогда не влияет на результат операции.
func (s *GrievanceService) notifyParties(ctx context.Context, g *models.Grievance, event string, data map[string]any) {
	if s.hub == nil {
		return
	}

	recipients := map[uuid.UUID]struct{}{g.ReporterID: {}}
	if g.RespondentUserID != nil {
		recipients[*g.RespondentUserID] = struct{}{}
	}
	if g.MediatorID != nil {
		recipients[*g.MediatorID] = struct{}{}
	}

	hub := s.hub
	goroutine.SafeGo(func() {
		for userID := range recipients {
			if err := hub.BroadcastToUser(userID, event, data); err != nil && logger.Log != nil {
				logger.Log.WithField("user_id", userID).Warnf("grievance service: не удалось отправить уведомление: %v", err)
			}
		}
	})
}

// mapStoreErr переводит ошибки хранилища в типизированные ошибки уровня API.
// Неизвестные ошибки считаются недоступностью хранилища, а не доменной ошибкой.
func (s *GrievanceService) mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrGrievanceNotFound):
		return apperror.ErrGrievanceNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return apperror.ErrUserNotFound
	case errors.Is(err, repository.ErrGroupNotFound):
		return apperror.ErrGroupNotFound
	case errors.Is(err, common.ErrStaleVersion):
		return apperror.ErrVersionConflict
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Wrap(err, apperror.ErrCodeUnavailable, "хранилище временно недоступно")
}
