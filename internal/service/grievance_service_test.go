package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/communityhub/grievance-backend/internal/domain/valueobject"
	"github.com/communityhub/grievance-backend/internal/models"
	"github.com/communityhub/grievance-backend/internal/pkg/apperror"
	"github.com/communityhub/grievance-backend/internal/repository"
	"github.com/communityhub/grievance-backend/internal/repository/common"
)

// fakeGrievanceStore хранит жалобы в памяти и повторяет условные обновления
// по version так же, как это делает postgres-реализация.
type fakeGrievanceStore struct {
	byID map[uuid.UUID]*models.Grievance
	log  *fakeResolutionLogStore

	// afterGet, если задан, выполняется после каждого чтения — так тест
	// вклинивает конкурирующего писателя между чтением и обновлением.
	afterGet func()
}

func newFakeGrievanceStore(log *fakeResolutionLogStore) *fakeGrievanceStore {
	return &fakeGrievanceStore{byID: make(map[uuid.UUID]*models.Grievance), log: log}
}

func (f *fakeGrievanceStore) Create(ctx context.Context, g *models.Grievance) error {
	g.ID = uuid.New()
	g.Version = 1
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	stored := *g
	f.byID[g.ID] = &stored
	return nil
}

func (f *fakeGrievanceStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Grievance, error) {
	stored, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrGrievanceNotFound
	}
	copied := *stored
	if f.afterGet != nil {
		f.afterGet()
	}
	return &copied, nil
}

func (f *fakeGrievanceStore) updateConditional(g *models.Grievance, entry *models.ResolutionLogEntry, apply func(stored *models.Grievance)) error {
	stored, ok := f.byID[g.ID]
	if !ok {
		return repository.ErrGrievanceNotFound
	}
	if stored.Version != g.Version {
		return common.ErrStaleVersion
	}
	apply(stored)
	stored.Version++
	stored.UpdatedAt = time.Now()
	g.Version = stored.Version
	g.UpdatedAt = stored.UpdatedAt
	if entry != nil {
		f.log.entries = append(f.log.entries, *entry)
	}
	return nil
}

func (f *fakeGrievanceStore) UpdateStatus(ctx context.Context, g *models.Grievance, entry *models.ResolutionLogEntry) error {
	return f.updateConditional(g, entry, func(stored *models.Grievance) {
		stored.Status = g.Status
		stored.ResolutionText = g.ResolutionText
		stored.ResolvedAt = g.ResolvedAt
	})
}

func (f *fakeGrievanceStore) UpdateMediator(ctx context.Context, g *models.Grievance, entry *models.ResolutionLogEntry) error {
	return f.updateConditional(g, entry, func(stored *models.Grievance) {
		stored.MediatorID = g.MediatorID
	})
}

func (f *fakeGrievanceStore) List(ctx context.Context, filter repository.GrievanceFilter, limit, offset int) ([]models.Grievance, error) {
	var out []models.Grievance
	for _, g := range f.byID {
		if filter.Status != "" && string(g.Status) != filter.Status {
			continue
		}
		if filter.ReporterID != nil && g.ReporterID != *filter.ReporterID {
			continue
		}
		out = append(out, *g)
	}
	return out, nil
}

type fakeResolutionLogStore struct {
	entries []models.ResolutionLogEntry
}

func (f *fakeResolutionLogStore) Add(ctx context.Context, e *models.ResolutionLogEntry) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeResolutionLogStore) ListByGrievance(ctx context.Context, grievanceID uuid.UUID) ([]models.ResolutionLogEntry, error) {
	var out []models.ResolutionLogEntry
	for _, e := range f.entries {
		if e.GrievanceID == grievanceID {
			out = append(out, e)
		}
	}
	return out, nil
}

type voteKey struct {
	grievanceID uuid.UUID
	voterID     uuid.UUID
}

type fakeVoteStore struct {
	votes map[voteKey]models.Vote
}

func newFakeVoteStore() *fakeVoteStore {
	return &fakeVoteStore{votes: make(map[voteKey]models.Vote)}
}

func (f *fakeVoteStore) Insert(ctx context.Context, v *models.Vote) (bool, error) {
	key := voteKey{v.GrievanceID, v.VoterID}
	if _, exists := f.votes[key]; exists {
		return false, nil
	}
	v.ID = uuid.New()
	v.CreatedAt = time.Now()
	f.votes[key] = *v
	return true, nil
}

func (f *fakeVoteStore) ListByGrievance(ctx context.Context, grievanceID uuid.UUID) ([]models.Vote, error) {
	var out []models.Vote
	for _, v := range f.votes {
		if v.GrievanceID == grievanceID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVoteStore) Tally(ctx context.Context, grievanceID uuid.UUID) (*models.VoteTally, error) {
	tally := &models.VoteTally{GrievanceID: grievanceID}
	for _, v := range f.votes {
		if v.GrievanceID != grievanceID {
			continue
		}
		switch v.Choice {
		case valueobject.ChoiceSupportReporter:
			tally.SupportReporter++
		case valueobject.ChoiceNeutral:
			tally.Neutral++
		case valueobject.ChoiceSupportRespondent:
			tally.SupportRespondent++
		}
		tally.Total++
	}
	return tally, nil
}

type fakeUserDirectory struct {
	byID map[uuid.UUID]*models.User
}

func newFakeUserDirectory(users ...*models.User) *fakeUserDirectory {
	dir := &fakeUserDirectory{byID: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		dir.byID[u.ID] = u
	}
	return dir
}

func (f *fakeUserDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserDirectory) ListCertifiedMediators(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range f.byID {
		if u.IsCertifiedMediator && u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

type fakeGroupDirectory struct {
	groups  map[uuid.UUID]*models.Group
	members map[uuid.UUID][]uuid.UUID
}

func newFakeGroupDirectory() *fakeGroupDirectory {
	return &fakeGroupDirectory{
		groups:  make(map[uuid.UUID]*models.Group),
		members: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeGroupDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return nil, repository.ErrGroupNotFound
}

func (f *fakeGroupDirectory) ListMemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return f.members[groupID], nil
}

// testEnv собирает сервис с фейковыми хранилищами и типовым набором участников.
type testEnv struct {
	svc        *GrievanceService
	grievances *fakeGrievanceStore
	log        *fakeResolutionLogStore
	votes      *fakeVoteStore
	users      *fakeUserDirectory
	groups     *fakeGroupDirectory

	reporter   *models.User
	respondent *models.User
	mediator   *models.User
	admin      *models.User
	outsider   *models.User
}

func newTestEnv() *testEnv {
	log := &fakeResolutionLogStore{}
	env := &testEnv{
		grievances: newFakeGrievanceStore(log),
		log:        log,
		votes:      newFakeVoteStore(),
		groups:     newFakeGroupDirectory(),

		reporter:   &models.User{ID: uuid.New(), Username: "reporter", Role: models.RoleMember, IsActive: true},
		respondent: &models.User{ID: uuid.New(), Username: "respondent", Role: models.RoleMember, IsActive: true},
		mediator:   &models.User{ID: uuid.New(), Username: "mediator", Role: models.RoleMember, IsCertifiedMediator: true, IsActive: true},
		admin:      &models.User{ID: uuid.New(), Username: "admin", Role: models.RoleAdmin, IsActive: true},
		outsider:   &models.User{ID: uuid.New(), Username: "outsider", Role: models.RoleMember, IsActive: true},
	}
	env.users = newFakeUserDirectory(env.reporter, env.respondent, env.mediator, env.admin, env.outsider)
	env.svc = NewGrievanceService(env.grievances, env.log, env.votes, env.users, env.groups)
	return env
}

func (e *testEnv) file(t *testing.T) *models.Grievance {
	t.Helper()
	g, err := e.svc.FileGrievance(context.Background(), FileGrievanceInput{
		ReporterID:       e.reporter.ID,
		Title:            "Шум по ночам",
		Description:      "Сосед регулярно шумит после полуночи, договориться не удалось.",
		RespondentUserID: &e.respondent.ID,
	})
	if err != nil {
		t.Fatalf("file grievance: %v", err)
	}
	return g
}

func TestGrievanceService_FileGrievance(t *testing.T) {
	env := newTestEnv()
	g := env.file(t)

	assert.Equal(t, valueobject.StatusOpen, g.Status)
	assert.EqualValues(t, 1, g.Version)
	assert.Equal(t, models.GrievanceCategoryOther, g.Category)
	assert.Equal(t, models.GrievancePriorityMedium, g.Priority)
	assert.Nil(t, g.MediatorID)
	assert.Nil(t, g.ResolvedAt)
}

func TestGrievanceService_FileGrievance_Validation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.svc.FileGrievance(ctx, FileGrievanceInput{
		ReporterID:  env.reporter.ID,
		Title:       "Ш",
		Description: "Описание достаточной длины для проверки.",
	})
	assert.True(t, apperror.IsValidation(err), "короткий заголовок: %v", err)

	groupID := uuid.New()
	_, err = env.svc.FileGrievance(ctx, FileGrievanceInput{
		ReporterID:        env.reporter.ID,
		Title:             "Корректный заголовок",
		Description:       "Описание достаточной длины для проверки.",
		RespondentUserID:  &env.respondent.ID,
		RespondentGroupID: &groupID,
	})
	assert.True(t, apperror.IsValidation(err), "два ответчика сразу: %v", err)

	missing := uuid.New()
	_, err = env.svc.FileGrievance(ctx, FileGrievanceInput{
		ReporterID:       env.reporter.ID,
		Title:            "Корректный заголовок",
		Description:      "Описание достаточной длины для проверки.",
		RespondentUserID: &missing,
	})
	assert.True(t, apperror.IsNotFound(err), "несуществующий ответчик: %v", err)
}

func TestGrievanceService_AdvanceStatus_FullPath(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	g := env.file(t)

	// Заявитель передаёт жалобу на рассмотрение.
	g, err := env.svc.AdvanceStatus(ctx, g.ID, env.reporter.ID, valueobject.StatusUnderReview, nil)
	assert.NoError(t, err)
	assert.Equal(t, valueobject.StatusUnderReview, g.Status)
	assert.EqualValues(t, 2, g.Version)

	// Администратор назначает посредника и переводит дело в медиацию.
	g, err = env.svc.AssignMediator(ctx, g.ID, env.mediator.ID, env.admin.ID)
	assert.NoError(t, err)
	assert.Equal(t, env.mediator.ID, *g.MediatorID)

	g, err = env.svc.AdvanceStatus(ctx, g.ID, env.mediator.ID, valueobject.StatusMediation, nil)
	assert.NoError(t, err)
	assert.Equal(t, valueobject.StatusMediation, g.Status)

	// Посредник закрывает дело с текстом решения.
	resolution := "Стороны договорились о тихих часах."
	g, err = env.svc.AdvanceStatus(ctx, g.ID, env.mediator.ID, valueobject.StatusResolved, &resolution)
	assert.NoError(t, err)
	assert.Equal(t, valueobject.StatusResolved, g.Status)
	assert.Equal(t, resolution, *g.ResolutionText)
	assert.NotNil(t, g.ResolvedAt)

	// Каждая смена статуса оставила системную запись журнала.
	entries, err := env.svc.ListLogEntries(ctx, g.ID)
	assert.NoError(t, err)
	systemCount := 0
	for _, e := range entries {
		if e.IsSystem {
			systemCount++
		}
	}
	assert.Equal(t, 4, systemCount)

	last := entries[len(entries)-1]
	assert.True(t, last.IsSystem)
	assert.Equal(t, valueobject.NoteTypeDecision, last.NoteType)
}

func TestGrievanceService_AdvanceStatus_InvalidTransition(t *testing.T) {
	env := newTestEnv()
	g := env.file(t)

	text := "решение"
	_, err := env.svc.AdvanceStatus(context.Background(), g.ID, env.admin.ID, valueobject.StatusResolved, &text)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidTransition))
}

func TestGrievanceService_AdvanceStatus_ResolutionTextRequired(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	g := env.file(t)

	g, err := env.svc.AdvanceStatus(ctx, g.ID, env.reporter.ID, valueobject.StatusUnderReview, nil)
	assert.NoError(t, err)
	g, err = env.svc.AdvanceStatus(ctx, g.ID, env.admin.ID, valueobject.StatusMediation, nil)
	assert.NoError(t, err)

	_, err = env.svc.AdvanceStatus(ctx, g.ID, env.admin.ID, valueobject.StatusResolved, nil)
	assert.True(t, apperror.IsValidation(err), "resolved без текста решения: %v", err)

	blank := "   "
	_, err = env.svc.AdvanceStatus(ctx, g.ID, env.admin.ID, valueobject.StatusResolved, &blank)
	assert.True(t, apperror.IsValidation(err), "resolved с пустым текстом: %v", err)
}

// Проигравший гонку вызов получает CONFLICT, состояние при этом меняется ровно один раз.
func TestGrievanceService_AdvanceStatus_StaleVersion(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	g := env.file(t)

	// Конкурирующий писатель продвигает version между чтением и обновлением.
	env.grievances.afterGet = func() {
		env.grievances.byID[g.ID].Version++
	}

	_, err := env.svc.AdvanceStatus(ctx, g.ID, env.reporter.ID, valueobject.StatusUnderReview, nil)
	assert.True(t, apperror.IsConflict(err), "ожидался CONFLICT: %v", err)
}

func TestGrievanceService_AssignMediator(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	g := env.file(t)

	// Заявитель и ответчик не участвуют в выборе посредника.
	_, err := env.svc.AssignMediator(ctx, g.ID, env.mediator.ID, env.reporter.ID)
	assert.True(t, apperror.IsForbidden(err))

	// Обычный участник не может назначить другого.
	_, err = env.svc.AssignMediator(ctx, g.ID, env.mediator.ID, env.outsider.ID)
	assert.True(t, apperror.IsForbidden(err))

	// Несертифицированный участник не может самоназначиться.
	_, err = env.svc.AssignMediator(ctx, g.ID, env.outsider.ID, env.outsider.ID)
	assert.True(t, apperror.IsForbidden(err))

	// Сертифицированный посредник без интереса в деле самоназначается.
	g, err = env.svc.AssignMediator(ctx, g.ID, env.mediator.ID, env.mediator.ID)
	assert.NoError(t, err)
	assert.Equal(t, env.mediator.ID, *g.MediatorID)

	// Переназначение администратором оставляет след в журнале.
	second := &models.User{ID: uuid.New(), Username: "second", Role: models.RoleMember, IsCertifiedMediator: true, IsActive: true}
	env.users.byID[second.ID] = second

	g, err = env.svc.AssignMediator(ctx, g.ID, second.ID, env.admin.ID)
	assert.NoError(t, err)
	assert.Equal(t, second.ID, *g.MediatorID)

	entries, _ := env.svc.ListLogEntries(ctx, g.ID)
	assert.Equal(t, "посредник переназначен", entries[len(entries)-1].Content)
}

// Сертифицированный посредник, сам являющийся стороной дела, не годится
// даже для самоназначения.
func TestGrievanceService_AssignMediator_ConflictOfInterest(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.respondent.IsCertifiedMediator = true
	g := env.file(t)

	_, err := env.svc.AssignMediator(ctx, g.ID, env.respondent.ID, env.respondent.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = env.svc.AssignMediator(ctx, g.ID, env.respondent.ID, env.admin.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestGrievanceService_ComputeEligibleMediators_GroupRespondent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Трое сертифицированных; один состоит в группе-ответчике.
	insider := &models.User{ID: uuid.New(), Username: "insider", Role: models.RoleMember, IsCertifiedMediator: true, IsActive: true}
	env.users.byID[insider.ID] = insider
	second := &models.User{ID: uuid.New(), Username: "second", Role: models.RoleMember, IsCertifiedMediator: true, IsActive: true}
	env.users.byID[second.ID] = second

	groupID := uuid.New()
	env.groups.groups[groupID] = &models.Group{ID: groupID, Name: "Комитет"}
	env.groups.members[groupID] = []uuid.UUID{insider.ID}

	g, err := env.svc.FileGrievance(ctx, FileGrievanceInput{
		ReporterID:        env.reporter.ID,
		Title:             "Комитет игнорирует обращения",
		Description:       "Комитет не отвечает на заявки уже два месяца.",
		RespondentGroupID: &groupID,
	})
	assert.NoError(t, err)

	eligible, err := env.svc.ComputeEligibleMediators(ctx, g.ID)
	assert.NoError(t, err)

	ids := make(map[uuid.UUID]bool, len(eligible))
	for _, u := range eligible {
		ids[u.ID] = true
	}
	assert.True(t, ids[env.mediator.ID])
	assert.True(t, ids[second.ID])
	assert.False(t, ids[insider.ID], "участник группы-ответчика исключён из пула")
}

func TestGrievanceService_RecordVote(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	g := env.file(t)

	v, err := env.svc.RecordVote(ctx, g.ID, env.outsider.ID, valueobject.ChoiceSupportReporter)
	assert.NoError(t, err)
	assert.Equal(t, valueobject.ChoiceSupportReporter, v.Choice)

	// Повторный голос отклоняется, не перезаписывается.
	_, err = env.svc.RecordVote(ctx, g.ID, env.outsider.ID, valueobject.ChoiceNeutral)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeAlreadyVoted))

	tally, err := env.svc.ComputeTally(ctx, g.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, tally.SupportReporter)
	assert.Equal(t, 0, tally.Neutral)
	assert.Equal(t, 1, tally.Total)
}

// Стороны дела и посредник не голосуют независимо от статуса жалобы.
func TestGrievanceService_RecordVote_PartiesForbidden(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	g := env.file(t)

	_, err := env.svc.RecordVote(ctx, g.ID, env.reporter.ID, valueobject.ChoiceSupportReporter)
	assert.True(t, apperror.IsForbidden(err))

	_, err = env.svc.RecordVote(ctx, g.ID, env.respondent.ID, valueobject.ChoiceSupportRespondent)
	assert.True(t, apperror.IsForbidden(err))

	g, err = env.svc.AssignMediator(ctx, g.ID, env.mediator.ID, env.admin.ID)
	assert.NoError(t, err)

	_, err = env.svc.RecordVote(ctx, g.ID, env.mediator.ID, valueobject.ChoiceNeutral)
	assert.True(t, apperror.IsForbidden(err))
}

func TestGrievanceService_AppendNote(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	g := env.file(t)

	entry, err := env.svc.AppendNote(ctx, g.ID, env.reporter.ID, valueobject.NoteTypeNote,
		"Прикладываю запись шума.", []string{"https://evidence.example/rec1"})
	assert.NoError(t, err)
	assert.False(t, entry.IsSystem)
	assert.Len(t, entry.EvidenceRefs, 1)

	_, err = env.svc.AppendNote(ctx, g.ID, env.respondent.ID, valueobject.NoteTypeResponse,
		"Шум был из другой квартиры.", nil)
	assert.NoError(t, err)

	// Эскалация доступна только заявителю.
	g, err = env.svc.AssignMediator(ctx, g.ID, env.mediator.ID, env.admin.ID)
	assert.NoError(t, err)
	_, err = env.svc.AppendNote(ctx, g.ID, env.mediator.ID, valueobject.NoteTypeEscalation, "эскалирую", nil)
	assert.True(t, apperror.IsForbidden(err))

	entries, err := env.svc.ListLogEntries(ctx, g.ID)
	assert.NoError(t, err)
	assert.Len(t, entries, 3) // две заметки + системная запись о назначении
}

// Терминальная жалоба читается, но отклоняет любые изменения.
func TestGrievanceService_TerminalIsReadOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	g := env.file(t)

	g, err := env.svc.AdvanceStatus(ctx, g.ID, env.reporter.ID, valueobject.StatusUnderReview, nil)
	assert.NoError(t, err)
	g, err = env.svc.AdvanceStatus(ctx, g.ID, env.admin.ID, valueobject.StatusDismissed, nil)
	assert.NoError(t, err)
	assert.Equal(t, valueobject.StatusDismissed, g.Status)

	_, err = env.svc.AdvanceStatus(ctx, g.ID, env.admin.ID, valueobject.StatusMediation, nil)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidState))

	_, err = env.svc.AssignMediator(ctx, g.ID, env.mediator.ID, env.admin.ID)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidState))

	_, err = env.svc.RecordVote(ctx, g.ID, env.outsider.ID, valueobject.ChoiceNeutral)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidState))

	_, err = env.svc.AppendNote(ctx, g.ID, env.reporter.ID, valueobject.NoteTypeNote, "ещё заметка", nil)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidState))

	// Чтение остаётся доступным.
	got, err := env.svc.GetGrievance(ctx, g.ID)
	assert.NoError(t, err)
	assert.Equal(t, valueobject.StatusDismissed, got.Status)

	_, err = env.svc.ListLogEntries(ctx, g.ID)
	assert.NoError(t, err)
}

func TestGrievanceService_NotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.svc.GetGrievance(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))

	_, err = env.svc.AdvanceStatus(ctx, uuid.New(), env.admin.ID, valueobject.StatusUnderReview, nil)
	assert.True(t, apperror.IsNotFound(err))
}
