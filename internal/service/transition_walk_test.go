package service

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/communityhub/grievance-backend/internal/domain/valueobject"
	"github.com/communityhub/grievance-backend/internal/models"
	"github.com/communityhub/grievance-backend/internal/pkg/apperror"
)

// Случайное блуждание по жизненному циклу жалобы: на каждом шаге случайный
// участник пытается перевести жалобу в случайный статус. Исход каждого вызова
// сверяется с вердиктом чистой CheckTransition на том же состоянии, а version
// и журнал — с числом успешных шагов.
func TestGrievanceService_AdvanceStatus_RandomWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	targets := []valueobject.GrievanceStatus{
		valueobject.StatusOpen,
		valueobject.StatusUnderReview,
		valueobject.StatusMediation,
		valueobject.StatusResolved,
		valueobject.StatusDismissed,
	}

	for walk := 0; walk < 50; walk++ {
		env := newTestEnv()
		g := env.file(t)

		g, err := env.svc.AssignMediator(ctx, g.ID, env.mediator.ID, env.admin.ID)
		assert.NoError(t, err)

		callers := []*models.User{env.reporter, env.respondent, env.mediator, env.admin, env.outsider}

		version := g.Version
		systemEntries := 1 // запись о назначении посредника

		for step := 0; step < 30; step++ {
			caller := callers[rng.Intn(len(callers))]
			target := targets[rng.Intn(len(targets))]

			stored := env.grievances.byID[g.ID]
			before := stored.Status
			verdict := CheckTransition(before, target, RoleOf(stored, caller))

			var text *string
			if target == valueobject.StatusResolved {
				s := "итог медиации"
				text = &s
			}

			got, err := env.svc.AdvanceStatus(ctx, g.ID, caller.ID, target, text)
			if verdict == nil {
				assert.NoError(t, err, "walk %d step %d: %s → %s от %s", walk, step, before, target, caller.Username)
				assert.Equal(t, target, got.Status)
				version++
				systemEntries++
				assert.Equal(t, version, got.Version)
			} else {
				assert.Error(t, err, "walk %d step %d: %s → %s от %s", walk, step, before, target, caller.Username)
				var want, have *apperror.AppError
				assert.ErrorAs(t, verdict, &want)
				assert.ErrorAs(t, err, &have)
				assert.Equal(t, want.Code, have.Code)
				assert.Equal(t, before, env.grievances.byID[g.ID].Status, "статус не меняется при отказе")
				assert.Equal(t, version, env.grievances.byID[g.ID].Version, "version не меняется при отказе")
			}
		}

		final := env.grievances.byID[g.ID]
		if final.Status.IsTerminal() {
			_, err := env.svc.AdvanceStatus(ctx, g.ID, env.admin.ID, valueobject.StatusMediation, nil)
			assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidState))
		}

		entries, err := env.svc.ListLogEntries(ctx, g.ID)
		assert.NoError(t, err)
		count := 0
		for _, e := range entries {
			if e.IsSystem {
				count++
			}
		}
		assert.Equal(t, systemEntries, count, "walk %d: по одной системной записи на успешный шаг", walk)
	}
}
