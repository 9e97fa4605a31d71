package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/communityhub/grievance-backend/internal/models"
)

func TestFilterEligibleMediators(t *testing.T) {
	reporter := models.User{ID: uuid.New(), Username: "reporter", IsCertifiedMediator: true}
	respondent := models.User{ID: uuid.New(), Username: "respondent", IsCertifiedMediator: true}
	outsider := models.User{ID: uuid.New(), Username: "outsider", IsCertifiedMediator: true}

	g := &models.Grievance{
		ReporterID:       reporter.ID,
		RespondentUserID: &respondent.ID,
	}

	eligible := FilterEligibleMediators(g, []models.User{reporter, respondent, outsider}, nil)

	assert.Len(t, eligible, 1)
	assert.Equal(t, outsider.ID, eligible[0].ID)
}

// Жалоба на группу исключает из пула каждого её участника, а не только
// формального представителя.
func TestFilterEligibleMediators_GroupRespondent(t *testing.T) {
	reporter := uuid.New()
	groupID := uuid.New()
	member := models.User{ID: uuid.New(), IsCertifiedMediator: true}
	outsider := models.User{ID: uuid.New(), IsCertifiedMediator: true}

	g := &models.Grievance{
		ReporterID:        reporter,
		RespondentGroupID: &groupID,
	}

	eligible := FilterEligibleMediators(g, []models.User{member, outsider}, []uuid.UUID{member.ID})

	assert.Len(t, eligible, 1)
	assert.Equal(t, outsider.ID, eligible[0].ID)
}

func TestFilterEligibleMediators_EmptyPool(t *testing.T) {
	g := &models.Grievance{ReporterID: uuid.New()}

	eligible := FilterEligibleMediators(g, nil, nil)
	assert.Empty(t, eligible)
}
