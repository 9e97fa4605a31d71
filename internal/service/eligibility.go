package service

import (
	"github.com/google/uuid"

	"github.com/communityhub/grievance-backend/internal/models"
)

// FilterEligibleMediators отбирает из пула сертифицированных посредников тех,
// у кого нет прямого интереса в деле: исключаются заявитель, названный
// ответчик и — если ответчик группа — каждый её участник. Результат
// действителен только в рамках одного запроса назначения: состав группы и
// стороны могли измениться к следующему вызову, поэтому он не кэшируется.
func FilterEligibleMediators(g *models.Grievance, candidates []models.User, respondentGroupMembers []uuid.UUID) []models.User {
	excluded := make(map[uuid.UUID]struct{}, len(respondentGroupMembers)+2)
	excluded[g.ReporterID] = struct{}{}
	if g.RespondentUserID != nil {
		excluded[*g.RespondentUserID] = struct{}{}
	}
	for _, memberID := range respondentGroupMembers {
		excluded[memberID] = struct{}{}
	}

	eligible := make([]models.User, 0, len(candidates))
	for _, candidate := range candidates {
		if _, conflicted := excluded[candidate.ID]; conflicted {
			continue
		}
		eligible = append(eligible, candidate)
	}
	return eligible
}
