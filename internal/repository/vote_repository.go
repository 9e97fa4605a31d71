package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/communityhub/grievance-backend/internal/domain/valueobject"
	"github.com/communityhub/grievance-backend/internal/models"
)

// VoteRepository хранит голоса по жалобам.
type VoteRepository struct {
	db *sqlx.DB
}

func NewVoteRepository(db *sqlx.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Insert пытается записать голос. Возвращает false, если голос этой пары
// (grievance_id, voter_id) уже существует: уникальный индекс закрывает гонку
// двух одновременных вставок, проверка и вставка атомарны на стороне базы.
func (r *VoteRepository) Insert(ctx context.Context, v *models.Vote) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO votes (grievance_id, voter_id, choice)
		VALUES ($1, $2, $3)
		ON CONFLICT (grievance_id, voter_id) DO NOTHING
	`, v.GrievanceID, v.VoterID, v.Choice)
	if err != nil {
		return false, fmt.Errorf("vote repository: insert %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("vote repository: insert rows affected %w", err)
	}
	return n > 0, nil
}

// ListByGrievance возвращает голоса жалобы в порядке подачи.
func (r *VoteRepository) ListByGrievance(ctx context.Context, grievanceID uuid.UUID) ([]models.Vote, error) {
	var votes []models.Vote
	err := r.db.SelectContext(ctx, &votes, `
		SELECT * FROM votes WHERE grievance_id = $1 ORDER BY created_at ASC, id ASC
	`, grievanceID)
	if err != nil {
		return nil, fmt.Errorf("vote repository: list %w", err)
	}
	return votes, nil
}

// Tally пересчитывает сводку голосов по требованию. Участников у жалобы немного,
// поэтому инкрементального счётчика нет - всегда агрегируем по таблице.
func (r *VoteRepository) Tally(ctx context.Context, grievanceID uuid.UUID) (*models.VoteTally, error) {
	rows := []struct {
		Choice valueobject.VoteChoice `db:"choice"`
		Count  int                    `db:"count"`
	}{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT choice, COUNT(*) AS count FROM votes WHERE grievance_id = $1 GROUP BY choice
	`, grievanceID)
	if err != nil {
		return nil, fmt.Errorf("vote repository: tally %w", err)
	}

	tally := &models.VoteTally{GrievanceID: grievanceID}
	for _, row := range rows {
		switch row.Choice {
		case valueobject.ChoiceSupportReporter:
			tally.SupportReporter = row.Count
		case valueobject.ChoiceNeutral:
			tally.Neutral = row.Count
		case valueobject.ChoiceSupportRespondent:
			tally.SupportRespondent = row.Count
		}
		tally.Total += row.Count
	}
	return tally, nil
}
