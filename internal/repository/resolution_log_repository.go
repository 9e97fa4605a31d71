package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/communityhub/grievance-backend/internal/models"
)

// ResolutionLogRepository хранит журнал разбирательства. Таблица только
// дописывается: методов изменения и удаления записей нет намеренно.
type ResolutionLogRepository struct {
	db *sqlx.DB
}

func NewResolutionLogRepository(db *sqlx.DB) *ResolutionLogRepository {
	return &ResolutionLogRepository{db: db}
}

// insertLogEntry пишет запись журнала через произвольный executor,
// чтобы вставка могла идти в одной транзакции со сменой статуса.
func insertLogEntry(ctx context.Context, ext sqlx.ExtContext, e *models.ResolutionLogEntry) error {
	query := `
		INSERT INTO resolution_log (grievance_id, author_id, note_type, content, evidence_refs, is_system)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	if err := ext.QueryRowxContext(ctx, query,
		e.GrievanceID, e.AuthorID, e.NoteType, e.Content, e.EvidenceRefs, e.IsSystem,
	).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("resolution log repository: insert %w", err)
	}
	return nil
}

// Add дописывает одиночную запись журнала (человеческие заметки вне смены статуса).
func (r *ResolutionLogRepository) Add(ctx context.Context, e *models.ResolutionLogEntry) error {
	return insertLogEntry(ctx, r.db, e)
}

// ListByGrievance возвращает журнал жалобы в порядке создания записей.
func (r *ResolutionLogRepository) ListByGrievance(ctx context.Context, grievanceID uuid.UUID) ([]models.ResolutionLogEntry, error) {
	var entries []models.ResolutionLogEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM resolution_log WHERE grievance_id = $1 ORDER BY created_at ASC, id ASC
	`, grievanceID)
	if err != nil {
		return nil, fmt.Errorf("resolution log repository: list %w", err)
	}
	return entries, nil
}
