package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/communityhub/grievance-backend/internal/models"
	"github.com/communityhub/grievance-backend/internal/repository/common"
)

var ErrGrievanceNotFound = errors.New("grievance not found")

// GrievanceRepository хранит жалобы. Все изменяющие запросы условны:
// строка обновляется только если version в базе совпадает с version,
// под которым её читал вызывающий, и при успехе version увеличивается.
type GrievanceRepository struct {
	db *sqlx.DB
}

func NewGrievanceRepository(db *sqlx.DB) *GrievanceRepository {
	return &GrievanceRepository{db: db}
}

// Create сохраняет новую жалобу с version = 1.
func (r *GrievanceRepository) Create(ctx context.Context, g *models.Grievance) error {
	query := `
		INSERT INTO grievances (title, description, category, priority, reporter_id,
			respondent_user_id, respondent_group_id, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		RETURNING id, version, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		g.Title, g.Description, g.Category, g.Priority, g.ReporterID,
		g.RespondentUserID, g.RespondentGroupID, g.Status,
	).Scan(&g.ID, &g.Version, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return fmt.Errorf("grievance repository: create %w", err)
	}
	return nil
}

func (r *GrievanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Grievance, error) {
	var g models.Grievance
	if err := r.db.GetContext(ctx, &g, `SELECT * FROM grievances WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGrievanceNotFound
		}
		return nil, fmt.Errorf("grievance repository: get by id %w", err)
	}
	return &g, nil
}

// UpdateStatus применяет смену статуса и пишет системную запись журнала в одной
// транзакции. Проигравший параллельную гонку вызов получает common.ErrStaleVersion.
func (r *GrievanceRepository) UpdateStatus(ctx context.Context, g *models.Grievance, entry *models.ResolutionLogEntry) error {
	return r.updateConditional(ctx, g, entry, `
		UPDATE grievances
		SET status = $3, resolution_text = $4, resolved_at = $5, updated_at = NOW(), version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, g.Status, g.ResolutionText, g.ResolvedAt)
}

// UpdateMediator назначает или переназначает посредника под тем же условием по version.
func (r *GrievanceRepository) UpdateMediator(ctx context.Context, g *models.Grievance, entry *models.ResolutionLogEntry) error {
	return r.updateConditional(ctx, g, entry, `
		UPDATE grievances
		SET mediator_id = $3, updated_at = NOW(), version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, g.MediatorID)
}

func (r *GrievanceRepository) updateConditional(ctx context.Context, g *models.Grievance, entry *models.ResolutionLogEntry, query string, extra ...interface{}) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("grievance repository: begin tx %w", err)
	}
	defer tx.Rollback()

	args := append([]interface{}{g.ID, g.Version}, extra...)
	err = tx.QueryRowxContext(ctx, query, args...).Scan(&g.Version, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Строка либо отсутствует, либо версия устарела - различаем для вызывающего.
		var exists bool
		if chkErr := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM grievances WHERE id = $1)`, g.ID); chkErr != nil {
			return fmt.Errorf("grievance repository: stale check %w", chkErr)
		}
		if !exists {
			return ErrGrievanceNotFound
		}
		return common.ErrStaleVersion
	}
	if err != nil {
		return fmt.Errorf("grievance repository: conditional update %w", err)
	}

	if entry != nil {
		if err := insertLogEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("grievance repository: commit %w", err)
	}
	return nil
}

// GrievanceFilter описывает выборку для списочных запросов.
type GrievanceFilter struct {
	ReporterID   *uuid.UUID
	RespondentID *uuid.UUID
	MediatorID   *uuid.UUID
	Status       string
}

// List возвращает жалобы по фильтру, свежие сначала.
func (r *GrievanceRepository) List(ctx context.Context, filter GrievanceFilter, limit, offset int) ([]models.Grievance, error) {
	query := `SELECT * FROM grievances WHERE 1=1`
	args := []interface{}{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		query += fmt.Sprintf(" AND reporter_id = $%d", len(args))
	}
	if filter.RespondentID != nil {
		args = append(args, *filter.RespondentID)
		query += fmt.Sprintf(" AND respondent_user_id = $%d", len(args))
	}
	if filter.MediatorID != nil {
		args = append(args, *filter.MediatorID)
		query += fmt.Sprintf(" AND mediator_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var grievances []models.Grievance
	if err := r.db.SelectContext(ctx, &grievances, query, args...); err != nil {
		return nil, fmt.Errorf("grievance repository: list %w", err)
	}
	return grievances, nil
}
