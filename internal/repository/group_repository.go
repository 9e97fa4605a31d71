package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/communityhub/grievance-backend/internal/models"
)

var ErrGroupNotFound = errors.New("group not found")

// GroupRepository отвечает за группы и членство в них.
type GroupRepository struct {
	db *sqlx.DB
}

func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) Create(ctx context.Context, g *models.Group) error {
	query := `
		INSERT INTO groups (name, description, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query, g.Name, g.Description, g.CreatedBy).
		Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return fmt.Errorf("group repository: create %w", err)
	}
	return nil
}

func (r *GroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var g models.Group
	if err := r.db.GetContext(ctx, &g, `SELECT * FROM groups WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("group repository: get by id %w", err)
	}
	return &g, nil
}

// ListMemberIDs возвращает идентификаторы всех участников группы.
// Результат не кэшируется: членство может измениться между запросами.
func (r *GroupRepository) ListMemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM group_members WHERE group_id = $1
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("group repository: list member ids %w", err)
	}
	return ids, nil
}

// ListMembers возвращает записи членства группы в порядке вступления.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]models.GroupMember, error) {
	members := []models.GroupMember{}
	err := r.db.SelectContext(ctx, &members, `
		SELECT * FROM group_members WHERE group_id = $1 ORDER BY created_at ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("group repository: list members %w", err)
	}
	return members, nil
}

// IsMember проверяет членство пользователя в группе.
func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("group repository: is member %w", err)
	}
	return exists, nil
}

// AddMember добавляет участника в группу, повтор вставки не считается ошибкой.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID uuid.UUID, role string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, groupID, userID, role)
	if err != nil {
		return fmt.Errorf("group repository: add member %w", err)
	}
	return nil
}
