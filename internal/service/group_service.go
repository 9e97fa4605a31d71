package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/communityhub/grievance-backend/internal/models"
	"github.com/communityhub/grievance-backend/internal/pkg/apperror"
	"github.com/communityhub/grievance-backend/internal/repository"
	"github.com/communityhub/grievance-backend/internal/validation"
)

// GroupStore описывает хранилище групп, достаточное для сервиса.
type GroupStore interface {
	Create(ctx context.Context, g *models.Group) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]models.GroupMember, error)
	AddMember(ctx context.Context, groupID, userID uuid.UUID, role string) error
}

// GroupService управляет группами, которые могут выступать ответчиком по жалобе.
type GroupService struct {
	groups GroupStore
	users  UserDirectory
}

// NewGroupService создаёт сервис групп.
func NewGroupService(groups GroupStore, users UserDirectory) *GroupService {
	return &GroupService{groups: groups, users: users}
}

// CreateGroup создаёт группу, создатель сразу становится её участником.
func (s *GroupService) CreateGroup(ctx context.Context, name string, description *string, createdBy uuid.UUID) (*models.Group, error) {
	if err := validation.ValidateLength("название группы", name, validation.MinTitleLength, validation.MaxTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	g := &models.Group{
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnavailable, "не удалось создать группу")
	}
	if err := s.groups.AddMember(ctx, g.ID, createdBy, "owner"); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnavailable, "не удалось добавить создателя в группу")
	}
	return g, nil
}

// GetGroup возвращает группу по идентификатору.
func (s *GroupService) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, apperror.ErrGroupNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeUnavailable, "не удалось получить группу")
	}
	return g, nil
}

// ListMembers возвращает состав группы.
func (s *GroupService) ListMembers(ctx context.Context, groupID uuid.UUID) ([]models.GroupMember, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnavailable, "не удалось получить участников группы")
	}
	return members, nil
}

// AddMember добавляет участника в группу. Разрешено администратору
// сообщества и создателю группы.
func (s *GroupService) AddMember(ctx context.Context, groupID, userID, requestedBy uuid.UUID) error {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}

	caller, err := s.users.GetByID(ctx, requestedBy)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.ErrUserNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeUnavailable, "не удалось получить пользователя")
	}
	if !caller.IsAdmin() && g.CreatedBy != requestedBy {
		return apperror.ErrForbidden
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.ErrUserNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeUnavailable, "не удалось получить пользователя")
	}

	if err := s.groups.AddMember(ctx, groupID, userID, "member"); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeUnavailable, "не удалось добавить участника в группу")
	}
	return nil
}
