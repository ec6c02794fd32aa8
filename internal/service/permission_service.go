package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"dataroomdrive/internal/domain"
	"dataroomdrive/internal/repository"
)

// PermissionService — сквозная проверка прав перед операциями с корзиной.
// Состояния не держит: на каждый вызов одно чтение участника команды.
type PermissionService struct {
	teamRepo     *repository.TeamRepository
	dataroomRepo *repository.DataroomRepository
}

func NewPermissionService(
	teamRepo *repository.TeamRepository,
	dataroomRepo *repository.DataroomRepository,
) *PermissionService {
	return &PermissionService{
		teamRepo:     teamRepo,
		dataroomRepo: dataroomRepo,
	}
}

// RequireMember проверяет активное членство пользователя в команде
func (s *PermissionService) RequireMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	member, err := s.teamRepo.GetMember(ctx, teamID, userID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrForbidden
		}
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	if member.Status != "active" {
		return nil, domain.ErrForbidden
	}

	return member, nil
}

// RequireManager дополнительно требует роль ADMIN или MANAGER.
// Деструктивные операции (удаление, немедленная очистка) закрыты для
// обычных участников.
func (s *PermissionService) RequireManager(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	member, err := s.RequireMember(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}

	if !member.Role.CanManage() {
		return nil, domain.ErrForbidden
	}

	return member, nil
}

// ResolveDataroom проверяет, что комната существует и принадлежит команде
func (s *PermissionService) ResolveDataroom(ctx context.Context, teamID string, dataroomID uuid.UUID) (*domain.Dataroom, error) {
	return s.dataroomRepo.GetByID(ctx, teamID, dataroomID)
}
