package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dataroomdrive/internal/domain"
)

type DataroomRepository struct {
	db *sqlx.DB
}

func NewDataroomRepository(db *sqlx.DB) *DataroomRepository {
	return &DataroomRepository{db: db}
}

// GetByID возвращает комнату, проверяя ее принадлежность команде
func (r *DataroomRepository) GetByID(ctx context.Context, teamID string, id uuid.UUID) (*domain.Dataroom, error) {
	query := `
        SELECT id, team_id, name, created_at, updated_at
        FROM datarooms
        WHERE id = $1 AND team_id = $2`

	var room domain.Dataroom
	err := r.db.GetContext(ctx, &room, query, id, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataroom: %w", err)
	}

	return &room, nil
}

// GetTeamIDByDataroom возвращает команду-владельца комнаты.
// Нужен плановой очистке, которая работает вне контекста запроса команды.
func (r *DataroomRepository) GetTeamIDByDataroom(ctx context.Context, id uuid.UUID) (string, error) {
	var teamID string
	err := r.db.GetContext(ctx, &teamID, `SELECT team_id FROM datarooms WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to get dataroom team: %w", err)
	}

	return teamID, nil
}
