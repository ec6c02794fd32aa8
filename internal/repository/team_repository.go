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

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// GetMember возвращает участника команды
func (r *TeamRepository) GetMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	query := `
        SELECT id, team_id, user_id, role, status, joined_at
        FROM team_members
        WHERE team_id = $1 AND user_id = $2`

	var member domain.TeamMember
	err := r.db.GetContext(ctx, &member, query, teamID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}

	return &member, nil
}

// GetTrashSettings возвращает настройки корзины команды, создавая запись
// с окном хранения по умолчанию при первом обращении
func (r *TeamRepository) GetTrashSettings(ctx context.Context, teamID string, defaultRetentionDays int) (*domain.TrashSettings, error) {
	var settings domain.TrashSettings
	query := `SELECT team_id, retention_days, updated_at FROM trash_settings WHERE team_id = $1`

	err := r.db.GetContext(ctx, &settings, query, teamID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get trash settings: %w", err)
		}

		insert := `
            INSERT INTO trash_settings (team_id, retention_days)
            VALUES ($1, $2)
            ON CONFLICT (team_id) DO NOTHING`
		if _, err := r.db.ExecContext(ctx, insert, teamID, defaultRetentionDays); err != nil {
			return nil, fmt.Errorf("failed to create default trash settings: %w", err)
		}

		if err := r.db.GetContext(ctx, &settings, query, teamID); err != nil {
			return nil, fmt.Errorf("failed to reread trash settings: %w", err)
		}
	}

	return &settings, nil
}

// UpdateTrashSettings обновляет окно хранения корзины команды
func (r *TeamRepository) UpdateTrashSettings(ctx context.Context, settings *domain.TrashSettings) error {
	query := `
        INSERT INTO trash_settings (team_id, retention_days)
        VALUES ($1, $2)
        ON CONFLICT (team_id) DO UPDATE
        SET retention_days = EXCLUDED.retention_days, updated_at = CURRENT_TIMESTAMP
        RETURNING updated_at`

	return r.db.QueryRowContext(ctx, query, settings.TeamID, settings.RetentionDays).
		Scan(&settings.UpdatedAt)
}

// RecomputeUsage пересчитывает занятое командой место по живым документам.
// Вызывается после очистки, когда место освободилось.
func (r *TeamRepository) RecomputeUsage(ctx context.Context, teamID string) (*domain.TeamUsage, error) {
	query := `
        INSERT INTO team_usage (team_id, used_bytes)
        VALUES ($1, (SELECT COALESCE(SUM(size_bytes), 0) FROM documents WHERE team_id = $1))
        ON CONFLICT (team_id) DO UPDATE
        SET used_bytes = EXCLUDED.used_bytes, updated_at = CURRENT_TIMESTAMP
        RETURNING team_id, used_bytes, updated_at`

	var usage domain.TeamUsage
	if err := r.db.GetContext(ctx, &usage, query, teamID); err != nil {
		return nil, fmt.Errorf("failed to recompute team usage: %w", err)
	}

	return &usage, nil
}

// DeleteOrphanDocumentsTx удаляет перечисленные переиспользуемые
// документы, если на них больше не ссылается ни одна комната. Вызывается
// после удаления строк dataroom_documents в той же транзакции.
func (r *TeamRepository) DeleteOrphanDocumentsTx(ctx context.Context, tx *sqlx.Tx, documentIDs []uuid.UUID) error {
	if len(documentIDs) == 0 {
		return nil
	}

	_, err := tx.ExecContext(ctx, `
        DELETE FROM documents d
        WHERE d.id = ANY($1::uuid[])
        AND NOT EXISTS (
            SELECT 1 FROM dataroom_documents dd WHERE dd.document_id = d.id
        )`, uuidArray(documentIDs))
	if err != nil {
		return fmt.Errorf("failed to delete orphan documents: %w", err)
	}

	return nil
}
