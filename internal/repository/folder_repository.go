package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"dataroomdrive/internal/domain"
)

type FolderRepository struct {
	db *sqlx.DB
}

func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

const folderColumns = `id, dataroom_id, name, path, parent_id, order_index, created_at, updated_at, removed_at`

// Create создает папку, строя материализованный путь от родителя
func (r *FolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	parentPath := ""
	if folder.ParentID != nil {
		// Родитель должен существовать и быть живым
		err := tx.QueryRowContext(ctx,
			`SELECT path FROM dataroom_folders WHERE id = $1 AND dataroom_id = $2 AND removed_at IS NULL`,
			folder.ParentID, folder.DataroomID,
		).Scan(&parentPath)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("parent folder: %w", domain.ErrNotFound)
			}
			return fmt.Errorf("failed to get parent folder: %w", err)
		}
	}

	path := domain.ChildPath(parentPath, folder.Name)

	query := `
        INSERT INTO dataroom_folders (dataroom_id, name, path, parent_id, order_index)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		folder.DataroomID,
		folder.Name,
		path,
		folder.ParentID,
		folder.OrderIndex,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	folder.Path = path

	return tx.Commit()
}

// GetByID возвращает папку независимо от того, в корзине она или нет
func (r *FolderRepository) GetByID(ctx context.Context, dataroomID uuid.UUID, id int64) (*domain.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM dataroom_folders WHERE id = $1 AND dataroom_id = $2`

	var folder domain.Folder
	err := r.db.GetContext(ctx, &folder, query, id, dataroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return &folder, nil
}

// GetByIDTx — то же самое внутри транзакции вызывающего
func (r *FolderRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, dataroomID uuid.UUID, id int64) (*domain.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM dataroom_folders WHERE id = $1 AND dataroom_id = $2`

	var folder domain.Folder
	err := tx.GetContext(ctx, &folder, query, id, dataroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return &folder, nil
}

// ListLive возвращает живые папки комнаты для отображения иерархии
func (r *FolderRepository) ListLive(ctx context.Context, dataroomID uuid.UUID) ([]domain.Folder, error) {
	query := `
        SELECT ` + folderColumns + `
        FROM dataroom_folders
        WHERE dataroom_id = $1 AND removed_at IS NULL
        ORDER BY path`

	var folders []domain.Folder
	if err := r.db.SelectContext(ctx, &folders, query, dataroomID); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

// CollectSubtreeTx возвращает все папки поддерева, включая корень, по
// префиксу материализованного пути. Сравнение идет строго по границе
// сегмента: "/a/b" попадает в поддерево "/a", а сосед "/ab" — нет.
// Возвращаются и живые, и удаленные строки; фильтрация — на вызывающем.
func (r *FolderRepository) CollectSubtreeTx(ctx context.Context, tx *sqlx.Tx, dataroomID uuid.UUID, rootPath string) ([]domain.Folder, error) {
	query := `
        SELECT ` + folderColumns + `
        FROM dataroom_folders
        WHERE dataroom_id = $1 AND (path = $2 OR path LIKE $3)
        ORDER BY path`

	var folders []domain.Folder
	err := tx.SelectContext(ctx, &folders, query, dataroomID, rootPath, rootPath+"/%")
	if err != nil {
		return nil, fmt.Errorf("failed to collect folder subtree: %w", err)
	}

	return folders, nil
}

// MarkRemovedTx помечает папки как удаленные
func (r *FolderRepository) MarkRemovedTx(ctx context.Context, tx *sqlx.Tx, folderIDs []int64, removedAt time.Time) error {
	if len(folderIDs) == 0 {
		return nil
	}

	_, err := tx.ExecContext(ctx,
		`UPDATE dataroom_folders SET removed_at = $1, updated_at = CURRENT_TIMESTAMP WHERE id = ANY($2)`,
		removedAt, pq.Array(folderIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to mark folders removed: %w", err)
	}

	return nil
}

// ClearRemovedTx снимает пометку удаления с папок
func (r *FolderRepository) ClearRemovedTx(ctx context.Context, tx *sqlx.Tx, folderIDs []int64) error {
	if len(folderIDs) == 0 {
		return nil
	}

	_, err := tx.ExecContext(ctx,
		`UPDATE dataroom_folders SET removed_at = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ANY($1)`,
		pq.Array(folderIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to clear folder removal: %w", err)
	}

	return nil
}

// DeleteTx окончательно удаляет папки одной массовой операцией.
// Ссылка parent_id самоссылающаяся, поэтому весь список уходит одним
// запросом — проверка внешнего ключа выполняется в конце оператора.
func (r *FolderRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, folderIDs []int64) error {
	if len(folderIDs) == 0 {
		return nil
	}

	_, err := tx.ExecContext(ctx,
		`DELETE FROM dataroom_folders WHERE id = ANY($1)`,
		pq.Array(folderIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to delete folders: %w", err)
	}

	return nil
}
