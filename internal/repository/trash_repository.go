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

type TrashRepository struct {
	db *sqlx.DB
}

func NewTrashRepository(db *sqlx.DB) *TrashRepository {
	return &TrashRepository{db: db}
}

const trashColumns = `id, item_type, dataroom_id, dataroom_folder_id, dataroom_document_id,
    parent_id, name, trash_path, full_path, deleted_at, purge_at`

// InsertTx создает индексную запись корзины
func (r *TrashRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, item *domain.TrashItem) error {
	query := `
        INSERT INTO trash_items
            (id, item_type, dataroom_id, dataroom_folder_id, dataroom_document_id,
             parent_id, name, trash_path, full_path, deleted_at, purge_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.ExecContext(ctx, query,
		item.ID,
		item.ItemType,
		item.DataroomID,
		item.DataroomFolderID,
		item.DataroomDocumentID,
		item.ParentID,
		item.Name,
		item.TrashPath,
		item.FullPath,
		item.DeletedAt,
		item.PurgeAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trash item: %w", err)
	}

	return nil
}

// GetByID возвращает запись корзины в пределах комнаты
func (r *TrashRepository) GetByID(ctx context.Context, dataroomID, id uuid.UUID) (*domain.TrashItem, error) {
	query := `SELECT ` + trashColumns + ` FROM trash_items WHERE id = $1 AND dataroom_id = $2`

	var item domain.TrashItem
	err := r.db.GetContext(ctx, &item, query, id, dataroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trash item: %w", err)
	}

	return &item, nil
}

// GetByIDForUpdateTx блокирует запись корзины на время транзакции.
// Блокировка закрывает гонку между восстановлением и очисткой одной и
// той же записи: вторая операция дождется первую и не найдет строку.
func (r *TrashRepository) GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, dataroomID, id uuid.UUID) (*domain.TrashItem, error) {
	query := `SELECT ` + trashColumns + ` FROM trash_items WHERE id = $1 AND dataroom_id = $2 FOR UPDATE`

	var item domain.TrashItem
	err := tx.GetContext(ctx, &item, query, id, dataroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock trash item: %w", err)
	}

	return &item, nil
}

// GetByFolderIDTx находит trash-запись по идентификатору удаленной папки
func (r *TrashRepository) GetByFolderIDTx(ctx context.Context, tx *sqlx.Tx, dataroomID uuid.UUID, folderID int64) (*domain.TrashItem, error) {
	query := `SELECT ` + trashColumns + ` FROM trash_items WHERE dataroom_folder_id = $1 AND dataroom_id = $2`

	var item domain.TrashItem
	err := tx.GetContext(ctx, &item, query, folderID, dataroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trash item by folder: %w", err)
	}

	return &item, nil
}

// List возвращает содержимое корзины комнаты. При rootOnly отдаются только
// вершины поддеревьев корзины (parent_id IS NULL) для неглубокого
// просмотра; иначе — полный плоский список, из которого вызывающий
// собирает дерево по parent_id.
func (r *TrashRepository) List(ctx context.Context, dataroomID uuid.UUID, rootOnly bool) ([]domain.TrashItem, error) {
	query := `SELECT ` + trashColumns + ` FROM trash_items WHERE dataroom_id = $1`
	if rootOnly {
		query += ` AND parent_id IS NULL`
	}
	query += ` ORDER BY deleted_at DESC, trash_path`

	var items []domain.TrashItem
	if err := r.db.SelectContext(ctx, &items, query, dataroomID); err != nil {
		return nil, fmt.Errorf("failed to list trash items: %w", err)
	}

	return items, nil
}

// ListExpired возвращает записи с истекшим сроком хранения. Граница
// включающая: элемент с purge_at равным now попадает в этот проход.
// Порядок: сначала папки, затем документы, внутри типа — старые раньше.
func (r *TrashRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.TrashItem, error) {
	query := `
        SELECT ` + trashColumns + `
        FROM trash_items
        WHERE purge_at <= $1
        ORDER BY item_type DESC, deleted_at ASC`

	var items []domain.TrashItem
	if err := r.db.SelectContext(ctx, &items, query, now); err != nil {
		return nil, fmt.Errorf("failed to list expired trash items: %w", err)
	}

	return items, nil
}

// DeleteByIDsTx удаляет записи корзины по их идентификаторам
func (r *TrashRepository) DeleteByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := tx.ExecContext(ctx,
		`DELETE FROM trash_items WHERE id = ANY($1::uuid[])`,
		uuidArray(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to delete trash items: %w", err)
	}

	return nil
}

// DeleteByTargetsTx удаляет записи корзины, ссылающиеся на перечисленные
// папки и документы. Используется при восстановлении и очистке поддерева,
// где известны подлежащие строки, а не сами trash-записи: поддерево могло
// пополниться записями уже после создания вершины.
func (r *TrashRepository) DeleteByTargetsTx(ctx context.Context, tx *sqlx.Tx, folderIDs []int64, documentIDs []uuid.UUID) error {
	if len(folderIDs) > 0 {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM trash_items WHERE dataroom_folder_id = ANY($1)`,
			pq.Array(folderIDs),
		)
		if err != nil {
			return fmt.Errorf("failed to delete folder trash items: %w", err)
		}
	}

	if len(documentIDs) > 0 {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM trash_items WHERE dataroom_document_id = ANY($1::uuid[])`,
			uuidArray(documentIDs),
		)
		if err != nil {
			return fmt.Errorf("failed to delete document trash items: %w", err)
		}
	}

	return nil
}
