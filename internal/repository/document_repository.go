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

type DocumentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const dataroomDocumentColumns = `
    dd.id, dd.dataroom_id, dd.document_id, dd.folder_id, dd.order_index,
    dd.created_at, dd.removed_at,
    d.name, d.storage_key, d.size_bytes`

// CreateInDataroom создает документ команды и сразу помещает его в комнату
func (r *DocumentRepository) CreateInDataroom(ctx context.Context, teamID string, dd *domain.DataroomDocument) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Папка, если указана, должна существовать в той же комнате
	if dd.FolderID != nil {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM dataroom_folders WHERE id = $1 AND dataroom_id = $2)`,
			dd.FolderID, dd.DataroomID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check folder: %w", err)
		}
		if !exists {
			return fmt.Errorf("folder: %w", domain.ErrNotFound)
		}
	}

	dd.DocumentID = uuid.New()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, team_id, name, storage_key, size_bytes) VALUES ($1, $2, $3, $4, $5)`,
		dd.DocumentID, teamID, dd.Name, dd.StorageKey, dd.SizeBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	dd.ID = uuid.New()
	err = tx.QueryRowContext(ctx,
		`INSERT INTO dataroom_documents (id, dataroom_id, document_id, folder_id, order_index)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING created_at`,
		dd.ID, dd.DataroomID, dd.DocumentID, dd.FolderID, dd.OrderIndex,
	).Scan(&dd.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to place document in dataroom: %w", err)
	}

	return tx.Commit()
}

// GetByID возвращает документ комнаты вместе с метаданными документа
func (r *DocumentRepository) GetByID(ctx context.Context, dataroomID, id uuid.UUID) (*domain.DataroomDocument, error) {
	query := `
        SELECT ` + dataroomDocumentColumns + `
        FROM dataroom_documents dd
        JOIN documents d ON d.id = dd.document_id
        WHERE dd.id = $1 AND dd.dataroom_id = $2`

	var doc domain.DataroomDocument
	err := r.db.GetContext(ctx, &doc, query, id, dataroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataroom document: %w", err)
	}

	return &doc, nil
}

// GetByIDTx — то же самое внутри транзакции вызывающего
func (r *DocumentRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, dataroomID, id uuid.UUID) (*domain.DataroomDocument, error) {
	query := `
        SELECT ` + dataroomDocumentColumns + `
        FROM dataroom_documents dd
        JOIN documents d ON d.id = dd.document_id
        WHERE dd.id = $1 AND dd.dataroom_id = $2`

	var doc domain.DataroomDocument
	err := tx.GetContext(ctx, &doc, query, id, dataroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataroom document: %w", err)
	}

	return &doc, nil
}

// ListLive возвращает живые документы комнаты
func (r *DocumentRepository) ListLive(ctx context.Context, dataroomID uuid.UUID) ([]domain.DataroomDocument, error) {
	query := `
        SELECT ` + dataroomDocumentColumns + `
        FROM dataroom_documents dd
        JOIN documents d ON d.id = dd.document_id
        WHERE dd.dataroom_id = $1 AND dd.removed_at IS NULL
        ORDER BY dd.order_index, d.name`

	var docs []domain.DataroomDocument
	if err := r.db.SelectContext(ctx, &docs, query, dataroomID); err != nil {
		return nil, fmt.Errorf("failed to list dataroom documents: %w", err)
	}

	return docs, nil
}

// CollectByFolderIDsTx возвращает документы, лежащие в перечисленных папках.
// Используется обходчиком иерархии: папки поддерева уже найдены по префиксу
// пути, документы добираются одним запросом по их идентификаторам.
func (r *DocumentRepository) CollectByFolderIDsTx(ctx context.Context, tx *sqlx.Tx, dataroomID uuid.UUID, folderIDs []int64) ([]domain.DataroomDocument, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}

	query := `
        SELECT ` + dataroomDocumentColumns + `
        FROM dataroom_documents dd
        JOIN documents d ON d.id = dd.document_id
        WHERE dd.dataroom_id = $1 AND dd.folder_id = ANY($2)`

	var docs []domain.DataroomDocument
	err := tx.SelectContext(ctx, &docs, query, dataroomID, pq.Array(folderIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to collect documents in folders: %w", err)
	}

	return docs, nil
}

// MarkRemovedTx помечает документы комнаты как удаленные
func (r *DocumentRepository) MarkRemovedTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID, removedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := tx.ExecContext(ctx,
		`UPDATE dataroom_documents SET removed_at = $1 WHERE id = ANY($2::uuid[])`,
		removedAt, uuidArray(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to mark documents removed: %w", err)
	}

	return nil
}

// ClearRemovedTx снимает пометку удаления с документов
func (r *DocumentRepository) ClearRemovedTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := tx.ExecContext(ctx,
		`UPDATE dataroom_documents SET removed_at = NULL WHERE id = ANY($1::uuid[])`,
		uuidArray(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to clear document removal: %w", err)
	}

	return nil
}

// DeleteTx окончательно удаляет документы комнаты одной массовой операцией
func (r *DocumentRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := tx.ExecContext(ctx,
		`DELETE FROM dataroom_documents WHERE id = ANY($1::uuid[])`,
		uuidArray(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to delete dataroom documents: %w", err)
	}

	return nil
}

// ListExistingDocumentIDsTx возвращает те из перечисленных документов,
// которые еще существуют. Используется очисткой после удаления сирот,
// чтобы понять, чьи объекты можно убирать из хранилища.
func (r *DocumentRepository) ListExistingDocumentIDsTx(ctx context.Context, tx *sqlx.Tx, documentIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	if len(documentIDs) == 0 {
		return map[uuid.UUID]bool{}, nil
	}

	var ids []uuid.UUID
	err := tx.SelectContext(ctx, &ids,
		`SELECT id FROM documents WHERE id = ANY($1::uuid[])`,
		uuidArray(documentIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing documents: %w", err)
	}

	existing := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		existing[id] = true
	}
	return existing, nil
}

// uuidArray приводит список uuid к виду, понятному драйверу pq
func uuidArray(ids []uuid.UUID) pq.StringArray {
	arr := make(pq.StringArray, len(ids))
	for i, id := range ids {
		arr[i] = id.String()
	}
	return arr
}
