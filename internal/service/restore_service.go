package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dataroomdrive/internal/domain"
	"dataroomdrive/internal/repository"
)

// RestoreService восстанавливает элементы из корзины. Восстановление в
// удаленное расположение запрещено: если исходный родитель сам в корзине
// или уже вычищен, операция завершается ErrRestorePathNotFound, и
// пользователь должен сначала восстановить родителя.
type RestoreService struct {
	db         *sqlx.DB
	folderRepo *repository.FolderRepository
	docRepo    *repository.DocumentRepository
	trashRepo  *repository.TrashRepository
}

func NewRestoreService(
	db *sqlx.DB,
	folderRepo *repository.FolderRepository,
	docRepo *repository.DocumentRepository,
	trashRepo *repository.TrashRepository,
) *RestoreService {
	return &RestoreService{
		db:         db,
		folderRepo: folderRepo,
		docRepo:    docRepo,
		trashRepo:  trashRepo,
	}
}

// BulkRestoreResult — итог пакетного восстановления
type BulkRestoreResult struct {
	Restored []uuid.UUID        `json:"restored"`
	Failed   []BulkRestoreError `json:"failed,omitempty"`
}

type BulkRestoreError struct {
	TrashItemID uuid.UUID `json:"trash_item_id"`
	Error       string    `json:"error"`
}

// Restore восстанавливает один элемент корзины со всеми потомками.
// Вся операция идет в одной транзакции: частично восстановленное
// поддерево — нарушение инварианта, поэтому либо все, либо ничего.
func (s *RestoreService) Restore(ctx context.Context, dataroomID, trashItemID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Блокируем запись корзины: параллельная очистка того же элемента
	// дождется коммита и не найдет строку
	item, err := s.trashRepo.GetByIDForUpdateTx(ctx, tx, dataroomID, trashItemID)
	if err != nil {
		return err
	}

	switch item.ItemType {
	case domain.ItemTypeFolder:
		if err := s.restoreFolderTx(ctx, tx, item); err != nil {
			return err
		}
	case domain.ItemTypeDocument:
		if err := s.restoreDocumentTx(ctx, tx, item); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown trash item type: %s", item.ItemType)
	}

	return tx.Commit()
}

func (s *RestoreService) restoreFolderTx(ctx context.Context, tx *sqlx.Tx, item *domain.TrashItem) error {
	if item.DataroomFolderID == nil {
		return fmt.Errorf("trash item %s has no folder reference", item.ID)
	}

	folder, err := s.folderRepo.GetByIDTx(ctx, tx, item.DataroomID, *item.DataroomFolderID)
	if err != nil {
		return err
	}

	if err := s.checkRestoreTarget(ctx, tx, item.DataroomID, folder.ParentID); err != nil {
		return err
	}

	subtree, err := s.folderRepo.CollectSubtreeTx(ctx, tx, item.DataroomID, folder.Path)
	if err != nil {
		return err
	}

	folderIDs := make([]int64, 0, len(subtree))
	removedFolderIDs := make([]int64, 0, len(subtree))
	for _, f := range subtree {
		folderIDs = append(folderIDs, f.ID)
		if f.InTrash() {
			removedFolderIDs = append(removedFolderIDs, f.ID)
		}
	}

	docs, err := s.docRepo.CollectByFolderIDsTx(ctx, tx, item.DataroomID, folderIDs)
	if err != nil {
		return err
	}
	removedDocIDs := make([]uuid.UUID, 0, len(docs))
	for _, d := range docs {
		if d.RemovedAt != nil {
			removedDocIDs = append(removedDocIDs, d.ID)
		}
	}

	if err := s.folderRepo.ClearRemovedTx(ctx, tx, removedFolderIDs); err != nil {
		return err
	}
	if err := s.docRepo.ClearRemovedTx(ctx, tx, removedDocIDs); err != nil {
		return err
	}

	return s.trashRepo.DeleteByTargetsTx(ctx, tx, removedFolderIDs, removedDocIDs)
}

func (s *RestoreService) restoreDocumentTx(ctx context.Context, tx *sqlx.Tx, item *domain.TrashItem) error {
	if item.DataroomDocumentID == nil {
		return fmt.Errorf("trash item %s has no document reference", item.ID)
	}

	doc, err := s.docRepo.GetByIDTx(ctx, tx, item.DataroomID, *item.DataroomDocumentID)
	if err != nil {
		return err
	}

	if err := s.checkRestoreTarget(ctx, tx, item.DataroomID, doc.FolderID); err != nil {
		return err
	}

	if err := s.docRepo.ClearRemovedTx(ctx, tx, []uuid.UUID{doc.ID}); err != nil {
		return err
	}

	return s.trashRepo.DeleteByIDsTx(ctx, tx, []uuid.UUID{item.ID})
}

// checkRestoreTarget проверяет исходное родительское расположение.
// nil-родитель означает корень комнаты — туда восстанавливать можно
// всегда. Удаленный или отсутствующий родитель дает
// ErrRestorePathNotFound.
func (s *RestoreService) checkRestoreTarget(ctx context.Context, tx *sqlx.Tx, dataroomID uuid.UUID, parentFolderID *int64) error {
	if parentFolderID == nil {
		return nil
	}

	parent, err := s.folderRepo.GetByIDTx(ctx, tx, dataroomID, *parentFolderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrRestorePathNotFound
		}
		return err
	}
	if parent.InTrash() {
		return domain.ErrRestorePathNotFound
	}

	return nil
}

// RestoreBulk восстанавливает несколько элементов. Атомарность остается
// поэлементной: неудача одного (например, удаленное исходное
// расположение) не прерывает восстановление остальных.
func (s *RestoreService) RestoreBulk(ctx context.Context, dataroomID uuid.UUID, trashItemIDs []uuid.UUID) *BulkRestoreResult {
	result := &BulkRestoreResult{}

	for _, id := range trashItemIDs {
		if err := s.Restore(ctx, dataroomID, id); err != nil {
			result.Failed = append(result.Failed, BulkRestoreError{
				TrashItemID: id,
				Error:       err.Error(),
			})
			continue
		}
		result.Restored = append(result.Restored, id)
	}

	return result
}
