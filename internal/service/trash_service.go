package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dataroomdrive/internal/domain"
	"dataroomdrive/internal/repository"
)

// TrashService отвечает за мягкое удаление и индекс корзины: на каждую
// удаленную папку и документ поддерживается ровно одна запись trash_items.
type TrashService struct {
	db            *sqlx.DB
	folderRepo    *repository.FolderRepository
	docRepo       *repository.DocumentRepository
	trashRepo     *repository.TrashRepository
	teamRepo      *repository.TeamRepository
	retentionDays int
}

func NewTrashService(
	db *sqlx.DB,
	folderRepo *repository.FolderRepository,
	docRepo *repository.DocumentRepository,
	trashRepo *repository.TrashRepository,
	teamRepo *repository.TeamRepository,
	retentionDays int,
) *TrashService {
	return &TrashService{
		db:            db,
		folderRepo:    folderRepo,
		docRepo:       docRepo,
		trashRepo:     trashRepo,
		teamRepo:      teamRepo,
		retentionDays: retentionDays,
	}
}

// retentionFor возвращает окно хранения для команды
func (s *TrashService) retentionFor(ctx context.Context, teamID string) (time.Duration, error) {
	settings, err := s.teamRepo.GetTrashSettings(ctx, teamID, s.retentionDays)
	if err != nil {
		return 0, err
	}
	return time.Duration(settings.RetentionDays) * 24 * time.Hour, nil
}

// SoftDeleteFolder перемещает папку со всем поддеревом в корзину.
// Все строки поддерева помечаются removed_at, и на каждую создается
// индексная запись, связанная с trash-записью непосредственного родителя.
// Операция атомарна: либо все поддерево в корзине, либо ничего.
func (s *TrashService) SoftDeleteFolder(ctx context.Context, teamID string, dataroomID uuid.UUID, folderID int64) error {
	retention, err := s.retentionFor(ctx, teamID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	root, err := s.folderRepo.GetByIDTx(ctx, tx, dataroomID, folderID)
	if err != nil {
		return err
	}
	if root.InTrash() {
		return domain.ErrAlreadyDeleted
	}

	now := time.Now()
	purgeAt := now.Add(retention)

	subtree, err := s.folderRepo.CollectSubtreeTx(ctx, tx, dataroomID, root.Path)
	if err != nil {
		return err
	}

	allFolderIDs := make([]int64, 0, len(subtree))
	liveFolders := make([]domain.Folder, 0, len(subtree))
	for _, f := range subtree {
		allFolderIDs = append(allFolderIDs, f.ID)
		if !f.InTrash() {
			liveFolders = append(liveFolders, f)
		}
	}

	docs, err := s.docRepo.CollectByFolderIDsTx(ctx, tx, dataroomID, allFolderIDs)
	if err != nil {
		return err
	}
	liveDocs := make([]domain.DataroomDocument, 0, len(docs))
	for _, d := range docs {
		if d.RemovedAt == nil {
			liveDocs = append(liveDocs, d)
		}
	}

	liveFolderIDs := make([]int64, len(liveFolders))
	for i, f := range liveFolders {
		liveFolderIDs[i] = f.ID
	}
	liveDocIDs := make([]uuid.UUID, len(liveDocs))
	for i, d := range liveDocs {
		liveDocIDs[i] = d.ID
	}

	if err := s.folderRepo.MarkRemovedTx(ctx, tx, liveFolderIDs, now); err != nil {
		return err
	}
	if err := s.docRepo.MarkRemovedTx(ctx, tx, liveDocIDs, now); err != nil {
		return err
	}

	// Если родитель самой удаляемой папки уже в корзине, вершина нового
	// поддерева подвешивается к его trash-записи; иначе остается корнем
	rootParentTrashID, err := s.parentTrashLink(ctx, tx, dataroomID, root.ParentID)
	if err != nil {
		return err
	}

	// Срез пути, относительно которого снимаются снапшоты trash_path
	basePath := domain.ParentPath(root.Path)

	// Папки приходят отсортированными по пути, поэтому trash-запись
	// родителя всегда создается раньше записей детей
	folderTrashIDs := make(map[int64]uuid.UUID, len(liveFolders))
	for _, f := range liveFolders {
		item := domain.TrashItem{
			ID:               uuid.New(),
			ItemType:         domain.ItemTypeFolder,
			DataroomID:       dataroomID,
			DataroomFolderID: ptrInt64(f.ID),
			Name:             f.Name,
			TrashPath:        strings.TrimPrefix(f.Path, basePath),
			FullPath:         f.Path,
			DeletedAt:        now,
			PurgeAt:          purgeAt,
		}

		if f.ID == root.ID {
			item.ParentID = rootParentTrashID
		} else if f.ParentID != nil {
			if id, ok := folderTrashIDs[*f.ParentID]; ok {
				item.ParentID = &id
			} else {
				// Родитель был удален раньше отдельной операцией —
				// ссылаемся на его существующую trash-запись
				item.ParentID, err = s.parentTrashLink(ctx, tx, dataroomID, f.ParentID)
				if err != nil {
					return err
				}
			}
		}

		if err := s.trashRepo.InsertTx(ctx, tx, &item); err != nil {
			return err
		}
		folderTrashIDs[f.ID] = item.ID
	}

	for _, d := range liveDocs {
		item := domain.TrashItem{
			ID:                 uuid.New(),
			ItemType:           domain.ItemTypeDocument,
			DataroomID:         dataroomID,
			DataroomDocumentID: ptrUUID(d.ID),
			Name:               d.Name,
			DeletedAt:          now,
			PurgeAt:            purgeAt,
		}

		if d.FolderID != nil {
			if id, ok := folderTrashIDs[*d.FolderID]; ok {
				item.ParentID = &id
			} else {
				item.ParentID, err = s.parentTrashLink(ctx, tx, dataroomID, d.FolderID)
				if err != nil {
					return err
				}
			}
			for _, f := range subtree {
				if f.ID == *d.FolderID {
					item.FullPath = f.Path + "/" + domain.Slugify(d.Name)
					item.TrashPath = strings.TrimPrefix(item.FullPath, basePath)
					break
				}
			}
		}

		if err := s.trashRepo.InsertTx(ctx, tx, &item); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SoftDeleteDocument перемещает один документ комнаты в корзину
func (s *TrashService) SoftDeleteDocument(ctx context.Context, teamID string, dataroomID, documentID uuid.UUID) error {
	retention, err := s.retentionFor(ctx, teamID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	doc, err := s.docRepo.GetByIDTx(ctx, tx, dataroomID, documentID)
	if err != nil {
		return err
	}
	if doc.RemovedAt != nil {
		return domain.ErrAlreadyDeleted
	}

	now := time.Now()

	if err := s.docRepo.MarkRemovedTx(ctx, tx, []uuid.UUID{doc.ID}, now); err != nil {
		return err
	}

	// Снапшот пути по умолчанию — от корня комнаты; документ из папки
	// перепишет его ниже путем родителя
	item := domain.TrashItem{
		ID:                 uuid.New(),
		ItemType:           domain.ItemTypeDocument,
		DataroomID:         dataroomID,
		DataroomDocumentID: ptrUUID(doc.ID),
		Name:               doc.Name,
		TrashPath:          "/" + domain.Slugify(doc.Name),
		FullPath:           "/" + domain.Slugify(doc.Name),
		DeletedAt:          now,
		PurgeAt:            now.Add(retention),
	}

	if doc.FolderID != nil {
		folder, err := s.folderRepo.GetByIDTx(ctx, tx, dataroomID, *doc.FolderID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if folder != nil {
			item.FullPath = folder.Path + "/" + domain.Slugify(doc.Name)
			item.TrashPath = item.FullPath
			if folder.InTrash() {
				item.ParentID, err = s.parentTrashLink(ctx, tx, dataroomID, doc.FolderID)
				if err != nil {
					return err
				}
			}
		}
	}

	if err := s.trashRepo.InsertTx(ctx, tx, &item); err != nil {
		return err
	}

	return tx.Commit()
}

// parentTrashLink находит trash-запись родительской папки, если та в
// корзине. Живой (или отсутствующий) родитель дает nil: элемент удален
// на еще живом уровне и становится вершиной поддерева корзины.
func (s *TrashService) parentTrashLink(ctx context.Context, tx *sqlx.Tx, dataroomID uuid.UUID, parentFolderID *int64) (*uuid.UUID, error) {
	if parentFolderID == nil {
		return nil, nil
	}

	parent, err := s.folderRepo.GetByIDTx(ctx, tx, dataroomID, *parentFolderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !parent.InTrash() {
		return nil, nil
	}

	item, err := s.trashRepo.GetByFolderIDTx(ctx, tx, dataroomID, parent.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &item.ID, nil
}

// ListTrash возвращает содержимое корзины: только вершины при rootOnly,
// иначе полный плоский список
func (s *TrashService) ListTrash(ctx context.Context, dataroomID uuid.UUID, rootOnly bool) ([]domain.TrashItem, error) {
	return s.trashRepo.List(ctx, dataroomID, rootOnly)
}

// GetSettings возвращает настройки корзины команды
func (s *TrashService) GetSettings(ctx context.Context, teamID string) (*domain.TrashSettings, error) {
	return s.teamRepo.GetTrashSettings(ctx, teamID, s.retentionDays)
}

// UpdateRetention обновляет окно хранения команды, дни в пределах [1, 365]
func (s *TrashService) UpdateRetention(ctx context.Context, teamID string, days int) (*domain.TrashSettings, error) {
	if days < 1 || days > 365 {
		return nil, fmt.Errorf("retention days must be between 1 and 365")
	}

	settings := &domain.TrashSettings{TeamID: teamID, RetentionDays: days}
	if err := s.teamRepo.UpdateTrashSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update trash settings: %w", err)
	}

	return settings, nil
}

// BuildTrashTree собирает плоский список записей корзины в дерево по
// parent_id. Запись родителя всегда указывает на предка, не на себя,
// поэтому циклов в собранном дереве быть не может.
func BuildTrashTree(items []domain.TrashItem) []*domain.TrashNode {
	nodes := make(map[uuid.UUID]*domain.TrashNode, len(items))
	for i := range items {
		nodes[items[i].ID] = &domain.TrashNode{TrashItem: items[i]}
	}

	var roots []*domain.TrashNode
	for _, item := range items {
		node := nodes[item.ID]
		if item.ParentID == nil {
			roots = append(roots, node)
			continue
		}

		parent, ok := nodes[*item.ParentID]
		if !ok {
			// Родительская запись вне выборки — показываем как вершину
			roots = append(roots, node)
			continue
		}

		if item.ItemType == domain.ItemTypeFolder {
			parent.ChildFolders = append(parent.ChildFolders, node)
		} else {
			parent.Documents = append(parent.Documents, node)
		}
	}

	return roots
}

func ptrInt64(v int64) *int64 {
	return &v
}

func ptrUUID(v uuid.UUID) *uuid.UUID {
	return &v
}
