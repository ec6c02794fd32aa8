package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dataroomdrive/internal/domain"
	"dataroomdrive/internal/repository"
)

// FolderService обслуживает живую иерархию комнаты: создание папок и
// документов, просмотр содержимого. Корзиной занимаются TrashService,
// RestoreService и PurgeService.
type FolderService struct {
	folderRepo *repository.FolderRepository
	docRepo    *repository.DocumentRepository
}

func NewFolderService(
	folderRepo *repository.FolderRepository,
	docRepo *repository.DocumentRepository,
) *FolderService {
	return &FolderService{
		folderRepo: folderRepo,
		docRepo:    docRepo,
	}
}

// CreateFolder создает папку в комнате
func (s *FolderService) CreateFolder(ctx context.Context, dataroomID uuid.UUID, name string, parentID *int64) (*domain.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name is required")
	}

	folder := &domain.Folder{
		DataroomID: dataroomID,
		Name:       name,
		ParentID:   parentID,
	}

	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}

	return folder, nil
}

// CreateDocument создает документ команды и помещает его в комнату
func (s *FolderService) CreateDocument(ctx context.Context, teamID string, dataroomID uuid.UUID, name, storageKey string, sizeBytes int64, folderID *int64) (*domain.DataroomDocument, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("document name is required")
	}

	doc := &domain.DataroomDocument{
		DataroomID: dataroomID,
		FolderID:   folderID,
		Name:       name,
		StorageKey: storageKey,
		SizeBytes:  sizeBytes,
	}

	if err := s.docRepo.CreateInDataroom(ctx, teamID, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// GetContent возвращает живые папки и документы комнаты
func (s *FolderService) GetContent(ctx context.Context, dataroomID uuid.UUID) (*domain.DataroomContent, error) {
	folders, err := s.folderRepo.ListLive(ctx, dataroomID)
	if err != nil {
		return nil, err
	}

	docs, err := s.docRepo.ListLive(ctx, dataroomID)
	if err != nil {
		return nil, err
	}

	return &domain.DataroomContent{
		Folders:   folders,
		Documents: docs,
	}, nil
}
