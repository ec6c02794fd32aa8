package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataroomdrive/internal/domain"
	"dataroomdrive/internal/repository"
	"dataroomdrive/internal/service"
)

func trashItem(itemType domain.ItemType, name string) domain.TrashItem {
	return domain.TrashItem{
		ID:        uuid.New(),
		ItemType:  itemType,
		Name:      name,
		DeletedAt: time.Now(),
		PurgeAt:   time.Now().Add(30 * 24 * time.Hour),
	}
}

func TestBuildTrashTree(t *testing.T) {
	// Корзина: /reports с вложенной /reports/q3 и документом в каждой,
	// плюс отдельно удаленный документ в корне
	root := trashItem(domain.ItemTypeFolder, "reports")
	child := trashItem(domain.ItemTypeFolder, "q3")
	child.ParentID = &root.ID
	docInRoot := trashItem(domain.ItemTypeDocument, "summary.pdf")
	docInRoot.ParentID = &root.ID
	docInChild := trashItem(domain.ItemTypeDocument, "raw.xlsx")
	docInChild.ParentID = &child.ID
	standalone := trashItem(domain.ItemTypeDocument, "draft.docx")

	tree := service.BuildTrashTree([]domain.TrashItem{root, child, docInRoot, docInChild, standalone})

	require.Len(t, tree, 2)

	var rootNode, standaloneNode *domain.TrashNode
	for _, n := range tree {
		switch n.ID {
		case root.ID:
			rootNode = n
		case standalone.ID:
			standaloneNode = n
		}
	}
	require.NotNil(t, rootNode)
	require.NotNil(t, standaloneNode)

	require.Len(t, rootNode.ChildFolders, 1)
	assert.Equal(t, child.ID, rootNode.ChildFolders[0].ID)
	require.Len(t, rootNode.Documents, 1)
	assert.Equal(t, docInRoot.ID, rootNode.Documents[0].ID)

	require.Len(t, rootNode.ChildFolders[0].Documents, 1)
	assert.Equal(t, docInChild.ID, rootNode.ChildFolders[0].Documents[0].ID)

	assert.Empty(t, standaloneNode.ChildFolders)
	assert.Empty(t, standaloneNode.Documents)
}

func TestBuildTrashTreeParentOutsideSelection(t *testing.T) {
	// Родительская запись не попала в выборку: узел показывается вершиной,
	// а не теряется
	missingParent := uuid.New()
	item := trashItem(domain.ItemTypeFolder, "orphan")
	item.ParentID = &missingParent

	tree := service.BuildTrashTree([]domain.TrashItem{item})

	require.Len(t, tree, 1)
	assert.Equal(t, item.ID, tree[0].ID)
}

func TestBuildTrashTreeEmpty(t *testing.T) {
	assert.Empty(t, service.BuildTrashTree(nil))
}

func newTrashService(db *sqlx.DB) *service.TrashService {
	return service.NewTrashService(
		db,
		repository.NewFolderRepository(db),
		repository.NewDocumentRepository(db),
		repository.NewTrashRepository(db),
		repository.NewTeamRepository(db),
		30,
	)
}

func settingsRow(days int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"team_id", "retention_days", "updated_at"}).
		AddRow("team_1", days, time.Now())
}

// Мягкое удаление папки без детей: поддерево помечается removed_at,
// создается одна trash-запись с корректными снапшотами путей
func TestSoftDeleteFolder(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTrashService(db)

	dataroomID := uuid.New()
	folderID := int64(5)
	now := time.Now()

	mock.ExpectQuery(`FROM trash_settings WHERE team_id = \$1`).
		WithArgs("team_1").
		WillReturnRows(settingsRow(30))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM dataroom_folders WHERE id = \$1 AND dataroom_id = \$2`).
		WithArgs(folderID, dataroomID).
		WillReturnRows(sqlmock.NewRows(folderColumns).AddRow(
			folderID, dataroomID.String(), "reports", "/reports", nil, 0, now, now, nil,
		))
	mock.ExpectQuery(`path = \$2 OR path LIKE \$3`).
		WithArgs(dataroomID, "/reports", "/reports/%").
		WillReturnRows(sqlmock.NewRows(folderColumns).AddRow(
			folderID, dataroomID.String(), "reports", "/reports", nil, 0, now, now, nil,
		))
	mock.ExpectQuery(`FROM dataroom_documents dd`).
		WillReturnRows(sqlmock.NewRows(dataroomDocumentColumns))
	mock.ExpectExec(`UPDATE dataroom_folders SET removed_at = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO trash_items`).
		WithArgs(sqlmock.AnyArg(), string(domain.ItemTypeFolder), dataroomID,
			int64(5), nil, nil, "reports", "/reports", "/reports",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.SoftDeleteFolder(context.Background(), "team_1", dataroomID, folderID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Документ из корня комнаты получает снапшот пути от корня, а не пустой
func TestSoftDeleteDocumentFromRoot(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTrashService(db)

	dataroomID := uuid.New()
	docID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM trash_settings WHERE team_id = \$1`).
		WithArgs("team_1").
		WillReturnRows(settingsRow(30))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM dataroom_documents dd`).
		WithArgs(docID, dataroomID).
		WillReturnRows(sqlmock.NewRows(dataroomDocumentColumns).AddRow(
			docID.String(), dataroomID.String(), uuid.New().String(), nil, 0,
			now, nil, "Report.pdf", "objects/report.pdf", int64(1024),
		))
	mock.ExpectExec(`UPDATE dataroom_documents SET removed_at = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO trash_items`).
		WithArgs(sqlmock.AnyArg(), string(domain.ItemTypeDocument), dataroomID,
			nil, docID, nil, "Report.pdf", "/report-pdf", "/report-pdf",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.SoftDeleteDocument(context.Background(), "team_1", dataroomID, docID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Повторное удаление уже лежащей в корзине папки отклоняется
func TestSoftDeleteFolderAlreadyDeleted(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTrashService(db)

	dataroomID := uuid.New()
	folderID := int64(5)
	now := time.Now()

	mock.ExpectQuery(`FROM trash_settings WHERE team_id = \$1`).
		WithArgs("team_1").
		WillReturnRows(settingsRow(30))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM dataroom_folders WHERE id = \$1 AND dataroom_id = \$2`).
		WithArgs(folderID, dataroomID).
		WillReturnRows(sqlmock.NewRows(folderColumns).AddRow(
			folderID, dataroomID.String(), "reports", "/reports", nil, 0, now, now, now,
		))
	mock.ExpectRollback()

	err := svc.SoftDeleteFolder(context.Background(), "team_1", dataroomID, folderID)

	assert.ErrorIs(t, err, domain.ErrAlreadyDeleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
