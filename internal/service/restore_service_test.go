package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataroomdrive/internal/domain"
	"dataroomdrive/internal/repository"
	"dataroomdrive/internal/service"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func newRestoreService(db *sqlx.DB) *service.RestoreService {
	return service.NewRestoreService(
		db,
		repository.NewFolderRepository(db),
		repository.NewDocumentRepository(db),
		repository.NewTrashRepository(db),
	)
}

var trashItemColumns = []string{
	"id", "item_type", "dataroom_id", "dataroom_folder_id", "dataroom_document_id",
	"parent_id", "name", "trash_path", "full_path", "deleted_at", "purge_at",
}

var dataroomDocumentColumns = []string{
	"id", "dataroom_id", "document_id", "folder_id", "order_index",
	"created_at", "removed_at", "name", "storage_key", "size_bytes",
}

var folderColumns = []string{
	"id", "dataroom_id", "name", "path", "parent_id", "order_index",
	"created_at", "updated_at", "removed_at",
}

func documentTrashRow(trashID, dataroomID, dataroomDocumentID uuid.UUID, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(trashItemColumns).AddRow(
		trashID.String(), string(domain.ItemTypeDocument), dataroomID.String(),
		nil, dataroomDocumentID.String(), nil,
		"report.pdf", "/reports/report-pdf", "/reports/report-pdf", now, now.Add(30*24*time.Hour),
	)
}

// Восстановление документа, чей исходный родитель сам лежит в корзине,
// должно завершаться ErrRestorePathNotFound и откатом транзакции
func TestRestoreDocumentBlockedByDeletedParent(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newRestoreService(db)

	dataroomID := uuid.New()
	trashID := uuid.New()
	docID := uuid.New()
	folderID := int64(7)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM trash_items WHERE id = \$1 AND dataroom_id = \$2 FOR UPDATE`).
		WithArgs(trashID, dataroomID).
		WillReturnRows(documentTrashRow(trashID, dataroomID, docID, now))
	mock.ExpectQuery(`FROM dataroom_documents dd`).
		WithArgs(docID, dataroomID).
		WillReturnRows(sqlmock.NewRows(dataroomDocumentColumns).AddRow(
			docID.String(), dataroomID.String(), uuid.New().String(), folderID, 0,
			now, now, "report.pdf", "objects/report.pdf", int64(1024),
		))
	// Родительская папка помечена removed_at — путь восстановления потерян
	mock.ExpectQuery(`FROM dataroom_folders WHERE id = \$1 AND dataroom_id = \$2`).
		WithArgs(folderID, dataroomID).
		WillReturnRows(sqlmock.NewRows(folderColumns).AddRow(
			folderID, dataroomID.String(), "reports", "/reports", nil, 0, now, now, now,
		))
	mock.ExpectRollback()

	err := svc.Restore(context.Background(), dataroomID, trashID)

	assert.ErrorIs(t, err, domain.ErrRestorePathNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Родитель вычищен целиком (строки больше нет) — тот же отказ
func TestRestoreDocumentParentAlreadyPurged(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newRestoreService(db)

	dataroomID := uuid.New()
	trashID := uuid.New()
	docID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM trash_items WHERE id = \$1 AND dataroom_id = \$2 FOR UPDATE`).
		WithArgs(trashID, dataroomID).
		WillReturnRows(documentTrashRow(trashID, dataroomID, docID, now))
	mock.ExpectQuery(`FROM dataroom_documents dd`).
		WithArgs(docID, dataroomID).
		WillReturnRows(sqlmock.NewRows(dataroomDocumentColumns).AddRow(
			docID.String(), dataroomID.String(), uuid.New().String(), int64(7), 0,
			now, now, "report.pdf", "objects/report.pdf", int64(1024),
		))
	mock.ExpectQuery(`FROM dataroom_folders WHERE id = \$1 AND dataroom_id = \$2`).
		WithArgs(int64(7), dataroomID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := svc.Restore(context.Background(), dataroomID, trashID)

	assert.ErrorIs(t, err, domain.ErrRestorePathNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Документ из корня комнаты (без папки) восстанавливается всегда:
// снимается removed_at и удаляется запись корзины
func TestRestoreDocumentToRoot(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newRestoreService(db)

	dataroomID := uuid.New()
	trashID := uuid.New()
	docID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM trash_items WHERE id = \$1 AND dataroom_id = \$2 FOR UPDATE`).
		WithArgs(trashID, dataroomID).
		WillReturnRows(documentTrashRow(trashID, dataroomID, docID, now))
	mock.ExpectQuery(`FROM dataroom_documents dd`).
		WithArgs(docID, dataroomID).
		WillReturnRows(sqlmock.NewRows(dataroomDocumentColumns).AddRow(
			docID.String(), dataroomID.String(), uuid.New().String(), nil, 0,
			now, now, "report.pdf", "objects/report.pdf", int64(1024),
		))
	mock.ExpectExec(`UPDATE dataroom_documents SET removed_at = NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM trash_items WHERE id = ANY`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.Restore(context.Background(), dataroomID, trashID)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Запись корзины исчезла (например, ее успела забрать очистка) — ErrNotFound
func TestRestoreMissingTrashItem(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newRestoreService(db)

	dataroomID := uuid.New()
	trashID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM trash_items WHERE id = \$1 AND dataroom_id = \$2 FOR UPDATE`).
		WithArgs(trashID, dataroomID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := svc.Restore(context.Background(), dataroomID, trashID)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func folderTrashRow(trashID, dataroomID uuid.UUID, folderID int64, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(trashItemColumns).AddRow(
		trashID.String(), string(domain.ItemTypeFolder), dataroomID.String(),
		folderID, nil, nil, "reports", "/reports", "/reports", now, now.Add(30*24*time.Hour),
	)
}

// Восстановление папки поднимает все поддерево одной транзакцией:
// снимается removed_at с обеих папок и документа, удаляются все их
// записи корзины
func TestRestoreFolderSubtree(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newRestoreService(db)

	dataroomID := uuid.New()
	trashID := uuid.New()
	docID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM trash_items WHERE id = \$1 AND dataroom_id = \$2 FOR UPDATE`).
		WithArgs(trashID, dataroomID).
		WillReturnRows(folderTrashRow(trashID, dataroomID, 5, now))
	// Вершина лежит в корзине, ее родитель — корень комнаты
	mock.ExpectQuery(`FROM dataroom_folders WHERE id = \$1 AND dataroom_id = \$2`).
		WithArgs(int64(5), dataroomID).
		WillReturnRows(sqlmock.NewRows(folderColumns).AddRow(
			int64(5), dataroomID.String(), "reports", "/reports", nil, 0, now, now, now,
		))
	mock.ExpectQuery(`path = \$2 OR path LIKE \$3`).
		WithArgs(dataroomID, "/reports", "/reports/%").
		WillReturnRows(sqlmock.NewRows(folderColumns).
			AddRow(int64(5), dataroomID.String(), "reports", "/reports", nil, 0, now, now, now).
			AddRow(int64(6), dataroomID.String(), "q3", "/reports/q3", int64(5), 0, now, now, now))
	mock.ExpectQuery(`dd\.folder_id = ANY\(\$2\)`).
		WithArgs(dataroomID, pq.Array([]int64{5, 6})).
		WillReturnRows(sqlmock.NewRows(dataroomDocumentColumns).AddRow(
			docID.String(), dataroomID.String(), uuid.New().String(), int64(6), 0,
			now, now, "raw.xlsx", "objects/raw.xlsx", int64(4096),
		))
	mock.ExpectExec(`UPDATE dataroom_folders SET removed_at = NULL`).
		WithArgs(pq.Array([]int64{5, 6})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE dataroom_documents SET removed_at = NULL`).
		WithArgs(pq.StringArray{docID.String()}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM trash_items WHERE dataroom_folder_id = ANY`).
		WithArgs(pq.Array([]int64{5, 6})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM trash_items WHERE dataroom_document_id = ANY`).
		WithArgs(pq.StringArray{docID.String()}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.Restore(context.Background(), dataroomID, trashID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Сбой посреди каскада откатывает восстановление целиком: частично
// поднятое поддерево недопустимо
func TestRestoreFolderSubtreeAtomicRollback(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newRestoreService(db)

	dataroomID := uuid.New()
	trashID := uuid.New()
	docID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM trash_items WHERE id = \$1 AND dataroom_id = \$2 FOR UPDATE`).
		WithArgs(trashID, dataroomID).
		WillReturnRows(folderTrashRow(trashID, dataroomID, 5, now))
	mock.ExpectQuery(`FROM dataroom_folders WHERE id = \$1 AND dataroom_id = \$2`).
		WithArgs(int64(5), dataroomID).
		WillReturnRows(sqlmock.NewRows(folderColumns).AddRow(
			int64(5), dataroomID.String(), "reports", "/reports", nil, 0, now, now, now,
		))
	mock.ExpectQuery(`path = \$2 OR path LIKE \$3`).
		WithArgs(dataroomID, "/reports", "/reports/%").
		WillReturnRows(sqlmock.NewRows(folderColumns).
			AddRow(int64(5), dataroomID.String(), "reports", "/reports", nil, 0, now, now, now).
			AddRow(int64(6), dataroomID.String(), "q3", "/reports/q3", int64(5), 0, now, now, now))
	mock.ExpectQuery(`dd\.folder_id = ANY\(\$2\)`).
		WithArgs(dataroomID, pq.Array([]int64{5, 6})).
		WillReturnRows(sqlmock.NewRows(dataroomDocumentColumns).AddRow(
			docID.String(), dataroomID.String(), uuid.New().String(), int64(6), 0,
			now, now, "raw.xlsx", "objects/raw.xlsx", int64(4096),
		))
	mock.ExpectExec(`UPDATE dataroom_folders SET removed_at = NULL`).
		WithArgs(pq.Array([]int64{5, 6})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	// Папки уже сняты с пометки, документ — нет: транзакция обязана
	// откатиться, коммита быть не должно
	mock.ExpectExec(`UPDATE dataroom_documents SET removed_at = NULL`).
		WithArgs(pq.StringArray{docID.String()}).
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	err := svc.Restore(context.Background(), dataroomID, trashID)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Пакетное восстановление поэлементное: провал одного элемента не
// мешает остальным
func TestRestoreBulkIndependentFailures(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newRestoreService(db)

	dataroomID := uuid.New()
	missingID := uuid.New()
	okID := uuid.New()
	docID := uuid.New()
	now := time.Now()

	// Первый элемент отсутствует
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM trash_items WHERE id = \$1 AND dataroom_id = \$2 FOR UPDATE`).
		WithArgs(missingID, dataroomID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	// Второй восстанавливается штатно
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM trash_items WHERE id = \$1 AND dataroom_id = \$2 FOR UPDATE`).
		WithArgs(okID, dataroomID).
		WillReturnRows(documentTrashRow(okID, dataroomID, docID, now))
	mock.ExpectQuery(`FROM dataroom_documents dd`).
		WithArgs(docID, dataroomID).
		WillReturnRows(sqlmock.NewRows(dataroomDocumentColumns).AddRow(
			docID.String(), dataroomID.String(), uuid.New().String(), nil, 0,
			now, now, "report.pdf", "objects/report.pdf", int64(1024),
		))
	mock.ExpectExec(`UPDATE dataroom_documents SET removed_at = NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM trash_items WHERE id = ANY`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result := svc.RestoreBulk(context.Background(), dataroomID, []uuid.UUID{missingID, okID})

	require.Len(t, result.Restored, 1)
	assert.Equal(t, okID, result.Restored[0])
	require.Len(t, result.Failed, 1)
	assert.Equal(t, missingID, result.Failed[0].TrashItemID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
