package handler_test

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataroomdrive/internal/auth"
	"dataroomdrive/internal/domain"
	"dataroomdrive/internal/handler"
	"dataroomdrive/internal/repository"
	"dataroomdrive/internal/service"
)

const testJWTSecret = "test-secret"

func init() {
	auth.Init(&auth.Config{JWTSecret: testJWTSecret})
}

func signToken(t *testing.T, userID string) string {
	claims := auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func newTrashRouter(db *sqlx.DB) *chi.Mux {
	folderRepo := repository.NewFolderRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	trashRepo := repository.NewTrashRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	dataroomRepo := repository.NewDataroomRepository(db)

	h := handler.NewTrashHandler(
		service.NewTrashService(db, folderRepo, docRepo, trashRepo, teamRepo, 30),
		service.NewRestoreService(db, folderRepo, docRepo, trashRepo),
		newPurgeService(db),
		service.NewPermissionService(teamRepo, dataroomRepo),
	)

	r := chi.NewRouter()
	r.Route("/v1/teams/{teamId}/datarooms/{dataroomId}/trash", func(r chi.Router) {
		r.Get("/", h.GetTrash)
		r.Put("/manage/{trashId}/restore", h.RestoreItem)
		r.Delete("/manage/{trashId}", h.DeletePermanently)
	})
	return r
}

func expectMember(mock sqlmock.Sqlmock, role domain.Role) {
	mock.ExpectQuery(`FROM team_members`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "team_id", "user_id", "role", "status", "joined_at"}).
			AddRow(int64(1), "team_1", "user_1", string(role), "active", time.Now()))
}

func expectDataroom(mock sqlmock.Sqlmock, dataroomID uuid.UUID) {
	mock.ExpectQuery(`FROM datarooms`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "team_id", "name", "created_at", "updated_at"}).
			AddRow(dataroomID.String(), "team_1", "Due Diligence", time.Now(), time.Now()))
}

func trashURL(dataroomID uuid.UUID, suffix string) string {
	return fmt.Sprintf("/v1/teams/team_1/datarooms/%s/trash%s", dataroomID, suffix)
}

func TestGetTrashRequiresToken(t *testing.T) {
	db, _ := newMockDB(t)
	router := newTrashRouter(db)

	req := httptest.NewRequest(http.MethodGet, trashURL(uuid.New(), "/"), nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// Участник с ролью MEMBER может смотреть корзину
func TestGetTrashAsMember(t *testing.T) {
	db, mock := newMockDB(t)
	router := newTrashRouter(db)

	dataroomID := uuid.New()
	expectMember(mock, domain.RoleMember)
	expectDataroom(mock, dataroomID)
	mock.ExpectQuery(`FROM trash_items WHERE dataroom_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "item_type", "dataroom_id", "dataroom_folder_id", "dataroom_document_id",
			"parent_id", "name", "trash_path", "full_path", "deleted_at", "purge_at",
		}))

	req := httptest.NewRequest(http.MethodGet, trashURL(dataroomID, "/"), nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user_1"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Окончательное удаление закрыто для роли MEMBER
func TestDeletePermanentlyForbiddenForMember(t *testing.T) {
	db, mock := newMockDB(t)
	router := newTrashRouter(db)

	dataroomID := uuid.New()
	expectMember(mock, domain.RoleMember)

	req := httptest.NewRequest(http.MethodDelete, trashURL(dataroomID, "/manage/"+uuid.NewString()), nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user_1"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Восстановление в удаленное расположение — 400 с подсказкой
func TestRestoreItemBlockedPath(t *testing.T) {
	db, mock := newMockDB(t)
	router := newTrashRouter(db)

	dataroomID := uuid.New()
	trashID := uuid.New()
	docID := uuid.New()
	now := time.Now()

	expectMember(mock, domain.RoleManager)
	expectDataroom(mock, dataroomID)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM trash_items WHERE id = \$1 AND dataroom_id = \$2 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "item_type", "dataroom_id", "dataroom_folder_id", "dataroom_document_id",
			"parent_id", "name", "trash_path", "full_path", "deleted_at", "purge_at",
		}).AddRow(
			trashID.String(), string(domain.ItemTypeDocument), dataroomID.String(),
			nil, docID.String(), nil, "report.pdf", "/report-pdf", "/report-pdf",
			now, now.Add(30*24*time.Hour),
		))
	mock.ExpectQuery(`FROM dataroom_documents dd`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "dataroom_id", "document_id", "folder_id", "order_index",
			"created_at", "removed_at", "name", "storage_key", "size_bytes",
		}).AddRow(
			docID.String(), dataroomID.String(), uuid.New().String(), int64(7), 0,
			now, now, "report.pdf", "objects/report.pdf", int64(1024),
		))
	mock.ExpectQuery(`FROM dataroom_folders WHERE id = \$1`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPut, trashURL(dataroomID, "/manage/"+trashID.String()+"/restore"), nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user_1"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "restore the parent folder first")
	assert.NoError(t, mock.ExpectationsWereMet())
}
