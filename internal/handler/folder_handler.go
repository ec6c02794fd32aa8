package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dataroomdrive/internal/auth"
	"dataroomdrive/internal/service"
)

type FolderHandler struct {
	folderService     *service.FolderService
	trashService      *service.TrashService
	permissionService *service.PermissionService
}

func NewFolderHandler(
	folderService *service.FolderService,
	trashService *service.TrashService,
	permissionService *service.PermissionService,
) *FolderHandler {
	return &FolderHandler{
		folderService:     folderService,
		trashService:      trashService,
		permissionService: permissionService,
	}
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type createDocumentRequest struct {
	Name       string `json:"name"`
	StorageKey string `json:"storage_key"`
	SizeBytes  int64  `json:"size_bytes"`
	FolderID   *int64 `json:"folder_id,omitempty"`
}

// authorize — та же проверка, что и у корзины: сессия, членство, комната
func (h *FolderHandler) authorize(w http.ResponseWriter, r *http.Request, manager bool) (string, uuid.UUID, bool) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", uuid.Nil, false
	}

	teamID := chi.URLParam(r, "teamId")
	dataroomID, err := uuid.Parse(chi.URLParam(r, "dataroomId"))
	if err != nil {
		http.Error(w, "Invalid dataroom id", http.StatusBadRequest)
		return "", uuid.Nil, false
	}

	if manager {
		_, err = h.permissionService.RequireManager(r.Context(), teamID, userID)
	} else {
		_, err = h.permissionService.RequireMember(r.Context(), teamID, userID)
	}
	if err != nil {
		writeError(w, err, "Failed to check permissions")
		return "", uuid.Nil, false
	}

	if _, err := h.permissionService.ResolveDataroom(r.Context(), teamID, dataroomID); err != nil {
		writeError(w, err, "Failed to resolve dataroom")
		return "", uuid.Nil, false
	}

	return teamID, dataroomID, true
}

// CreateFolder создает папку в комнате
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	_, dataroomID, ok := h.authorize(w, r, false)
	if !ok {
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	folder, err := h.folderService.CreateFolder(r.Context(), dataroomID, req.Name, req.ParentID)
	if err != nil {
		writeError(w, err, "Failed to create folder")
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

// CreateDocument создает документ и помещает его в комнату
func (h *FolderHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	teamID, dataroomID, ok := h.authorize(w, r, false)
	if !ok {
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.folderService.CreateDocument(r.Context(), teamID, dataroomID, req.Name, req.StorageKey, req.SizeBytes, req.FolderID)
	if err != nil {
		writeError(w, err, "Failed to create document")
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// GetContent возвращает живую иерархию комнаты
func (h *FolderHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	_, dataroomID, ok := h.authorize(w, r, false)
	if !ok {
		return
	}

	content, err := h.folderService.GetContent(r.Context(), dataroomID)
	if err != nil {
		writeError(w, err, "Failed to get dataroom content")
		return
	}

	writeJSON(w, http.StatusOK, content)
}

// DeleteFolder перемещает папку со всем поддеревом в корзину
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	teamID, dataroomID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid folder id", http.StatusBadRequest)
		return
	}

	if err := h.trashService.SoftDeleteFolder(r.Context(), teamID, dataroomID, folderID); err != nil {
		writeError(w, err, "Failed to delete folder")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "trashed"})
}

// DeleteDocument перемещает документ комнаты в корзину
func (h *FolderHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	teamID, dataroomID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}

	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid document id", http.StatusBadRequest)
		return
	}

	if err := h.trashService.SoftDeleteDocument(r.Context(), teamID, dataroomID, docID); err != nil {
		writeError(w, err, "Failed to delete document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "trashed"})
}
