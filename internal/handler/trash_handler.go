package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dataroomdrive/internal/auth"
	"dataroomdrive/internal/service"
)

type TrashHandler struct {
	trashService      *service.TrashService
	restoreService    *service.RestoreService
	purgeService      *service.PurgeService
	permissionService *service.PermissionService
}

func NewTrashHandler(
	trashService *service.TrashService,
	restoreService *service.RestoreService,
	purgeService *service.PurgeService,
	permissionService *service.PermissionService,
) *TrashHandler {
	return &TrashHandler{
		trashService:      trashService,
		restoreService:    restoreService,
		purgeService:      purgeService,
		permissionService: permissionService,
	}
}

// authorize проверяет сессию, членство в команде и принадлежность комнаты.
// manager требует роль ADMIN или MANAGER (деструктивные операции).
func (h *TrashHandler) authorize(w http.ResponseWriter, r *http.Request, manager bool) (uuid.UUID, bool) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}

	teamID := chi.URLParam(r, "teamId")
	dataroomID, err := uuid.Parse(chi.URLParam(r, "dataroomId"))
	if err != nil {
		http.Error(w, "Invalid dataroom id", http.StatusBadRequest)
		return uuid.Nil, false
	}

	if manager {
		_, err = h.permissionService.RequireManager(r.Context(), teamID, userID)
	} else {
		_, err = h.permissionService.RequireMember(r.Context(), teamID, userID)
	}
	if err != nil {
		writeError(w, err, "Failed to check permissions")
		return uuid.Nil, false
	}

	if _, err := h.permissionService.ResolveDataroom(r.Context(), teamID, dataroomID); err != nil {
		writeError(w, err, "Failed to resolve dataroom")
		return uuid.Nil, false
	}

	return dataroomID, true
}

// GetTrash возвращает содержимое корзины комнаты. С ?root=true отдаются
// только вершины поддеревьев, иначе — полное дерево.
func (h *TrashHandler) GetTrash(w http.ResponseWriter, r *http.Request) {
	dataroomID, ok := h.authorize(w, r, false)
	if !ok {
		return
	}

	rootOnly := r.URL.Query().Get("root") == "true"

	items, err := h.trashService.ListTrash(r.Context(), dataroomID, rootOnly)
	if err != nil {
		writeError(w, err, "Failed to get trash items")
		return
	}

	if rootOnly {
		writeJSON(w, http.StatusOK, items)
		return
	}

	writeJSON(w, http.StatusOK, service.BuildTrashTree(items))
}

// RestoreItem восстанавливает один элемент корзины
func (h *TrashHandler) RestoreItem(w http.ResponseWriter, r *http.Request) {
	dataroomID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}

	trashID, err := uuid.Parse(chi.URLParam(r, "trashId"))
	if err != nil {
		http.Error(w, "Invalid trash item id", http.StatusBadRequest)
		return
	}

	if err := h.restoreService.Restore(r.Context(), dataroomID, trashID); err != nil {
		writeError(w, err, "Failed to restore item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

// RestoreBulk восстанавливает несколько элементов; неудачи поэлементные
func (h *TrashHandler) RestoreBulk(w http.ResponseWriter, r *http.Request) {
	dataroomID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}

	var req struct {
		TrashItemIDs []uuid.UUID `json:"trash_item_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.TrashItemIDs) == 0 {
		http.Error(w, "No items to restore", http.StatusBadRequest)
		return
	}

	result := h.restoreService.RestoreBulk(r.Context(), dataroomID, req.TrashItemIDs)
	writeJSON(w, http.StatusOK, result)
}

// DeletePermanently немедленно вычищает один элемент корзины в обход
// срока хранения
func (h *TrashHandler) DeletePermanently(w http.ResponseWriter, r *http.Request) {
	dataroomID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}

	trashID, err := uuid.Parse(chi.URLParam(r, "trashId"))
	if err != nil {
		http.Error(w, "Invalid trash item id", http.StatusBadRequest)
		return
	}

	if err := h.purgeService.DeletePermanently(r.Context(), dataroomID, trashID); err != nil {
		writeError(w, err, "Failed to delete item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetSettings возвращает настройки корзины команды
func (h *TrashHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, false); !ok {
		return
	}

	settings, err := h.trashService.GetSettings(r.Context(), chi.URLParam(r, "teamId"))
	if err != nil {
		writeError(w, err, "Failed to get trash settings")
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings обновляет окно хранения корзины команды
func (h *TrashHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, true); !ok {
		return
	}

	var req struct {
		RetentionDays int `json:"retention_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RetentionDays < 1 || req.RetentionDays > 365 {
		http.Error(w, "Retention days must be between 1 and 365", http.StatusBadRequest)
		return
	}

	settings, err := h.trashService.UpdateRetention(r.Context(), chi.URLParam(r, "teamId"), req.RetentionDays)
	if err != nil {
		writeError(w, err, "Failed to update trash settings")
		return
	}

	writeJSON(w, http.StatusOK, settings)
}
