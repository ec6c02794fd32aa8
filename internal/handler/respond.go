package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"dataroomdrive/internal/domain"
)

// writeJSON сериализует ответ
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// writeError транслирует доменные ошибки в HTTP-статусы.
// ErrRestorePathNotFound отдается как 400 с различимым сообщением:
// клиент подсказывает пользователю сначала восстановить родителя.
func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrRestorePathNotFound):
		http.Error(w, "Restore path not found: restore the parent folder first", http.StatusBadRequest)
	case errors.Is(err, domain.ErrAlreadyDeleted):
		http.Error(w, "Item is already in trash", http.StatusBadRequest)
	default:
		log.Printf("%s: %v", fallback, err)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
