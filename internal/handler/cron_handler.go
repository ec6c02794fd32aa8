package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"
	"time"

	"dataroomdrive/internal/service"
)

// CronHandler — точка входа внешнего планировщика. Состояния между
// вызовами нет: недоделанный из-за таймаута проход просто доберет
// оставшееся на следующем тике, удаление каждого элемента идемпотентно.
type CronHandler struct {
	purgeService *service.PurgeService
	secret       string
}

func NewCronHandler(purgeService *service.PurgeService, secret string) *CronHandler {
	return &CronHandler{
		purgeService: purgeService,
		secret:       secret,
	}
}

// AutoPurgeTrash запускает плановую очистку просроченных элементов корзины
func (h *CronHandler) AutoPurgeTrash(w http.ResponseWriter, r *http.Request) {
	if !h.verifySignature(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.purgeService.PurgeExpired(r.Context(), time.Now())
	if err != nil {
		log.Printf("Trash purge sweep failed: %v", err)
		http.Error(w, "Purge sweep failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// verifySignature сверяет HMAC-подпись тела запроса с общим секретом.
// Пустой секрет отключает проверку — режим локальной разработки.
func (h *CronHandler) verifySignature(r *http.Request) bool {
	if h.secret == "" {
		return true
	}

	signature := r.Header.Get("X-Cron-Signature")
	if signature == "" {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
