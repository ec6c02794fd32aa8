package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"dataroomdrive/internal/domain"
	"dataroomdrive/internal/notify"
	"dataroomdrive/internal/repository"
	"dataroomdrive/internal/service/s3"
)

// purgeLockKey — ключ межэкземплярной блокировки планового прохода.
// Очистка может запускаться на нескольких stateless-инстансах, поэтому
// дедупликация идет через внешний store с TTL, а не через память процесса.
const purgeLockKey = "dataroomdrive:trash:purge-lock"

const purgeLockTTL = 10 * time.Minute

// purgeUnlockScript удаляет блокировку, только если ее значение — наш
// токен. Проход, переживший TTL, не должен снимать блокировку, которую
// успел взять другой инстанс.
var purgeUnlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`)

// PurgeService выполняет необратимое каскадное удаление просроченных
// элементов корзины. Каждый элемент вычищается в собственной транзакции:
// сбой на одном не останавливает проход по остальным.
type PurgeService struct {
	db           *sqlx.DB
	folderRepo   *repository.FolderRepository
	docRepo      *repository.DocumentRepository
	trashRepo    *repository.TrashRepository
	dataroomRepo *repository.DataroomRepository
	teamRepo     *repository.TeamRepository
	storage      s3.Storage
	rdb          *redis.Client
	notifier     *notify.Notifier
}

func NewPurgeService(
	db *sqlx.DB,
	folderRepo *repository.FolderRepository,
	docRepo *repository.DocumentRepository,
	trashRepo *repository.TrashRepository,
	dataroomRepo *repository.DataroomRepository,
	teamRepo *repository.TeamRepository,
	storage s3.Storage,
	rdb *redis.Client,
	notifier *notify.Notifier,
) *PurgeService {
	return &PurgeService{
		db:           db,
		folderRepo:   folderRepo,
		docRepo:      docRepo,
		trashRepo:    trashRepo,
		dataroomRepo: dataroomRepo,
		teamRepo:     teamRepo,
		storage:      storage,
		rdb:          rdb,
		notifier:     notifier,
	}
}

// PurgeExpired вычищает все записи корзины с purge_at <= now.
// Граница включающая: элемент, истекающий ровно в now, попадает в этот
// проход. Порядок — папки раньше документов, старые раньше новых.
func (s *PurgeService) PurgeExpired(ctx context.Context, now time.Time) (*domain.PurgeResult, error) {
	if s.rdb != nil {
		lockToken := uuid.NewString()
		ok, err := s.rdb.SetNX(ctx, purgeLockKey, lockToken, purgeLockTTL).Result()
		if err != nil {
			// Redis недоступен — идем дальше: удаление идемпотентно,
			// двойной проход хуже пропущенного, но не опасен
			log.Printf("warning: purge lock unavailable: %v", err)
		} else if !ok {
			log.Printf("purge sweep already running elsewhere, skipping")
			return &domain.PurgeResult{}, nil
		} else {
			defer s.releasePurgeLock(context.WithoutCancel(ctx), lockToken)
		}
	}

	items, err := s.trashRepo.ListExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired trash items: %w", err)
	}

	result := &domain.PurgeResult{}
	affectedRooms := make(map[uuid.UUID]bool)
	var freedKeys []string

	for _, item := range items {
		purged, keys, err := s.purgeItem(ctx, &item)
		if err != nil {
			// Изоляция сбоев: ошибка одного элемента не прерывает проход
			msg := fmt.Sprintf("failed to purge trash item %s: %v", item.ID, err)
			result.Errors = append(result.Errors, msg)
			s.notifier.Send(notify.Message{Text: msg, Type: "cron", Mention: true})
			continue
		}
		if purged {
			result.PurgedCount++
			freedKeys = append(freedKeys, keys...)
			affectedRooms[item.DataroomID] = true
		}
	}

	s.cleanupAfterPurge(ctx, affectedRooms, freedKeys)

	summary := fmt.Sprintf("trash purge finished: purged=%d errors=%d", result.PurgedCount, len(result.Errors))
	s.notifier.Send(notify.Message{Text: summary, Type: "cron", Mention: len(result.Errors) > 0})

	return result, nil
}

// releasePurgeLock снимает блокировку прохода по токену
func (s *PurgeService) releasePurgeLock(ctx context.Context, token string) {
	if err := purgeUnlockScript.Run(ctx, s.rdb, []string{purgeLockKey}, token).Err(); err != nil {
		log.Printf("warning: failed to release purge lock: %v", err)
	}
}

// DeletePermanently — немедленная очистка одного элемента по запросу
// пользователя, в обход purge_at
func (s *PurgeService) DeletePermanently(ctx context.Context, dataroomID, trashItemID uuid.UUID) error {
	item, err := s.trashRepo.GetByID(ctx, dataroomID, trashItemID)
	if err != nil {
		return err
	}

	purged, keys, err := s.purgeItem(ctx, item)
	if err != nil {
		return err
	}
	if !purged {
		return domain.ErrNotFound
	}

	s.cleanupAfterPurge(ctx, map[uuid.UUID]bool{dataroomID: true}, keys)

	return nil
}

// purgeItem вычищает один элемент в собственной транзакции.
// Возвращает purged=false без ошибки, если записи корзины уже нет —
// повторная очистка идемпотентна. Ключи объектов хранилища возвращаются
// для удаления после коммита.
func (s *PurgeService) purgeItem(ctx context.Context, item *domain.TrashItem) (bool, []string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Блокировка исключает гонку с параллельным восстановлением
	locked, err := s.trashRepo.GetByIDForUpdateTx(ctx, tx, item.DataroomID, item.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil, nil
		}
		return false, nil, err
	}

	var keys []string
	switch locked.ItemType {
	case domain.ItemTypeFolder:
		keys, err = s.purgeFolderTx(ctx, tx, locked)
	case domain.ItemTypeDocument:
		keys, err = s.purgeDocumentTx(ctx, tx, locked)
	default:
		err = fmt.Errorf("unknown trash item type: %s", locked.ItemType)
	}
	if err != nil {
		return false, nil, err
	}

	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("failed to commit purge: %w", err)
	}

	return true, keys, nil
}

// purgeFolderTx каскадно вычищает поддерево папки. Дерево пересчитывается
// заново: под вершиной могли появиться элементы, удаленные позже создания
// trash-записи, и проход обязан забрать их все. Порядок массовых
// удалений: документы, затем папки, затем индексные записи.
func (s *PurgeService) purgeFolderTx(ctx context.Context, tx *sqlx.Tx, item *domain.TrashItem) ([]string, error) {
	if item.DataroomFolderID == nil {
		return nil, fmt.Errorf("trash item %s has no folder reference", item.ID)
	}

	folder, err := s.folderRepo.GetByIDTx(ctx, tx, item.DataroomID, *item.DataroomFolderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Подлежащая строка уже исчезла — убираем осиротевший маркер
			return nil, s.trashRepo.DeleteByIDsTx(ctx, tx, []uuid.UUID{item.ID})
		}
		return nil, err
	}

	subtree, err := s.folderRepo.CollectSubtreeTx(ctx, tx, item.DataroomID, folder.Path)
	if err != nil {
		return nil, err
	}
	folderIDs := make([]int64, len(subtree))
	for i, f := range subtree {
		folderIDs[i] = f.ID
	}

	docs, err := s.docRepo.CollectByFolderIDsTx(ctx, tx, item.DataroomID, folderIDs)
	if err != nil {
		return nil, err
	}

	docIDs := make([]uuid.UUID, len(docs))
	for i, d := range docs {
		docIDs[i] = d.ID
	}

	if err := s.docRepo.DeleteTx(ctx, tx, docIDs); err != nil {
		return nil, err
	}
	if err := s.folderRepo.DeleteTx(ctx, tx, folderIDs); err != nil {
		return nil, err
	}
	if err := s.trashRepo.DeleteByTargetsTx(ctx, tx, folderIDs, docIDs); err != nil {
		return nil, err
	}

	return s.reapOrphanDocumentsTx(ctx, tx, docs)
}

func (s *PurgeService) purgeDocumentTx(ctx context.Context, tx *sqlx.Tx, item *domain.TrashItem) ([]string, error) {
	if item.DataroomDocumentID == nil {
		return nil, fmt.Errorf("trash item %s has no document reference", item.ID)
	}

	doc, err := s.docRepo.GetByIDTx(ctx, tx, item.DataroomID, *item.DataroomDocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, s.trashRepo.DeleteByIDsTx(ctx, tx, []uuid.UUID{item.ID})
		}
		return nil, err
	}

	if err := s.docRepo.DeleteTx(ctx, tx, []uuid.UUID{doc.ID}); err != nil {
		return nil, err
	}
	if err := s.trashRepo.DeleteByIDsTx(ctx, tx, []uuid.UUID{item.ID}); err != nil {
		return nil, err
	}

	return s.reapOrphanDocumentsTx(ctx, tx, []domain.DataroomDocument{*doc})
}

// reapOrphanDocumentsTx удаляет переиспользуемые документы, оставшиеся
// без ссылок из комнат, и возвращает ключи их объектов в хранилище
func (s *PurgeService) reapOrphanDocumentsTx(ctx context.Context, tx *sqlx.Tx, docs []domain.DataroomDocument) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	documentIDs := make([]uuid.UUID, len(docs))
	for i, d := range docs {
		documentIDs[i] = d.DocumentID
	}

	if err := s.teamRepo.DeleteOrphanDocumentsTx(ctx, tx, documentIDs); err != nil {
		return nil, err
	}

	existing, err := s.docRepo.ListExistingDocumentIDsTx(ctx, tx, documentIDs)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, d := range docs {
		if !existing[d.DocumentID] && d.StorageKey != "" {
			keys = append(keys, d.StorageKey)
		}
	}

	return keys, nil
}

// cleanupAfterPurge выполняет пост-обработку вне транзакций: удаление
// объектов из хранилища и пересчет занятого места. Ошибки здесь только
// логируются — очистка базы уже зафиксирована.
func (s *PurgeService) cleanupAfterPurge(ctx context.Context, dataroomIDs map[uuid.UUID]bool, storageKeys []string) {
	if s.storage != nil {
		for _, key := range storageKeys {
			if err := s.storage.DeleteObject(ctx, key); err != nil {
				log.Printf("warning: failed to delete object %s from storage: %v", key, err)
			}
		}
	}

	teams := make(map[string]bool)
	for dataroomID := range dataroomIDs {
		teamID, err := s.dataroomRepo.GetTeamIDByDataroom(ctx, dataroomID)
		if err != nil {
			log.Printf("warning: failed to resolve team for dataroom %s: %v", dataroomID, err)
			continue
		}
		teams[teamID] = true
	}

	for teamID := range teams {
		if _, err := s.teamRepo.RecomputeUsage(ctx, teamID); err != nil {
			log.Printf("warning: failed to recompute usage for team %s: %v", teamID, err)
		}
	}
}
