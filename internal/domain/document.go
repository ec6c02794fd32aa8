package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document представляет переиспользуемый документ команды.
// Сам файл лежит в S3 под ключом StorageKey.
type Document struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TeamID     string    `json:"team_id" db:"team_id"`
	Name       string    `json:"name" db:"name"`
	StorageKey string    `json:"storage_key" db:"storage_key"`
	SizeBytes  int64     `json:"size_bytes" db:"size_bytes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// DataroomDocument связывает документ с комнатой данных и, опционально,
// с папкой внутри нее. Мягкое удаление помечается через RemovedAt.
type DataroomDocument struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	DataroomID uuid.UUID  `json:"dataroom_id" db:"dataroom_id"`
	DocumentID uuid.UUID  `json:"document_id" db:"document_id"`
	FolderID   *int64     `json:"folder_id,omitempty" db:"folder_id"`
	OrderIndex int        `json:"order_index" db:"order_index"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	RemovedAt  *time.Time `json:"removed_at,omitempty" db:"removed_at"`

	// Денормализованные поля документа, заполняются join-ом
	Name       string `json:"name" db:"name"`
	StorageKey string `json:"storage_key" db:"storage_key"`
	SizeBytes  int64  `json:"size_bytes" db:"size_bytes"`
}
