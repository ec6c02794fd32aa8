package domain

import (
	"time"

	"github.com/google/uuid"
)

// Folder представляет папку комнаты данных с материализованным путем.
// Path всегда строится как parentPath + "/" + slug(name); у живых папок
// путь уникален в пределах комнаты. RemovedAt != nil означает, что папка
// находится в корзине (мягкое удаление).
type Folder struct {
	ID         int64      `json:"id" db:"id"`
	DataroomID uuid.UUID  `json:"dataroom_id" db:"dataroom_id"`
	Name       string     `json:"name" db:"name"`
	Path       string     `json:"path" db:"path"`
	ParentID   *int64     `json:"parent_id,omitempty" db:"parent_id"`
	OrderIndex int        `json:"order_index" db:"order_index"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	RemovedAt  *time.Time `json:"removed_at,omitempty" db:"removed_at"`
}

// InTrash сообщает, помечена ли папка как удаленная
func (f *Folder) InTrash() bool {
	return f.RemovedAt != nil
}
