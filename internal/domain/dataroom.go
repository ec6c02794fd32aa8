package domain

import (
	"time"

	"github.com/google/uuid"
)

// Dataroom представляет комнату данных, принадлежащую команде
type Dataroom struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TeamID    string    `json:"team_id" db:"team_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DataroomContent возвращается при просмотре живой иерархии комнаты
type DataroomContent struct {
	Folders   []Folder           `json:"folders"`
	Documents []DataroomDocument `json:"documents"`
}
