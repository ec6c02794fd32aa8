package domain

import (
	"time"

	"github.com/google/uuid"
)

// ItemType определяет тип элемента корзины
type ItemType string

const (
	ItemTypeFolder   ItemType = "DATAROOM_FOLDER"
	ItemTypeDocument ItemType = "DATAROOM_DOCUMENT"
)

// TrashItem представляет индексную запись корзины: ровно одна строка на
// каждую мягко удаленную папку или документ. ParentID указывает на
// trash-запись непосредственной удаленной родительской папки, либо nil,
// если элемент удален на еще живом уровне (вершина поддерева корзины).
type TrashItem struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	ItemType           ItemType   `json:"item_type" db:"item_type"`
	DataroomID         uuid.UUID  `json:"dataroom_id" db:"dataroom_id"`
	DataroomFolderID   *int64     `json:"dataroom_folder_id,omitempty" db:"dataroom_folder_id"`
	DataroomDocumentID *uuid.UUID `json:"dataroom_document_id,omitempty" db:"dataroom_document_id"`
	ParentID           *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	Name               string     `json:"name" db:"name"`
	TrashPath          string     `json:"trash_path" db:"trash_path"`
	FullPath           string     `json:"full_path" db:"full_path"`
	DeletedAt          time.Time  `json:"deleted_at" db:"deleted_at"`
	PurgeAt            time.Time  `json:"purge_at" db:"purge_at"`
}

// TrashNode — узел дерева корзины, собранного по ParentID
type TrashNode struct {
	TrashItem
	ChildFolders []*TrashNode `json:"child_folders,omitempty"`
	Documents    []*TrashNode `json:"documents,omitempty"`
}

// TrashSettings хранит настройки корзины команды: окно хранения до
// окончательного удаления, в днях
type TrashSettings struct {
	TeamID        string    `json:"team_id" db:"team_id"`
	RetentionDays int       `json:"retention_days" db:"retention_days"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// PurgeResult агрегирует итог планового прохода очистки
type PurgeResult struct {
	PurgedCount int      `json:"purged_count"`
	Errors      []string `json:"errors,omitempty"`
}
