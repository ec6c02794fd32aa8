package domain

import "time"

// Role определяет роль участника команды
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
)

// CanManage проверяет, разрешены ли роли деструктивные операции
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleManager
}

type Team struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TeamMember представляет участника команды с его ролью
type TeamMember struct {
	ID       int64     `json:"id" db:"id"`
	TeamID   string    `json:"team_id" db:"team_id"`
	UserID   string    `json:"user_id" db:"user_id"`
	Role     Role      `json:"role" db:"role"`
	Status   string    `json:"status" db:"status"` // active, suspended
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// TeamUsage хранит занятое командой место в хранилище
type TeamUsage struct {
	TeamID    string    `json:"team_id" db:"team_id"`
	UsedBytes int64     `json:"used_bytes" db:"used_bytes"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
