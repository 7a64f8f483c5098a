package user

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusBanned Status = "BANNED"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	Login        string    `db:"login" json:"login"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	Status       Status    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Banned reports whether the account is barred from logging in. An empty
// status counts as active.
func (u *User) Banned() bool {
	return u.Status == StatusBanned
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Session is returned on login and registration. The token is also sent
// in the Authorization header.
type Session struct {
	Token     string    `json:"token"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type BanRequest struct {
	Banned bool `json:"banned"`
}

type PasswordRequest struct {
	Password string `json:"password"`
}

type UpdateRequest struct {
	Login string `json:"login"`
}
