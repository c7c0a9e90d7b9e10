package members

import "time"

// Member は members テーブルの1行（password_hash は auth 側だけが読む）
type Member struct {
	ID         int64     `db:"id"`
	Name       string    `db:"name"`
	Surname    string    `db:"surname"`
	Email      string    `db:"email"`
	NationalID string    `db:"national_id"`
	Phone      string    `db:"phone"`
	Role       string    `db:"role"`
	HasLogin   bool      `db:"has_login"`
	CreatedAt  time.Time `db:"created_at"`
}

// ===== Requests =====

type CreateMemberRequest struct {
	Name       string  `json:"name" binding:"required"`
	Surname    string  `json:"surname" binding:"required"`
	Email      string  `json:"email" binding:"required"`
	NationalID string  `json:"national_id" binding:"required"`
	Phone      string  `json:"phone"`
	Role       string  `json:"role"`               // 未指定なら Member
	Password   *string `json:"password,omitempty"` // 未指定ならログイン不可
}

type UpdateMemberRequest struct {
	Name       *string `json:"name,omitempty"`
	Surname    *string `json:"surname,omitempty"`
	Email      *string `json:"email,omitempty"`
	NationalID *string `json:"national_id,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Role       *string `json:"role,omitempty"`
}

type SetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// ===== Responses =====

type MemberResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Surname    string    `json:"surname"`
	Email      string    `json:"email"`
	NationalID string    `json:"national_id"`
	Phone      string    `json:"phone"`
	Role       string    `json:"role"`
	HasLogin   bool      `json:"has_login"`
	CreatedAt  time.Time `json:"created_at"`
}

type ListMembersResult struct {
	Items      []MemberResponse `json:"items"`
	Total      int64            `json:"total"`
	NextOffset int              `json:"next_offset"`
}

// ===== Listing helpers =====

type Page struct {
	Limit  int // 0 = all
	Offset int
}

type MemberFilter struct {
	Role *string
	Q    string // prefix of name, surname or email
}

func toResponse(m Member) MemberResponse {
	return MemberResponse{
		ID:         m.ID,
		Name:       m.Name,
		Surname:    m.Surname,
		Email:      m.Email,
		NationalID: m.NationalID,
		Phone:      m.Phone,
		Role:       m.Role,
		HasLogin:   m.HasLogin,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}
