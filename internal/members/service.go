package members

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"bibliogoya-backend/internal/platform/auth"
	"bibliogoya-backend/internal/platform/identity"
	"bibliogoya-backend/internal/platform/logging"
)

type Service struct {
	store *Store
	log   logging.Logger
}

func NewService(conn *sqlx.DB, log logging.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{store: NewStore(conn), log: log}
}

func normalizeEmail(s string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil || addr.Name != "" {
		return "", ErrInvalid("email is not a valid address")
	}
	return strings.ToLower(addr.Address), nil
}

func parseRole(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return string(identity.RoleMember), nil
	}
	for _, r := range []identity.Role{identity.RoleMember, identity.RoleAdministrator} {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return string(r), nil
		}
	}
	return "", ErrInvalid("role must be Member or Administrator")
}

func hashError(err error) error {
	if errors.Is(err, auth.ErrWeakPassword) {
		return ErrInvalid(err.Error())
	}
	return wrapInternal(err)
}

func (s *Service) CreateMember(ctx context.Context, in CreateMemberRequest) (MemberResponse, error) {
	m := Member{
		Name:       strings.TrimSpace(in.Name),
		Surname:    strings.TrimSpace(in.Surname),
		NationalID: strings.ToUpper(strings.TrimSpace(in.NationalID)),
		Phone:      strings.TrimSpace(in.Phone),
	}
	if m.Name == "" || m.Surname == "" || m.NationalID == "" {
		return MemberResponse{}, ErrInvalid("name, surname, email, national_id are required")
	}
	var err error
	if m.Email, err = normalizeEmail(in.Email); err != nil {
		return MemberResponse{}, err
	}
	if m.Role, err = parseRole(in.Role); err != nil {
		return MemberResponse{}, err
	}

	var hash sql.NullString
	if in.Password != nil {
		h, err := auth.HashPassword(*in.Password)
		if err != nil {
			return MemberResponse{}, hashError(err)
		}
		hash = sql.NullString{String: h, Valid: true}
	}

	id, err := s.store.Insert(ctx, m, hash)
	if err != nil {
		return MemberResponse{}, wrapInternal(err)
	}
	s.log.InfoContext(ctx, "member created", append(logging.Actor(ctx), "member_id", id, "role", m.Role)...)

	out, err := s.store.Get(ctx, id)
	if err != nil {
		return MemberResponse{}, wrapInternal(err)
	}
	return toResponse(out), nil
}

func (s *Service) GetMember(ctx context.Context, id int64) (MemberResponse, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return MemberResponse{}, wrapInternal(err)
	}
	return toResponse(m), nil
}

func (s *Service) ListMembers(ctx context.Context, f MemberFilter, p Page) (ListMembersResult, error) {
	if f.Role != nil {
		r, err := parseRole(*f.Role)
		if err != nil {
			return ListMembersResult{}, err
		}
		f.Role = &r
	}
	f.Q = strings.TrimSpace(f.Q)

	rows, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return ListMembersResult{}, wrapInternal(err)
	}
	items := make([]MemberResponse, 0, len(rows))
	for _, m := range rows {
		items = append(items, toResponse(m))
	}
	next := 0
	if p.Limit > 0 && p.Offset+p.Limit < int(total) {
		next = p.Offset + p.Limit
	}
	return ListMembersResult{Items: items, Total: total, NextOffset: next}, nil
}

func (s *Service) UpdateMember(ctx context.Context, id int64, in UpdateMemberRequest) (MemberResponse, error) {
	rec := goqu.Record{}
	set := func(col string, v *string, transform func(string) string) error {
		if v == nil {
			return nil
		}
		val := transform(strings.TrimSpace(*v))
		if val == "" && col != "phone" {
			return ErrInvalid(col + " must not be empty")
		}
		rec[col] = val
		return nil
	}
	keep := func(v string) string { return v }
	if err := set("name", in.Name, keep); err != nil {
		return MemberResponse{}, err
	}
	if err := set("surname", in.Surname, keep); err != nil {
		return MemberResponse{}, err
	}
	if err := set("national_id", in.NationalID, strings.ToUpper); err != nil {
		return MemberResponse{}, err
	}
	if err := set("phone", in.Phone, keep); err != nil {
		return MemberResponse{}, err
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return MemberResponse{}, err
		}
		rec["email"] = email
	}
	if in.Role != nil {
		role, err := parseRole(*in.Role)
		if err != nil {
			return MemberResponse{}, err
		}
		rec["role"] = role
	}

	m, err := s.store.Update(ctx, id, rec)
	if err != nil {
		return MemberResponse{}, wrapInternal(err)
	}
	s.log.InfoContext(ctx, "member updated", append(logging.Actor(ctx), "member_id", id)...)
	return toResponse(m), nil
}

// DeleteMember is refused while the member holds a loan.
func (s *Service) DeleteMember(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return wrapInternal(err)
	}
	s.log.InfoContext(ctx, "member deleted", append(logging.Actor(ctx), "member_id", id)...)
	return nil
}

// SetPassword is the administrator's reset; members change their own through auth.
func (s *Service) SetPassword(ctx context.Context, id int64, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return hashError(err)
	}
	if err := s.store.SetPasswordHash(ctx, id, hash); err != nil {
		return wrapInternal(err)
	}
	s.log.InfoContext(ctx, "member password set", append(logging.Actor(ctx), "member_id", id)...)
	return nil
}
