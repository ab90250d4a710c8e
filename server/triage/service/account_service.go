package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"triage_server/server/triage/domain"
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (string, error)
	SetPasswordHash(ctx context.Context, email, hash string) error
}

type TokenIssuer interface {
	GenerateToken(userID, email, role string) (string, error)
}

type NewUserInput struct {
	Email       string
	FullName    string
	PhoneNumber *string
	Role        string
	Password    string
}

// TeamDirectory caches the STAFF/ADMIN listing that new console users must appear in.
type TeamDirectory interface {
	InvalidateTeam(ctx context.Context)
}

// AccountService authenticates console users and provisions accounts for the ops CLI.
type AccountService struct {
	users  UserStore
	tokens TokenIssuer
	team   TeamDirectory
}

// NewAccountService accepts a nil team when no directory cache is in use.
func NewAccountService(users UserStore, tokens TokenIssuer, team TeamDirectory) *AccountService {
	return &AccountService{users: users, tokens: tokens, team: team}
}

func (s *AccountService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}
	if user.PasswordHash == "" {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	if !user.Role.CanTriage() {
		return domain.User{}, "", domain.ErrForbiddenRole
	}
	token, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return domain.User{}, "", err
	}
	user.PasswordHash = ""
	return user, token, nil
}

// IssueToken mints a token for an existing STAFF or ADMIN user without a password check.
func (s *AccountService) IssueToken(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", err
	}
	if !user.Role.CanTriage() {
		return "", domain.ErrForbiddenRole
	}
	return s.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
}

func (s *AccountService) CreateUser(ctx context.Context, in NewUserInput) (string, error) {
	verr := &domain.ValidationError{}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		verr.Add("email", "must be a valid email address")
	}
	if strings.TrimSpace(in.FullName) == "" {
		verr.Add("fullName", "is required")
	}
	role, err := domain.ParseRole(strings.ToUpper(strings.TrimSpace(in.Role)))
	if err != nil {
		verr.Add("role", "must be one of GUEST, HOST, STAFF, ADMIN")
	}
	if err := verr.OrNil(); err != nil {
		return "", err
	}

	user := domain.User{Email: strings.TrimSpace(in.Email), FullName: strings.TrimSpace(in.FullName), PhoneNumber: in.PhoneNumber, Role: role}
	if in.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hashed)
	}
	id, err := s.users.Create(ctx, user)
	if err != nil {
		return "", err
	}
	if role.CanTriage() && s.team != nil {
		s.team.InvalidateTeam(ctx)
	}
	return id, nil
}

func (s *AccountService) SetPassword(ctx context.Context, email, password string) error {
	if len(password) < 8 {
		return domain.NewValidationError("password", "must be at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.SetPasswordHash(ctx, strings.TrimSpace(email), string(hashed))
}
