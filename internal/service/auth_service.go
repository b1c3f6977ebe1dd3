// Package service provides application business logic (auth, users, posts, search, chat).
package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"vibefeed/internal/auth"
	"vibefeed/internal/models"
	"vibefeed/internal/repository"
	"vibefeed/internal/validation"
)

const (
	maxNameLen     = 50
	maxBioLen      = 500
	maxLocationLen = 100
)

// AuthService registers users, checks credentials and verifies tokens.
type AuthService struct {
	userRepo repository.UserRepository
	tokens   *auth.TokenIssuer
}

// SignupInput is the signup request body.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// LoginInput is the login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// NewAuthService returns a new AuthService.
func NewAuthService(userRepo repository.UserRepository, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens}
}

// Signup creates an account with zeroed counters and returns it with a token.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := validation.NormalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	name := strings.TrimSpace(in.Name)

	if email == "" || in.Password == "" || username == "" {
		return nil, models.NewValidationError("Email, password and username are required")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if name == "" {
		name = username
	}
	if err := validation.ValidateProfileText("name", name, maxNameLen); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	taken, err := s.userRepo.EmailTaken(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewConflictError("User with this email already exists")
	}
	taken, err = s.userRepo.UsernameTaken(ctx, username, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewConflictError("Username is already taken")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Email:    email,
		Username: username,
		Name:     name,
		Password: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login answers "Invalid credentials" for an unknown email and for a wrong
// password alike.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Spend the same bcrypt work as a real comparison
		auth.CheckPassword(dummyHash(), in.Password)
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if !auth.CheckPassword(user.Password, in.Password) {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

// Authenticate resolves a bearer token to a user id.
func (s *AuthService) Authenticate(token string) (uint, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrMissingToken) {
			return 0, models.NewAuthRequiredError("Access token required")
		}
		return 0, models.NewAuthInvalidError("Invalid or expired token", err)
	}
	return claims.UserID, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// dummyHash is a bcrypt hash of a throwaway string, built on first use.
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("vibefeed-timing-equalizer-0")
	return h
})
