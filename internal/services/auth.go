package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/apperr"
	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
	"github.com/harentsoaR/telehealth-api/internal/utils"
)

type RegisterRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type AuthResult struct {
	User  *models.User
	Token string
}

type AuthService struct {
	users    store.UserStore
	jwt      *utils.JWTManager
	hashCost int
	now      func() time.Time
}

func NewAuthService(users store.UserStore, jwt *utils.JWTManager, hashCost int) *AuthService {
	return &AuthService{users: users, jwt: jwt, hashCost: hashCost, now: func() time.Time { return time.Now().UTC() }}
}

// Register creates a regular user. Admins are never created through here.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	name := strings.TrimSpace(req.Name)
	phone := strings.TrimSpace(req.PhoneNumber)
	if name == "" || phone == "" || req.Password == "" {
		return nil, apperr.Invalid(apperr.CodeInvalidRequest, "Name, phone number and password are required")
	}
	if len(req.Password) < utils.MinPasswordLength {
		return nil, apperr.Invalid(apperr.CodeInvalidRequest, "Password must be at least 6 characters")
	}

	hashed, err := utils.HashPasswordCost(req.Password, s.hashCost)
	if err != nil {
		return nil, apperr.Internal("Failed to hash password", err)
	}

	now := s.now()
	user := &models.User{
		ID:          primitive.NewObjectID(),
		Name:        name,
		PhoneNumber: phone,
		Password:    hashed,
		Role:        models.RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	switch err := s.users.Insert(ctx, user); {
	case errors.Is(err, store.ErrDuplicatePhone):
		return nil, apperr.Conflict(apperr.CodePhoneTaken, "An account with this phone number already exists")
	case err != nil:
		return nil, apperr.Internal("Failed to create user", err)
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	bad := apperr.Unauthorized("Invalid phone number or password")

	user, err := s.users.FindByPhone(ctx, strings.TrimSpace(req.PhoneNumber))
	if errors.Is(err, store.ErrNotFound) {
		return nil, bad
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load user", err)
	}
	if !utils.CheckPasswordHash(req.Password, user.Password) {
		return nil, bad
	}
	return s.issue(user)
}

func (s *AuthService) Profile(ctx context.Context, caller Caller) (*models.User, error) {
	user, err := s.users.FindByID(ctx, caller.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load user", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.jwt.Generate(user.ID.Hex(), user.Role)
	if err != nil {
		return nil, apperr.Internal("Failed to issue token", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
