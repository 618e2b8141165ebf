package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"docsearch/internal/model"
	"docsearch/internal/pkg/jwtutil"
	"docsearch/internal/repository"
	"docsearch/internal/warehouse"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)

// AuthService manages dashboard accounts. Accounts live in the warehouse next
// to the catalog so a single connection serves both.
type AuthService struct {
	warehouse     *warehouse.Provider
	jwtSecret     string
	jwtExpiration time.Duration
}

type RegisterInput struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.User
}

func NewAuthService(provider *warehouse.Provider, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		warehouse:     provider,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	displayName := strings.TrimSpace(input.DisplayName)

	if username == "" || email == "" || password == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}
	if displayName == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	err = s.warehouse.Run(ctx, func(db *gorm.DB) error {
		repo := repository.NewUserRepository(db)
		existingByName, err := repo.GetByUsername(username)
		if err != nil {
			return err
		}
		if existingByName != nil {
			return ErrUsernameExists
		}
		existingByEmail, err := repo.GetByEmail(email)
		if err != nil {
			return err
		}
		if existingByEmail != nil {
			return ErrEmailExists
		}
		return repo.Create(user)
	})
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	var user *model.User
	err := s.warehouse.Run(ctx, func(db *gorm.DB) error {
		var err error
		user, err = repository.NewUserRepository(db).GetByUsername(username)
		return err
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	return s.issue(user)
}

func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	var user *model.User
	err := s.warehouse.Run(ctx, func(db *gorm.DB) error {
		var err error
		user, err = repository.NewUserRepository(db).GetByID(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}
