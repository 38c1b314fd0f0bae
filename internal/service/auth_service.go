package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/artmarket-backend/internal/models"
	"github.com/ignatzorin/artmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/artmarket-backend/internal/repository"
	"github.com/ignatzorin/artmarket-backend/internal/repository/common"
	"github.com/ignatzorin/artmarket-backend/internal/validation"
)

// AuthService отвечает за регистрацию, вход и обновление токенов.
type AuthService struct {
	users  *repository.UserRepository
	tokens *TokenManager
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users *repository.UserRepository, tokens *TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register создаёт нового пользователя и сразу выдаёт пару токенов.
func (s *AuthService) Register(ctx context.Context, email, username, password, role string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, nil, apperror.Validation(err.Error())
	}
	if _, ok := models.ValidUserRoles[role]; !ok {
		return nil, nil, apperror.Validation("недопустимая роль пользователя")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: хеширование пароля: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, nil, apperror.Conflict("пользователь с таким email уже существует")
		}
		return nil, nil, fmt.Errorf("auth: создание пользователя: %w", err)
	}

	pair, _, refreshExp, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: выпуск токенов: %w", err)
	}

	if err := s.saveSession(ctx, user.ID, pair.RefreshToken, refreshExp); err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// Login проверяет учётные данные и выдаёт пару токенов.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, apperror.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("auth: поиск пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperror.ErrInvalidCredentials
	}

	pair, _, refreshExp, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: выпуск токенов: %w", err)
	}

	if err := s.saveSession(ctx, user.ID, pair.RefreshToken, refreshExp); err != nil {
		return nil, nil, err
	}

	if err := s.users.UpdateLastLoginAt(ctx, user.ID); err != nil {
		return nil, nil, fmt.Errorf("auth: обновление last_login_at: %w", err)
	}

	return user, pair, nil
}

// Refresh меняет refresh токен на новую пару.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	session, err := s.users.GetSessionByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, fmt.Errorf("auth: поиск сессии: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.users.DeleteSession(ctx, refreshToken)
		return nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID != session.UserID {
		return nil, apperror.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	pair, _, refreshExp, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, fmt.Errorf("auth: выпуск токенов: %w", err)
	}

	// Старая сессия заменяется новой.
	if err := s.users.DeleteSession(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("auth: удаление сессии: %w", err)
	}
	if err := s.saveSession(ctx, user.ID, pair.RefreshToken, refreshExp); err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout удаляет сессию по refresh токену.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.users.DeleteSession(ctx, refreshToken); err != nil {
		return fmt.Errorf("auth: удаление сессии: %w", err)
	}
	return nil
}

func (s *AuthService) saveSession(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	session := &models.Session{
		ID:           uuid.New(),
		UserID:       userID,
		RefreshToken: token,
		ExpiresAt:    expiresAt,
		CreatedAt:    time.Now(),
	}
	if err := s.users.CreateSession(ctx, session); err != nil {
		return fmt.Errorf("auth: сохранение сессии: %w", err)
	}
	return nil
}
