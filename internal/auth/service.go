package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"crypto-portfolio-tracker/internal/config"
	"crypto-portfolio-tracker/internal/errs"
	"crypto-portfolio-tracker/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultTokenTTL = 24 * time.Hour
	minPasswordLen  = 8
)

// ErrInvalidCredentials is returned for any failed login, whatever the cause.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Claims is the payload of a session token.
type Claims struct {
	Username string `json:"name"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

// UserID returns the numeric user id carried in the subject.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid subject %q: %v", errs.ErrUnauthorized, c.Subject, err)
	}
	return uint(id), nil
}

// Service registers users and issues session tokens.
type Service struct {
	db     *gorm.DB
	cfg    config.Auth
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, cfg *config.Auth, logger *zap.Logger) *Service {
	c := *cfg
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}
	return &Service{
		db:     db,
		cfg:    c,
		logger: logger.Named("auth"),
		now:    time.Now,
	}
}

// Register creates an active account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || len(password) < minPasswordLen {
		return nil, errs.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
		IsAdmin:      slices.Contains(s.cfg.AdminUsers, username),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		msg := err.Error()
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "duplicate") {
			return nil, errs.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// Login checks credentials and returns a signed token for the user.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !user.IsActive {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(&user)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func (s *Service) issueToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: user.Username,
		Admin:    user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a signed token and returns its claims. Every
// rejection matches errs.ErrUnauthorized.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, errs.ErrUnauthorized
	}
	return claims, nil
}

// CloseAccount soft-deletes the user together with their holdings.
func (s *Service) CloseAccount(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Asset{}).Error; err != nil {
			return fmt.Errorf("failed to remove assets: %w", err)
		}
		result := tx.Model(&models.User{}).Where("id = ?", userID).Update("is_active", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errs.ErrNotFound
		}
		return tx.Delete(&models.User{}, userID).Error
	})
}

// IsActive reports whether the account still exists and may sign in.
func (s *Service) IsActive(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND is_active = ?", userID, true).Count(&count).Error
	return count > 0, err
}

// ListUsers returns all open accounts.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
