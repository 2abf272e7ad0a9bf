package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"live-class-backend/internal/models"
	"live-class-backend/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

var loginPattern = regexp.MustCompile(`^\d{1,32}$`)

const tokenTTL = 24 * time.Hour

type AuthService struct {
	store     store.Store
	jwtSecret []byte
}

func NewAuthService(st store.Store, jwtSecret string) *AuthService {
	return &AuthService{store: st, jwtSecret: []byte(jwtSecret)}
}

// Register creates a teacher or student account and returns a token for it.
// Logins are numeric ids, as handed out by the school.
func (s *AuthService) Register(ctx context.Context, login, password, role string) (string, *models.User, error) {
	if !loginPattern.MatchString(login) {
		return "", nil, validationErr("login must be a numeric id")
	}
	if len(password) < 6 {
		return "", nil, validationErr("password must be at least 6 characters")
	}
	if role != models.RoleTeacher && role != models.RoleStudent {
		return "", nil, validationErr("role must be %q or %q", models.RoleTeacher, models.RoleStudent)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	user := models.User{
		ID:           uuid.NewString(),
		Login:        login,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return "", nil, validationErr("login already taken")
		}
		return "", nil, transportErr("create user", err)
	}

	token, err := s.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func (s *AuthService) Login(ctx context.Context, login, password string) (string, *models.User, error) {
	user, err := s.store.FindUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, transportErr("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// User loads the account behind a validated token.
func (s *AuthService) User(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundErr("user " + id)
		}
		return nil, transportErr("get user", err)
	}
	return user, nil
}

func (s *AuthService) GenerateToken(userID, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(tokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken returns the user id and role carried by the token.
func (s *AuthService) ValidateToken(tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", "", fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	role, _ := claims["role"].(string)
	return userID, role, nil
}
