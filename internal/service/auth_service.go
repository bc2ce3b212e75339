package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"task-calendar/internal/logging"
	"task-calendar/internal/model"
	"task-calendar/internal/repository"
)

// LinkCodeTTL is how long a Telegram link code stays valid.
const LinkCodeTTL = 10 * time.Minute

// linkCodeAttempts bounds how often IssueLinkCode draws again after a clash.
const linkCodeAttempts = 5

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// Claims are the JWT claims issued at login.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService handles accounts, tokens and Telegram chat linking.
type AuthService struct {
	users   repository.UserStore
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	newCode func() (string, error)
}

func NewAuthService(users repository.UserStore, secret string, ttl time.Duration) *AuthService {
	return &AuthService{users: users, secret: []byte(secret), ttl: ttl, now: time.Now, newCode: randomLinkCode}
}

func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return nil, invalid("email", "is already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalid("email", "is already registered")
		}
		return nil, err
	}
	logging.Logger.Infof("Event ID: USER_REGISTERED, Description: user %s registered", user.ID)
	return &user, nil
}

// Login checks the credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logging.Logger.Warnf("Event ID: LOGIN_FAILED, Description: wrong password for user %s", user.ID)
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) IssueToken(user *model.User) (string, error) {
	now := s.now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns the user id it was issued to.
func (s *AuthService) ParseToken(raw string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("parse token: missing subject")
	}
	return claims.Subject, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	return s.users.FindByID(ctx, userID)
}

// IssueLinkCode stores a fresh six digit code the user sends to the bot. A code
// already held by another user is drawn again.
func (s *AuthService) IssueLinkCode(ctx context.Context, userID string) (string, time.Time, error) {
	expiry := s.now().UTC().Add(LinkCodeTTL)
	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return "", time.Time{}, fmt.Errorf("generate link code: %w", err)
		}
		err = s.users.SetLinkCode(ctx, userID, code, expiry)
		switch {
		case err == nil:
			return code, expiry, nil
		case errors.Is(err, repository.ErrDuplicate) && attempt < linkCodeAttempts:
			logging.Logger.Debugf("Event ID: LINK_CODE_CLASH, Description: redrawing link code for user %s", userID)
		default:
			return "", time.Time{}, err
		}
	}
}

func randomLinkCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// LinkTelegram binds a chat to the user holding code. Unknown or expired codes give ErrNotFound.
func (s *AuthService) LinkTelegram(ctx context.Context, code string, chatID int64) (*model.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("code", "is required")
	}
	user, err := s.users.LinkTelegram(ctx, code, chatID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: TELEGRAM_LINKED, Description: user %s linked chat %d", user.ID, chatID)
	return user, nil
}

func (s *AuthService) UnlinkTelegram(ctx context.Context, chatID int64) error {
	return s.users.UnlinkTelegram(ctx, chatID)
}

func (s *AuthService) UserByChat(ctx context.Context, chatID int64) (*model.User, error) {
	return s.users.FindByTelegramChatID(ctx, chatID)
}

func (s *AuthService) LinkedUsers(ctx context.Context) ([]model.User, error) {
	return s.users.ListLinked(ctx)
}
