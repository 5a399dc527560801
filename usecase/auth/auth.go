package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 6

// Tokens is the result of a successful sign-in or refresh.
type Tokens struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	SessionID   string    `json:"session_id"`
}

// Result pairs the signed-in user with their tokens.
type Result struct {
	User   *domain.User `json:"user"`
	Tokens Tokens       `json:"tokens"`
}

type UseCase struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	tokens     *TokenManager
	hasher     *PasswordHasher
	sessionTTL time.Duration
	logger     *zap.Logger
}

func New(users repository.UserRepository, sessions repository.SessionRepository, tokens *TokenManager, hasher *PasswordHasher, sessionTTL time.Duration, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hasher == nil {
		hasher = NewPasswordHasher(DefaultBcryptCost)
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &UseCase{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		hasher:     hasher,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// Signup registers an email and password account and signs it in.
func (uc *UseCase) Signup(ctx context.Context, email, password string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if vErr := validateCredentials(email, password); vErr != nil {
		return nil, vErr
	}

	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "hash password", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         "user",
		Status:       "active",
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}
	uc.logger.Info("account created", zap.String("user_id", user.ID))
	return uc.signIn(ctx, user)
}

// Login checks the password and opens a new session.
func (uc *UseCase) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := uc.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !uc.hasher.Verify(password, user.PasswordHash) {
		uc.logger.Warn("login rejected", zap.String("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, domain.ErrUnauthorized
	}
	return uc.signIn(ctx, user)
}

func (uc *UseCase) signIn(ctx context.Context, user *domain.User) (*Result, error) {
	session, err := uc.CreateSession(ctx, user.ID, uc.sessionTTL)
	if err != nil {
		return nil, err
	}
	tokens, err := uc.issue(session)
	if err != nil {
		return nil, err
	}
	return &Result{User: user, Tokens: *tokens}, nil
}

// Refresh extends the session and issues a fresh access token.
func (uc *UseCase) Refresh(ctx context.Context, sessionID string) (*Tokens, error) {
	session, err := uc.RefreshSession(ctx, sessionID, uc.sessionTTL)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return uc.issue(session)
}

// Logout revokes the session; tokens bound to it stop working.
func (uc *UseCase) Logout(ctx context.Context, sessionID string) error {
	return uc.RevokeSession(ctx, sessionID)
}

// CurrentUser resolves the account behind an authenticated request.
func (uc *UseCase) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.users.GetByID(ctx, userID)
}

// Authenticate verifies an access token and that its session is still live.
func (uc *UseCase) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := uc.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	session, err := uc.GetSession(ctx, claims.SessionID)
	if err != nil || session.UserID != claims.UserID {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

func (uc *UseCase) issue(session *domain.Session) (*Tokens, error) {
	token, expires, err := uc.tokens.Issue(session)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "sign token", err)
	}
	return &Tokens{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
		SessionID:   session.ID,
	}, nil
}

func (uc *UseCase) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	if _, err := uc.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	now := time.Now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (uc *UseCase) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionNotFound
	}
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (uc *UseCase) RefreshSession(ctx context.Context, sessionID string, ttl time.Duration) (*domain.Session, error) {
	session, err := uc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := uc.sessions.Extend(ctx, sessionID, ttl); err != nil {
		return nil, err
	}
	session.Extend(time.Now(), ttl)
	return session, nil
}

func (uc *UseCase) RevokeSession(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}

func validateCredentials(email, password string) *domain.ValidationError {
	var fields []domain.FieldError
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		fields = append(fields, domain.FieldError{Field: domain.FieldEmail, Message: "Invalid email address."})
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		fields = append(fields, domain.FieldError{Field: domain.FieldPassword, Message: "Password must be at least 6 characters."})
	}
	if len(fields) == 0 {
		return nil
	}
	return domain.NewValidationError(fields...)
}
