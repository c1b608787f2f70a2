package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/syy-ex/hair-makeover/internal/database"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserAlreadyExists  = errors.New("email is already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidCode        = errors.New("verification code is invalid or expired")
	ErrCodeTooFrequent    = errors.New("verification code requested too frequently")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("permission denied")
)

const (
	SessionTTL        = 7 * 24 * time.Hour
	emailCodeTTL      = 10 * time.Minute
	emailCodeCooldown = 60 * time.Second
	minPasswordLength = 8
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

// AuthService handles email-code registration, password login and
// store-backed sessions.
type AuthService struct {
	store       database.Store
	cache       *SessionCache
	mailer      Mailer
	codeSecret  string
	adminEmails map[string]struct{}
	validate    *validator.Validate
	now         func() time.Time
}

func NewAuthService(store database.Store, cache *SessionCache, mailer Mailer, codeSecret string, adminEmails []string) *AuthService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if n := models.NormalizeEmail(e); n != "" {
			admins[n] = struct{}{}
		}
	}
	if codeSecret == "" {
		codeSecret = "dev-auth-code-secret"
	}
	return &AuthService{
		store:       store,
		cache:       cache,
		mailer:      mailer,
		codeSecret:  codeSecret,
		adminEmails: admins,
		validate:    validator.New(),
		now:         time.Now,
	}
}

func (s *AuthService) normalizeEmail(email string) (string, error) {
	normalized := models.NormalizeEmail(email)
	if err := s.validate.Var(normalized, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

func (s *AuthService) hashCode(code string) string {
	sum := sha256.Sum256([]byte(s.codeSecret + ":" + code))
	return hex.EncodeToString(sum[:])
}

// RequestCode 生成并发送注册验证码
func (s *AuthService) RequestCode(ctx context.Context, email string) error {
	normalized, err := s.normalizeEmail(email)
	if err != nil {
		return err
	}
	code, err := randomCode()
	if err != nil {
		return err
	}

	err = s.store.Mutate(ctx, func(snap *database.Snapshot) error {
		if snap.FindUserByEmail(normalized) != nil {
			return ErrUserAlreadyExists
		}
		now := s.now()
		kept := snap.EmailCodes[:0]
		for _, c := range snap.EmailCodes {
			if c.Email == normalized && c.Purpose == models.EmailCodePurposeRegister {
				if c.CooldownUntil.After(now) {
					return ErrCodeTooFrequent
				}
				continue
			}
			kept = append(kept, c)
		}
		snap.EmailCodes = append(kept, &models.EmailCode{
			Email:         normalized,
			CodeHash:      s.hashCode(code),
			Purpose:       models.EmailCodePurposeRegister,
			ExpiresAt:     now.Add(emailCodeTTL).UTC(),
			CooldownUntil: now.Add(emailCodeCooldown).UTC(),
		})
		return nil
	})
	if err != nil {
		return err
	}
	return s.mailer.SendVerificationCode(ctx, normalized, code)
}

// consumeCode checks code and removes it on success. Expired codes are
// removed as well.
func (s *AuthService) consumeCode(snap *database.Snapshot, email, code string) bool {
	want := s.hashCode(code)
	now := s.now()
	for i, c := range snap.EmailCodes {
		if c.Email != email || c.Purpose != models.EmailCodePurposeRegister {
			continue
		}
		if !c.ExpiresAt.After(now) {
			snap.EmailCodes = append(snap.EmailCodes[:i], snap.EmailCodes[i+1:]...)
			return false
		}
		if subtle.ConstantTimeCompare([]byte(c.CodeHash), []byte(want)) != 1 {
			return false
		}
		snap.EmailCodes = append(snap.EmailCodes[:i], snap.EmailCodes[i+1:]...)
		return true
	}
	return false
}

// Register 校验验证码并创建用户，同时开启会话
func (s *AuthService) Register(ctx context.Context, email, code, password string) (*models.User, *models.Session, error) {
	normalized, err := s.normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if len(password) < minPasswordLength {
		return nil, nil, ErrWeakPassword
	}
	if !codePattern.MatchString(code) {
		return nil, nil, ErrInvalidCode
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	type result struct {
		user    models.User
		session models.Session
	}
	// Expired codes are dropped even when the code is rejected, so the
	// mutation commits and the rejection is reported afterwards.
	var codeRejected bool
	res, err := database.Mutate(ctx, s.store, func(snap *database.Snapshot) (*result, error) {
		if snap.FindUserByEmail(normalized) != nil {
			return nil, ErrUserAlreadyExists
		}
		if !s.consumeCode(snap, normalized, code) {
			codeRejected = true
			return nil, nil
		}
		user := &models.User{
			ID:           uuid.NewString(),
			Email:        normalized,
			PasswordHash: string(hash),
			CreatedAt:    s.now().UTC(),
		}
		snap.Users = append(snap.Users, user)
		session, err := s.newSession(snap, user.ID)
		if err != nil {
			return nil, err
		}
		return &result{user: *user, session: *session}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if codeRejected {
		return nil, nil, ErrInvalidCode
	}

	s.cacheSession(ctx, &res.session)
	logger.Log.Info("User registered", zap.String("user_id", res.user.ID))
	return &res.user, &res.session, nil
}

// Login 校验密码并开启会话
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *models.Session, error) {
	normalized, err := s.normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	snap, err := s.store.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	user := snap.FindUserByEmail(normalized)
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := database.Mutate(ctx, s.store, func(snap *database.Snapshot) (*models.Session, error) {
		if snap.FindUser(user.ID) == nil {
			return nil, ErrInvalidCredentials
		}
		return s.newSession(snap, user.ID)
	})
	if err != nil {
		return nil, nil, err
	}
	s.cacheSession(ctx, session)
	return user, session, nil
}

func (s *AuthService) newSession(snap *database.Snapshot, userID string) (*models.Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	session := &models.Session{
		Token:     hex.EncodeToString(buf),
		UserID:    userID,
		ExpiresAt: s.now().Add(SessionTTL).UTC(),
	}
	snap.Sessions = append(snap.Sessions, session)
	copied := *session
	return &copied, nil
}

func (s *AuthService) cacheSession(ctx context.Context, session *models.Session) {
	ttl := session.ExpiresAt.Sub(s.now())
	if err := s.cache.Put(ctx, session.Token, session.UserID, ttl); err != nil {
		logger.Log.Warn("Failed to cache session", zap.Error(err))
	}
}

// Logout 删除会话
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.store.Mutate(ctx, func(snap *database.Snapshot) error {
		snap.Sessions = removeSessions(snap.Sessions, func(sess *models.Session) bool {
			return sess.Token == token
		})
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.cache.Evict(ctx, token); err != nil {
		logger.Log.Warn("Failed to evict cached session", zap.Error(err))
	}
	return nil
}

// ResolveSession maps a session token to its user. Unknown or expired tokens
// resolve to nil; expired sessions are deleted on the way.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}

	if userID, err := s.cache.Get(ctx, token); err != nil {
		logger.Log.Warn("Session cache lookup failed", zap.Error(err))
	} else if userID != "" {
		snap, err := s.store.Read(ctx)
		if err != nil {
			return nil, err
		}
		if user := snap.FindUser(userID); user != nil {
			copied := *user
			return &copied, nil
		}
	}

	snap, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	session := snap.FindSession(token)
	if session == nil {
		return nil, nil
	}
	if session.Expired(s.now()) {
		if err := s.Logout(ctx, token); err != nil {
			logger.Log.Warn("Failed to delete expired session", zap.Error(err))
		}
		return nil, nil
	}
	user := snap.FindUser(session.UserID)
	if user == nil {
		return nil, nil
	}
	s.cacheSession(ctx, session)
	copied := *user
	return &copied, nil
}

// ReapExpiredSessions deletes every expired session and returns how many
// were removed.
func (s *AuthService) ReapExpiredSessions(ctx context.Context) (int, error) {
	var expired []string
	err := s.store.Mutate(ctx, func(snap *database.Snapshot) error {
		now := s.now()
		snap.Sessions = removeSessions(snap.Sessions, func(sess *models.Session) bool {
			if sess.Expired(now) {
				expired = append(expired, sess.Token)
				return true
			}
			return false
		})
		codes := snap.EmailCodes[:0]
		for _, c := range snap.EmailCodes {
			if c.ExpiresAt.After(now) {
				codes = append(codes, c)
			}
		}
		snap.EmailCodes = codes
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := s.cache.Evict(ctx, expired...); err != nil {
		logger.Log.Warn("Failed to evict expired sessions", zap.Error(err))
	}
	return len(expired), nil
}

// AdminConfigured reports whether any admin email is configured.
func (s *AuthService) AdminConfigured() bool {
	return len(s.adminEmails) > 0
}

// IsAdmin reports whether user's email is on the admin allow-list.
func (s *AuthService) IsAdmin(user *models.User) bool {
	if user == nil || user.Email == "" {
		return false
	}
	_, ok := s.adminEmails[models.NormalizeEmail(user.Email)]
	return ok
}

func removeSessions(sessions []*models.Session, drop func(*models.Session) bool) []*models.Session {
	kept := sessions[:0]
	for _, sess := range sessions {
		if !drop(sess) {
			kept = append(kept, sess)
		}
	}
	return kept
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
