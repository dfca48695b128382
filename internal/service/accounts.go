package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vbonduro/bakutrack/internal/auth"
	"github.com/vbonduro/bakutrack/internal/domain"
)

const minPasswordLength = 8

var errBadCredentials = fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)

// Session is the result of a successful register or login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// Profile is a user with the tier in force right now.
type Profile struct {
	*domain.User
	EffectiveTier domain.Tier `json:"effectiveTier"`
	HistoryLimit  int         `json:"historyLimit"`
}

type AccountService struct {
	users      UserRepository
	tokens     *auth.Issuer
	bcryptCost int
	now        func() time.Time
	logger     *slog.Logger
}

func NewAccountService(users UserRepository, tokens *auth.Issuer, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *AccountService) Register(ctx context.Context, email, password, displayName string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, domain.Invalid("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &domain.User{
		ID:           domain.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(displayName),
		Tier:         domain.TierFree,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("email %q already registered: %w", email, domain.ErrConflict)
		}
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID)
	return s.session(u)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, errBadCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("login rejected", "user_id", u.ID)
		return nil, errBadCredentials
	}
	return s.session(u)
}

// Authenticate resolves a bearer token to the email it was issued for.
func (s *AccountService) Authenticate(token string) (string, error) {
	return s.tokens.Verify(token)
}

func (s *AccountService) Profile(ctx context.Context, email string) (*Profile, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.NotFound("user", email)
	}
	tier := u.EffectiveTier(s.now())
	return &Profile{User: u, EffectiveTier: tier, HistoryLimit: tier.HistoryLimit()}, nil
}

// EffectiveTier is the caller's tier for gating reads. Anonymous callers and
// unknown users are free.
func (s *AccountService) EffectiveTier(ctx context.Context, email string) (domain.Tier, error) {
	if email == "" {
		return domain.TierFree, nil
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if u == nil {
		return domain.TierFree, nil
	}
	return u.EffectiveTier(s.now()), nil
}

// GrantTier sets a user's subscription. A nil until never lapses.
func (s *AccountService) GrantTier(ctx context.Context, email string, tier domain.Tier, until *time.Time) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if !tier.Valid() {
		return domain.Invalid("unknown tier %q", tier)
	}
	if until != nil {
		t := until.UTC()
		until = &t
	}
	if err := s.users.SetTier(ctx, email, tier, until); err != nil {
		return err
	}
	s.logger.Info("tier granted", "email", email, "tier", tier, "until", until)
	return nil
}

func (s *AccountService) session(u *domain.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(u.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.Invalid("invalid email address")
	}
	return email, nil
}
