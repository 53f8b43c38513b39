package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/logger"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthUseCase interface {
	Register(ctx context.Context, input RegisterInput) (*Result, error)
	Login(ctx context.Context, email, password string) (*Result, error)
	Parse(token string) (domain.Requester, error)
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type Result struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *domain.User `json:"user"`
}

// Claims carries the requester identity. The subject is the user id.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

const minPasswordLength = 6

var errBadCredentials = domain.UnauthorizedError{Msg: "invalid email or password"}

type Service struct {
	users      repository.UserRepository
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
	log        *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		s.log = logger.OrNop(log)
	}
}

func NewService(users repository.UserRepository, secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		users:      users,
		secret:     []byte(secret),
		ttl:        ttl,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ValidationError{Field: "email", Msg: "is not a valid email"}
	}
	if len(input.Password) < minPasswordLength {
		return nil, domain.ValidationError{Field: "password", Msg: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}

	user, err := s.createUser(ctx, email, input.Password, strings.TrimSpace(input.Name), strings.TrimSpace(input.Phone), domain.RoleUser)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errBadCredentials
	}
	return s.issue(user)
}

// Parse validates an HS256 token and returns the identity it carries.
func (s *Service) Parse(token string) (domain.Requester, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Requester{}, domain.UnauthorizedError{Msg: "token expired"}
		}
		return domain.Requester{}, domain.UnauthorizedError{Msg: "invalid token"}
	}
	role, ok := domain.ParseRole(string(claims.Role))
	if !ok || claims.Subject == "" {
		return domain.Requester{}, domain.UnauthorizedError{Msg: "invalid token"}
	}
	return domain.Requester{UserID: claims.Subject, Email: claims.Email, Role: role}, nil
}

// EnsureAdmin creates the admin account on first start. An existing account
// with that email is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !domain.IsNotFound(err) {
		return err
	}
	user, err := s.createUser(ctx, strings.ToLower(strings.TrimSpace(email)), password, "Administrator", "", domain.RoleAdmin)
	if err != nil {
		if domain.IsConflict(err) {
			return nil
		}
		return err
	}
	s.log.Info("admin account created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return nil
}

func (s *Service) createUser(ctx context.Context, email, password, name, phone string, role domain.Role) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Phone:        phone,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) issue(user *domain.User) (*Result, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Result{AccessToken: token, ExpiresAt: expires, User: user}, nil
}

var _ AuthUseCase = (*Service)(nil)
