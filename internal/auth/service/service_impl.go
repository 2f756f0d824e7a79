package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskway/internal/auth/domain"
	"github.com/smallbiznis/taskway/internal/clock"
	"github.com/smallbiznis/taskway/pkg/db"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 8
	maxNameLength     = 120
	sessionTTL        = 30 * 24 * time.Hour
)

type service struct {
	db    *gorm.DB
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
	log   *zap.Logger
}

func NewService(db *gorm.DB, repo domain.Repository, genID *snowflake.Node, clk clock.Clock, log *zap.Logger) domain.Service {
	return &service{
		db:    db,
		repo:  repo,
		genID: genID,
		clock: clk,
		log:   log,
	}
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" || len(name) > maxNameLength {
		return nil, domain.ErrInvalidDisplayName
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.ErrInvalidPassword
	}

	existing, err := s.repo.GetUserByEmailFold(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	session := s.newSession(user.ID, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateUser(ctx, user); err != nil {
			return err
		}
		return repo.CreateSession(ctx, session)
	})
	if err != nil {
		// Two concurrent signups can race past the lookup above; the
		// unique index settles the winner.
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID.String()))
	return authResponse(user, session), nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	email := strings.TrimSpace(req.Email)
	user, err := s.repo.GetUserByEmailFold(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	session := s.newSession(user.ID, s.clock.Now())
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return authResponse(*user, session), nil
}

func (s *service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return domain.ErrUnauthorized
	}
	return s.repo.DeleteSession(ctx, token)
}

func (s *service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrUnauthorized
	}
	session, err := s.repo.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || s.clock.Now().After(session.ExpiresAt) {
		return nil, domain.ErrUnauthorized
	}
	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}

func (s *service) newSession(userID snowflake.ID, now time.Time) domain.Session {
	return domain.Session{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Token:     newToken(),
		ExpiresAt: now.Add(sessionTTL),
		CreatedAt: now,
	}
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func authResponse(user domain.User, session domain.Session) *domain.AuthResponse {
	return &domain.AuthResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User: domain.UserResponse{
			ID:          user.ID.String(),
			Email:       user.Email,
			DisplayName: user.DisplayName,
		},
	}
}
