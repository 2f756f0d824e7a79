package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/taskway/internal/auth/domain"
	"github.com/smallbiznis/taskway/internal/clock"
	"github.com/smallbiznis/taskway/internal/invitation/domain"
	"github.com/smallbiznis/taskway/internal/notification"
	"github.com/smallbiznis/taskway/internal/onboarding"
	workspacedomain "github.com/smallbiznis/taskway/internal/workspace/domain"
	"github.com/smallbiznis/taskway/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Invitations stay claimable for a week.
const expiryWindow = 7 * 24 * time.Hour

type service struct {
	db         *gorm.DB
	repo       domain.Repository
	wsRepo     workspacedomain.Repository
	wsSvc      workspacedomain.Service
	users      authdomain.Repository
	onboarding *onboarding.Service
	queue      *notification.Queue
	genID      *snowflake.Node
	clock      clock.Clock
	log        *zap.Logger
}

func NewService(db *gorm.DB, repo domain.Repository, wsRepo workspacedomain.Repository,
	wsSvc workspacedomain.Service, users authdomain.Repository, ob *onboarding.Service,
	queue *notification.Queue, genID *snowflake.Node, clk clock.Clock, log *zap.Logger) domain.Service {
	return &service{
		db:         db,
		repo:       repo,
		wsRepo:     wsRepo,
		wsSvc:      wsSvc,
		users:      users,
		onboarding: ob,
		queue:      queue,
		genID:      genID,
		clock:      clk,
		log:        log,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, workspaceID string, req domain.CreateRequest) (*domain.Response, error) {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}
	inviter, err := s.requireAdmin(ctx, wsID, userID)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	role := strings.TrimSpace(req.Role)
	if !workspacedomain.ValidRole(role) {
		return nil, workspacedomain.ErrInvalidRole
	}

	// A registered user with this email who already belongs to the
	// workspace cannot be invited again.
	if user, err := s.users.GetUserByEmailFold(ctx, email); err != nil {
		return nil, err
	} else if user != nil {
		member, err := s.wsRepo.GetMembership(ctx, wsID, user.ID)
		if err != nil {
			return nil, err
		}
		if member != nil {
			return nil, domain.ErrAlreadyMember
		}
	}

	now := s.clock.Now()
	if pending, err := s.repo.GetPending(ctx, wsID, email, now); err != nil {
		return nil, err
	} else if pending != nil {
		return nil, domain.ErrAlreadyPending
	}

	invitation := domain.Invitation{
		ID:          s.genID.Generate(),
		WorkspaceID: wsID,
		Email:       email,
		Role:        role,
		Token:       newToken(),
		InvitedBy:   userID,
		ExpiresAt:   now.Add(expiryWindow),
		CreatedAt:   now,
	}
	if err := s.repo.Insert(ctx, invitation); err != nil {
		return nil, err
	}

	// Delivery is best-effort and happens off this request path. The
	// invitation is reported created either way.
	s.enqueueInviteEmail(ctx, invitation, inviter)
	s.markInvitedTeammate(ctx, wsID, userID)

	resp := s.toResponse(invitation)
	resp.Message = "invitation created, delivery pending"
	return &resp, nil
}

func (s *service) List(ctx context.Context, userID snowflake.ID, workspaceID string, page pagination.Pagination) (*domain.ListResponse, error) {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireAdmin(ctx, wsID, userID); err != nil {
		return nil, err
	}

	size := page.PageSize
	if size <= 0 {
		size = 50
	}
	var cursor *pagination.Cursor
	if page.PageToken != "" {
		cursor, err = pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
	}

	// Fetch one extra row to learn whether another page exists.
	invitations, err := s.repo.ListByWorkspace(ctx, wsID, cursor, size+1)
	if err != nil {
		return nil, err
	}

	resp := domain.ListResponse{Invitations: make([]domain.Response, 0, len(invitations))}
	if len(invitations) > size {
		invitations = invitations[:size]
		last := invitations[len(invitations)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		resp.PageInfo = pagination.PageInfo{NextPageToken: token, HasMore: true}
	}
	for _, invitation := range invitations {
		resp.Invitations = append(resp.Invitations, s.toResponse(invitation))
	}
	return &resp, nil
}

func (s *service) Cancel(ctx context.Context, userID snowflake.ID, workspaceID, invitationID string) error {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}
	id, err := snowflake.ParseString(strings.TrimSpace(invitationID))
	if err != nil {
		return domain.ErrInvalidID
	}
	if _, err := s.requireAdmin(ctx, wsID, userID); err != nil {
		return err
	}

	invitation, err := s.repo.Get(ctx, wsID, id)
	if err != nil {
		return err
	}
	if invitation == nil {
		return domain.ErrNotFound
	}
	return s.repo.Delete(ctx, wsID, id)
}

func (s *service) Accept(ctx context.Context, userID snowflake.ID, token string) (*domain.AcceptResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, workspacedomain.ErrInvalidUser
	}

	now := s.clock.Now()
	var resp domain.AcceptResponse

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wsRepo := s.wsRepo.WithTx(tx)

		invitation, err := repo.GetByToken(ctx, token)
		if err != nil {
			return err
		}
		if invitation == nil || !now.Before(invitation.ExpiresAt) {
			return domain.ErrInvalidToken
		}
		if !strings.EqualFold(invitation.Email, user.Email) {
			return domain.ErrWrongRecipient
		}

		resp.WorkspaceID = invitation.WorkspaceID.String()
		resp.Role = invitation.Role

		// The same token may be submitted twice; as long as the holder
		// still has the membership it granted, a re-click is a
		// successful no-op rather than an error. The membership check
		// therefore runs before the consumed-token rejection.
		member, err := wsRepo.GetMembership(ctx, invitation.WorkspaceID, userID)
		if err != nil {
			return err
		}
		if member != nil {
			resp.AlreadyMember = true
			resp.Role = member.Role
			return nil
		}
		if invitation.AcceptedAt != nil {
			// Consumed, and the membership it granted no longer exists.
			return domain.ErrInvalidToken
		}

		err = wsRepo.AddMember(ctx, workspacedomain.Membership{
			ID:          s.genID.Generate(),
			WorkspaceID: invitation.WorkspaceID,
			UserID:      userID,
			Role:        invitation.Role,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		return repo.MarkAccepted(ctx, invitation.ID, now)
	})
	if err != nil {
		return nil, err
	}

	if !resp.AlreadyMember {
		wsID, _ := snowflake.ParseString(resp.WorkspaceID)
		if err := s.onboarding.Initialize(ctx, wsID, userID); err != nil {
			s.log.Warn("onboarding initialization failed",
				zap.String("workspace_id", resp.WorkspaceID),
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}
	return &resp, nil
}

func (s *service) enqueueInviteEmail(ctx context.Context, invitation domain.Invitation, inviter *authdomain.User) {
	workspaceName := ""
	if ws, err := s.wsRepo.GetWorkspace(ctx, invitation.WorkspaceID); err == nil && ws != nil {
		workspaceName = ws.Name
	}
	inviterName := ""
	if inviter != nil {
		inviterName = inviter.DisplayName
	}
	s.queue.Enqueue(notification.Message{
		Kind: notification.KindInvitationCreated,
		To:   invitation.Email,
		Data: map[string]string{
			"workspace_name": workspaceName,
			"inviter_name":   inviterName,
			"role":           invitation.Role,
			"token":          invitation.Token,
		},
	})
}

// markInvitedTeammate flips the inviter's checklist entry. Best-effort:
// failures are logged, the invitation stands either way.
func (s *service) markInvitedTeammate(ctx context.Context, wsID, userID snowflake.ID) {
	if err := s.onboarding.Initialize(ctx, wsID, userID); err != nil {
		s.log.Warn("onboarding step update failed",
			zap.String("workspace_id", wsID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return
	}
	if err := s.onboarding.MarkStep(ctx, wsID, userID, onboarding.StepInvitedTeammate); err != nil {
		s.log.Warn("onboarding step update failed",
			zap.String("workspace_id", wsID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}

func (s *service) requireAdmin(ctx context.Context, wsID, userID snowflake.ID) (*authdomain.User, error) {
	member, err := s.wsSvc.ResolveMembership(ctx, wsID, userID)
	if err != nil {
		return nil, err
	}
	if !member.IsAdmin() {
		return nil, workspacedomain.NewInsufficientRoleError(member.Role, workspacedomain.RoleAdmin)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) toResponse(invitation domain.Invitation) domain.Response {
	status := "expired"
	switch {
	case invitation.AcceptedAt != nil:
		status = "accepted"
	case invitation.Pending(s.clock.Now()):
		status = "pending"
	}
	return domain.Response{
		ID:          invitation.ID.String(),
		WorkspaceID: invitation.WorkspaceID.String(),
		Email:       invitation.Email,
		Role:        invitation.Role,
		InvitedBy:   invitation.InvitedBy.String(),
		Status:      status,
		ExpiresAt:   invitation.ExpiresAt,
		AcceptedAt:  invitation.AcceptedAt,
		CreatedAt:   invitation.CreatedAt,
	}
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func parseWorkspaceID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, workspacedomain.ErrInvalidWorkspace
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil {
		return 0, workspacedomain.ErrInvalidWorkspace
	}
	return id, nil
}
