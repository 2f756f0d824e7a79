package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskway/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, workspaceID string, req CreateRequest) (*Response, error)
	List(ctx context.Context, userID snowflake.ID, workspaceID string, page pagination.Pagination) (*ListResponse, error)
	Cancel(ctx context.Context, userID snowflake.ID, workspaceID, invitationID string) error

	// Accept is idempotent for users who already joined: resubmitting a
	// consumed token reports success without a second membership row.
	Accept(ctx context.Context, userID snowflake.ID, token string) (*AcceptResponse, error)
}

type CreateRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Response struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	InvitedBy   string     `json:"invited_by"`
	Status      string     `json:"status"`
	ExpiresAt   time.Time  `json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Message     string     `json:"message,omitempty"`
}

type ListResponse struct {
	Invitations []Response          `json:"invitations"`
	PageInfo    pagination.PageInfo `json:"page_info"`
}

type AcceptResponse struct {
	WorkspaceID   string `json:"workspace_id"`
	Role          string `json:"role"`
	AlreadyMember bool   `json:"already_member"`
}

var (
	ErrInvalidEmail   = errors.New("invalid_invitation_email")
	ErrInvalidID      = errors.New("invalid_invitation")
	ErrAlreadyMember  = errors.New("already_a_member")
	ErrAlreadyPending = errors.New("invitation_already_pending")
	ErrInvalidToken   = errors.New("invalid_or_expired_invitation")
	ErrWrongRecipient = errors.New("invitation_issued_to_another_email")
	ErrNotFound       = errors.New("invitation_not_found")
)
