package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/accp-conference/api/internal/account"
	"github.com/accp-conference/api/internal/logging"
	"github.com/accp-conference/api/internal/validate"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxPage keeps (page-1)*limit inside an int32 offset
	MaxPage = math.MaxInt32 / MaxLimit
)

var ErrDocumentRequired = errors.New("a verification document is required before approval")

// Store is the account persistence used by the review workflow
type Store interface {
	ListVerifications(ctx context.Context, f account.VerificationFilter) ([]account.Account, int, error)
	CountVerificationsByStatus(ctx context.Context) (map[account.Status]int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	Decide(ctx context.Context, id uuid.UUID, d account.Decision) (*account.Account, error)
}

// DocumentSigner turns a stored document URL into one a reviewer can open
type DocumentSigner interface {
	PresignedURL(ctx context.Context, rawURL string, ttl time.Duration) (string, error)
}

// Notifier tells the registrant about the decision
type Notifier interface {
	SendVerificationApproved(ctx context.Context, to, firstName string) error
	SendVerificationRejected(ctx context.Context, to, firstName, reason, notes string) error
}

// statusFilters maps the query values backoffice uses to stored statuses
var statusFilters = map[string]account.Status{
	"pending":  account.StatusPendingApproval,
	"approved": account.StatusActive,
	"rejected": account.StatusRejected,
	"all":      "",
}

// ListQuery selects a page of the verification queue
type ListQuery struct {
	Status string
	Search string
	Page   int
	Limit  int
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type Counts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Page is one page of the queue plus dashboard counters
type Page struct {
	Items      []account.Account `json:"items"`
	Pagination Pagination        `json:"pagination"`
	Counts     Counts            `json:"counts"`
}

// Detail is a single request with a document link the reviewer can open
type Detail struct {
	*account.Account
	DocumentURL string `json:"documentUrl,omitempty"`
}

// RejectRequest is the reviewer's rejection input
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,oneof=expired unclear mismatch invalid fake other"`
	Notes  string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type Service struct {
	store      Store
	signer     DocumentSigner
	notifier   Notifier
	logger     *logging.Logger
	presignTTL time.Duration
	now        func() time.Time
	dispatch   func(func())
}

func NewService(store Store, signer DocumentSigner, notifier Notifier, logger *logging.Logger, presignTTL time.Duration) *Service {
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &Service{
		store:      store,
		signer:     signer,
		notifier:   notifier,
		logger:     logger,
		presignTTL: presignTTL,
		now:        time.Now,
		dispatch:   func(f func()) { go f() },
	}
}

// List returns one page of requests that carry a document
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	statusKey := strings.ToLower(strings.TrimSpace(q.Status))
	if statusKey == "" {
		statusKey = "pending"
	}
	status, ok := statusFilters[statusKey]
	if !ok {
		return nil, validate.Field("status", "status must be one of: pending, approved, rejected, all")
	}

	page := q.Page
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	limit := q.Limit
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	items, total, err := s.store.ListVerifications(ctx, account.VerificationFilter{
		Status: status,
		Search: q.Search,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list verifications: %w", err)
	}

	counts, err := s.store.CountVerificationsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count verifications: %w", err)
	}

	if items == nil {
		items = []account.Account{}
	}

	return &Page{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
		Counts: Counts{
			Pending:  counts[account.StatusPendingApproval],
			Approved: counts[account.StatusActive],
			Rejected: counts[account.StatusRejected],
		},
	}, nil
}

// Get returns one request. A presigning failure is logged and the stored
// URL is returned instead.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	acc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &Detail{Account: acc}
	if acc.HasDocument() {
		signed, err := s.signer.PresignedURL(ctx, acc.VerificationDocURL, s.presignTTL)
		if err != nil {
			logging.GetLoggerFromContext(ctx).Warn("failed to presign document", "account_id", id, "error", err)
			signed = acc.VerificationDocURL
		}
		detail.DocumentURL = signed
	}
	return detail, nil
}

// Approve activates a pending account
func (s *Service) Approve(ctx context.Context, id, reviewerID uuid.UUID) (*account.Account, error) {
	acc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Status != account.StatusPendingApproval {
		return nil, account.ErrAlreadyDecided
	}
	if acc.Category.RequiresDocument() && !acc.HasDocument() {
		return nil, ErrDocumentRequired
	}

	decided, err := s.store.Decide(ctx, id, account.Decision{
		Status:     account.StatusActive,
		ReviewerID: reviewerID,
		DecidedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, decided, func(ctx context.Context) error {
		return s.notifier.SendVerificationApproved(ctx, decided.Email, decided.FirstName)
	})
	return decided, nil
}

// Reject closes a pending account with a reason from the taxonomy
func (s *Service) Reject(ctx context.Context, id, reviewerID uuid.UUID, req RejectRequest) (*account.Account, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	reason := account.RejectionReason(req.Reason)
	if reason == account.ReasonOther && req.Notes == "" {
		return nil, validate.Field("notes", "notes are required when the reason is other")
	}

	decided, err := s.store.Decide(ctx, id, account.Decision{
		Status:     account.StatusRejected,
		Reason:     reason,
		Notes:      req.Notes,
		ReviewerID: reviewerID,
		DecidedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, decided, func(ctx context.Context) error {
		return s.notifier.SendVerificationRejected(ctx, decided.Email, decided.FirstName, reason.Label(), req.Notes)
	})
	return decided, nil
}

func (s *Service) notify(ctx context.Context, acc *account.Account, send func(context.Context) error) {
	notifyCtx := logging.WithContext(context.Background(), logging.GetLoggerFromContext(ctx))
	s.dispatch(func() {
		if err := send(notifyCtx); err != nil {
			s.logger.Warn("failed to send decision email", "account_id", acc.ID, "status", acc.Status, "error", err)
		}
	})
}
