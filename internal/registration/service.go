package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/accp-conference/api/internal/account"
	"github.com/accp-conference/api/internal/logging"
	"github.com/accp-conference/api/internal/validate"
)

// Store is the persistence the intake workflow needs
type Store interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByNationalID(ctx context.Context, id string) (bool, error)
	ExistsByPassportID(ctx context.Context, id string) (bool, error)
	ExistsByLicenseID(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, in account.NewAccount) (*account.Account, error)
}

// Notifier sends the pending-approval confirmation
type Notifier interface {
	SendPendingApproval(ctx context.Context, to, firstName, lastName string) error
}

const maxPasswordBytes = 72

// Request is the registration payload
type Request struct {
	FirstName          string `json:"firstName" validate:"required,max=100"`
	LastName           string `json:"lastName" validate:"required,max=100"`
	Email              string `json:"email" validate:"required,email,max=254"`
	Password           string `json:"password" validate:"required,min=8,max=72"`
	AccountType        string `json:"accountType" validate:"required,oneof=thaiStudent internationalStudent thaiProfessional internationalProfessional"`
	IDCard             string `json:"idCard,omitempty" validate:"omitempty,numeric,len=13"`
	PassportID         string `json:"passportId,omitempty" validate:"omitempty,max=20"`
	PharmacyLicenseID  string `json:"pharmacyLicenseId,omitempty" validate:"omitempty,max=50"`
	Organization       string `json:"organization,omitempty" validate:"omitempty,max=200"`
	Phone              string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Country            string `json:"country,omitempty" validate:"omitempty,max=100"`
	VerificationDocURL string `json:"verificationDocUrl,omitempty" validate:"omitempty,url,max=2048"`
}

// Result is the account summary returned to the registrant
type Result struct {
	ID        uuid.UUID      `json:"id"`
	Email     string         `json:"email"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Role      account.Role   `json:"role"`
	Status    account.Status `json:"status"`
}

// Service runs registration intake
type Service struct {
	store    Store
	notifier Notifier
	logger   *logging.Logger
	hashCost int
	// dispatch runs the notification; tests replace it to run inline
	dispatch func(func())
}

func NewService(store Store, notifier Notifier, logger *logging.Logger, hashCost int) *Service {
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		hashCost: hashCost,
		dispatch: func(f func()) { go f() },
	}
}

// Register validates the payload, rejects identifiers already on file,
// persists the account as pending approval and sends the confirmation email
// in the background
func (s *Service) Register(ctx context.Context, req Request) (*Result, error) {
	req.normalize()

	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	// validator counts runes; bcrypt refuses more than 72 bytes
	if len(req.Password) > maxPasswordBytes {
		return nil, validate.Field("password", "password must be at most 72 bytes")
	}

	category := account.Category(req.AccountType)
	if err := checkCategoryFields(category, req); err != nil {
		return nil, err
	}

	if err := s.checkDuplicates(ctx, req); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := s.store.Create(ctx, account.NewAccount{
		Email:              req.Email,
		PasswordHash:       string(passwordHash),
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Role:               category.Role(),
		Category:           category,
		Country:            category.ResolveCountry(req.Country),
		Organization:       req.Organization,
		Phone:              req.Phone,
		NationalID:         req.IDCard,
		PassportID:         req.PassportID,
		LicenseID:          req.PharmacyLicenseID,
		Status:             account.StatusPendingApproval,
		VerificationDocURL: req.VerificationDocURL,
	})
	if err != nil {
		if errors.Is(err, account.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// The request context ends with the response; keep only its logger
	notifyCtx := logging.WithContext(context.Background(), logging.GetLoggerFromContext(ctx))
	s.dispatch(func() {
		if err := s.notifier.SendPendingApproval(notifyCtx, created.Email, created.FirstName, created.LastName); err != nil {
			s.logger.Warn("failed to send pending approval email", "account_id", created.ID, "error", err)
		}
	})

	return &Result{
		ID:        created.ID,
		Email:     created.Email,
		FirstName: created.FirstName,
		LastName:  created.LastName,
		Role:      created.Role,
		Status:    created.Status,
	}, nil
}

// checkDuplicates runs the point queries in a fixed order and stops at the
// first collision. The insert's unique constraints still guard the race
// between these checks and Create.
func (s *Service) checkDuplicates(ctx context.Context, req Request) error {
	checks := []struct {
		field string
		value string
		exist func(context.Context, string) (bool, error)
	}{
		{account.FieldEmail, req.Email, s.store.ExistsByEmail},
		{account.FieldNationalID, req.IDCard, s.store.ExistsByNationalID},
		{account.FieldPassportID, req.PassportID, s.store.ExistsByPassportID},
		{account.FieldLicenseID, req.PharmacyLicenseID, s.store.ExistsByLicenseID},
	}

	for _, c := range checks {
		if c.value == "" {
			continue
		}
		found, err := c.exist(ctx, c.value)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", c.field, err)
		}
		if found {
			return &account.DuplicateError{Field: c.field}
		}
	}
	return nil
}

func checkCategoryFields(c account.Category, req Request) error {
	if c.Domestic() {
		if req.IDCard == "" {
			return validate.Field(account.FieldNationalID, "idCard is required for Thai registrations")
		}
		return nil
	}
	if req.PassportID == "" {
		return validate.Field(account.FieldPassportID, "passportId is required for international registrations")
	}
	if req.Country == "" {
		return validate.Field("country", "country is required for international registrations")
	}
	return nil
}

func (r *Request) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.IDCard = strings.TrimSpace(r.IDCard)
	r.PassportID = strings.ToUpper(strings.TrimSpace(r.PassportID))
	r.PharmacyLicenseID = strings.TrimSpace(r.PharmacyLicenseID)
	r.Organization = strings.TrimSpace(r.Organization)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Country = strings.TrimSpace(r.Country)
	r.VerificationDocURL = strings.TrimSpace(r.VerificationDocURL)
}
