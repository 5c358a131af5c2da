package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/accp-conference/api/internal/database"
)

// Postgres SQLSTATE for unique_violation
const uniqueViolation = pq.ErrorCode("23505")

var constraintFields = map[string]string{
	database.AccountsEmailKey:      FieldEmail,
	database.AccountsNationalIDKey: FieldNationalID,
	database.AccountsPassportIDKey: FieldPassportID,
	database.AccountsLicenseIDKey:  FieldLicenseID,
}

// Repository handles account persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new account. A unique violation on any identifier is
// returned as a *DuplicateError naming that identifier.
func (r *Repository) Create(ctx context.Context, in NewAccount) (*Account, error) {
	row := &database.Account{
		ID:                 uuid.New(),
		Email:              in.Email,
		NationalID:         nullable(in.NationalID),
		PassportID:         nullable(in.PassportID),
		LicenseID:          nullable(in.LicenseID),
		PasswordHash:       in.PasswordHash,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Role:               string(in.Role),
		AccountType:        nullable(string(in.Category)),
		Country:            nullable(in.Country),
		Organization:       nullable(in.Organization),
		Phone:              nullable(in.Phone),
		Status:             string(in.Status),
		VerificationDocURL: nullable(in.VerificationDocURL),
	}

	_, err := r.db.NewInsert().
		Model(row).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if field, ok := duplicateField(err); ok {
			return nil, &DuplicateError{Field: field}
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return toDomain(row), nil
}

// CreateStaff inserts a backoffice account. Staff accounts skip review and
// are active immediately.
func (r *Repository) CreateStaff(ctx context.Context, email, passwordHash, firstName, lastName string, role Role) (*Account, error) {
	if !role.IsStaff() {
		return nil, fmt.Errorf("role %q is not a backoffice role", role)
	}
	return r.Create(ctx, NewAccount{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         role,
		Status:       StatusActive,
	})
}

// GetByID retrieves an account by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := new(database.Account)
	err := r.db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by id: %w", err)
	}

	return toDomain(row), nil
}

// GetByEmail retrieves an account by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := new(database.Account)
	err := r.db.NewSelect().
		Model(row).
		Where("email = ?", email).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return toDomain(row), nil
}

func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *Repository) ExistsByNationalID(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "national_id", id)
}

func (r *Repository) ExistsByPassportID(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "passport_id", id)
}

func (r *Repository) ExistsByLicenseID(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "license_id", id)
}

func (r *Repository) exists(ctx context.Context, column, value string) (bool, error) {
	ok, err := r.db.NewSelect().
		Model((*database.Account)(nil)).
		Where("? = ?", bun.Ident(column), value).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", column, err)
	}
	return ok, nil
}

// ListVerifications returns accounts carrying a verification document that
// match the filter, newest first, together with the total match count
func (r *Repository) ListVerifications(ctx context.Context, f VerificationFilter) ([]Account, int, error) {
	var rows []database.Account

	q := r.db.NewSelect().
		Model(&rows).
		Where("verification_doc_url IS NOT NULL")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("first_name ILIKE ?", pattern).
				WhereOr("last_name ILIKE ?", pattern).
				WhereOr("email ILIKE ?", pattern)
		})
	}

	total, err := q.
		Order("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list verifications: %w", err)
	}

	accounts := make([]Account, len(rows))
	for i := range rows {
		accounts[i] = *toDomain(&rows[i])
	}
	return accounts, total, nil
}

// CountVerificationsByStatus returns the verification queue size per status
func (r *Repository) CountVerificationsByStatus(ctx context.Context) (map[Status]int, error) {
	var rows []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}

	err := r.db.NewSelect().
		Model((*database.Account)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Where("verification_doc_url IS NOT NULL").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to count verifications: %w", err)
	}

	counts := map[Status]int{
		StatusPendingApproval: 0,
		StatusActive:          0,
		StatusRejected:        0,
	}
	for _, row := range rows {
		counts[Status(row.Status)] = row.Count
	}
	return counts, nil
}

// Decide applies a reviewer decision. The update only matches accounts still
// pending approval, so a second decision never overwrites the first.
func (r *Repository) Decide(ctx context.Context, id uuid.UUID, d Decision) (*Account, error) {
	row := new(database.Account)
	reviewer := d.ReviewerID
	decidedAt := d.DecidedAt

	result, err := r.db.NewUpdate().
		Model(row).
		Set("status = ?", d.Status).
		Set("rejection_reason = ?", nullable(string(d.Reason))).
		Set("review_notes = ?", nullable(d.Notes)).
		Set("reviewed_by = ?", &reviewer).
		Set("reviewed_at = ?", &decidedAt).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("status = ?", StatusPendingApproval).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyDecided
	}

	return toDomain(row), nil
}

// duplicateField reports which identifier a unique violation collided on
func duplicateField(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return "", false
	}
	if field, ok := constraintFields[pqErr.Constraint]; ok {
		return field, true
	}
	return "identifier", true
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toDomain converts database model to domain model
func toDomain(row *database.Account) *Account {
	var reviewedAt *time.Time
	if row.ReviewedAt != nil {
		t := *row.ReviewedAt
		reviewedAt = &t
	}
	return &Account{
		ID:                 row.ID,
		Email:              row.Email,
		PasswordHash:       row.PasswordHash,
		FirstName:          row.FirstName,
		LastName:           row.LastName,
		Role:               Role(row.Role),
		Category:           Category(deref(row.AccountType)),
		Country:            deref(row.Country),
		Organization:       deref(row.Organization),
		Phone:              deref(row.Phone),
		NationalID:         deref(row.NationalID),
		PassportID:         deref(row.PassportID),
		LicenseID:          deref(row.LicenseID),
		Status:             Status(row.Status),
		VerificationDocURL: deref(row.VerificationDocURL),
		RejectionReason:    deref(row.RejectionReason),
		ReviewNotes:        deref(row.ReviewNotes),
		ReviewedBy:         row.ReviewedBy,
		ReviewedAt:         reviewedAt,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}
