package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Unique constraint names on the accounts table. The repository maps
// violations of these back to the colliding field.
const (
	AccountsEmailKey      = "accounts_email_key"
	AccountsNationalIDKey = "accounts_national_id_key"
	AccountsPassportIDKey = "accounts_passport_id_key"
	AccountsLicenseIDKey  = "accounts_license_id_key"
)

// Account is the persisted row for registrants and backoffice staff.
// Optional identifiers are pointers so an absent value is stored as NULL and
// never collides with another absent value.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID                 uuid.UUID  `bun:"id,pk,type:uuid"`
	Email              string     `bun:"email,notnull,unique:accounts_email_key"`
	NationalID         *string    `bun:"national_id,unique:accounts_national_id_key"`
	PassportID         *string    `bun:"passport_id,unique:accounts_passport_id_key"`
	LicenseID          *string    `bun:"license_id,unique:accounts_license_id_key"`
	PasswordHash       string     `bun:"password_hash,notnull"`
	FirstName          string     `bun:"first_name,notnull"`
	LastName           string     `bun:"last_name,notnull"`
	Role               string     `bun:"role,notnull"`
	AccountType        *string    `bun:"account_type"`
	Country            *string    `bun:"country"`
	Organization       *string    `bun:"organization"`
	Phone              *string    `bun:"phone"`
	Status             string     `bun:"status,notnull"`
	VerificationDocURL *string    `bun:"verification_doc_url"`
	RejectionReason    *string    `bun:"rejection_reason"`
	ReviewNotes        *string    `bun:"review_notes"`
	ReviewedBy         *uuid.UUID `bun:"reviewed_by,type:uuid"`
	ReviewedAt         *time.Time `bun:"reviewed_at"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
