package account

import (
	"time"

	"github.com/google/uuid"
)

// DomesticCountry is recorded for every domestic signup category regardless
// of what the client sends
const DomesticCountry = "Thailand"

// Category is the signup classification chosen on the registration form
type Category string

const (
	CategoryThaiStudent               Category = "thaiStudent"
	CategoryInternationalStudent      Category = "internationalStudent"
	CategoryThaiProfessional          Category = "thaiProfessional"
	CategoryInternationalProfessional Category = "internationalProfessional"
)

// Role is the persisted account role
type Role string

const (
	RoleThaiStudent               Role = "thstd"
	RoleInternationalStudent      Role = "interstd"
	RoleThaiProfessional          Role = "thpro"
	RoleInternationalProfessional Role = "interpro"
	RoleAdmin                     Role = "admin"
	RoleStaff                     Role = "staff"
)

var categoryRoles = map[Category]Role{
	CategoryThaiStudent:               RoleThaiStudent,
	CategoryInternationalStudent:      RoleInternationalStudent,
	CategoryThaiProfessional:          RoleThaiProfessional,
	CategoryInternationalProfessional: RoleInternationalProfessional,
}

// Valid reports whether c is one of the four signup categories
func (c Category) Valid() bool {
	_, ok := categoryRoles[c]
	return ok
}

// Role returns the fixed role for the category, or "" for an unknown category
func (c Category) Role() Role {
	return categoryRoles[c]
}

// Domestic reports whether the category is reserved for Thai residents
func (c Category) Domestic() bool {
	return c == CategoryThaiStudent || c == CategoryThaiProfessional
}

// Student reports whether the category is a student rate
func (c Category) Student() bool {
	return c == CategoryThaiStudent || c == CategoryInternationalStudent
}

// RequiresDocument reports whether approval needs an uploaded eligibility document
func (c Category) RequiresDocument() bool {
	return c.Student()
}

// ResolveCountry fixes the country for domestic categories and passes the
// supplied value through for international ones
func (c Category) ResolveCountry(supplied string) string {
	if c.Domestic() {
		return DomesticCountry
	}
	return supplied
}

// IsStaff reports whether the role may use the backoffice
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Status is the account lifecycle state
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusActive          Status = "active"
	StatusRejected        Status = "rejected"
)

// RejectionReason is the fixed taxonomy a reviewer picks from
type RejectionReason string

const (
	ReasonExpired    RejectionReason = "expired"
	ReasonUnreadable RejectionReason = "unclear"
	ReasonMismatch   RejectionReason = "mismatch"
	ReasonInvalid    RejectionReason = "invalid"
	ReasonFraud      RejectionReason = "fake"
	ReasonOther      RejectionReason = "other"
)

var reasonLabels = map[RejectionReason]string{
	ReasonExpired:    "Document expired",
	ReasonUnreadable: "Document not readable/unclear",
	ReasonMismatch:   "Name does not match registration",
	ReasonInvalid:    "Invalid document type",
	ReasonFraud:      "Suspected fraudulent document",
	ReasonOther:      "Other",
}

// Valid reports whether r belongs to the taxonomy
func (r RejectionReason) Valid() bool {
	_, ok := reasonLabels[r]
	return ok
}

// Label is the human readable text used in notifications
func (r RejectionReason) Label() string {
	if l, ok := reasonLabels[r]; ok {
		return l
	}
	return string(r)
}

// Account is the domain view of an account row
type Account struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	Role               Role       `json:"role"`
	Category           Category   `json:"accountType,omitempty"`
	Country            string     `json:"country,omitempty"`
	Organization       string     `json:"organization,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	NationalID         string     `json:"idCard,omitempty"`
	PassportID         string     `json:"passportId,omitempty"`
	LicenseID          string     `json:"pharmacyLicenseId,omitempty"`
	Status             Status     `json:"status"`
	VerificationDocURL string     `json:"verificationDocUrl,omitempty"`
	RejectionReason    string     `json:"rejectionReason,omitempty"`
	ReviewNotes        string     `json:"reviewNotes,omitempty"`
	ReviewedBy         *uuid.UUID `json:"reviewedBy,omitempty"`
	ReviewedAt         *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// FullName joins the name parts
func (a *Account) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// HasDocument reports whether a verification document reference is recorded
func (a *Account) HasDocument() bool {
	return a.VerificationDocURL != ""
}

// NewAccount carries the fields persisted at registration time
type NewAccount struct {
	Email              string
	PasswordHash       string
	FirstName          string
	LastName           string
	Role               Role
	Category           Category
	Country            string
	Organization       string
	Phone              string
	NationalID         string
	PassportID         string
	LicenseID          string
	Status             Status
	VerificationDocURL string
}

// Decision is a reviewer verdict on a pending account
type Decision struct {
	Status     Status
	Reason     RejectionReason
	Notes      string
	ReviewerID uuid.UUID
	DecidedAt  time.Time
}

// VerificationFilter narrows the verification queue
type VerificationFilter struct {
	Status Status
	Search string
	Limit  int
	Offset int
}
