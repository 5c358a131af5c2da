package account

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accp-conference/api/internal/database"
)

func TestCategory_RoleMapping(t *testing.T) {
	cases := map[Category]Role{
		CategoryThaiStudent:               RoleThaiStudent,
		CategoryInternationalStudent:      RoleInternationalStudent,
		CategoryThaiProfessional:          RoleThaiProfessional,
		CategoryInternationalProfessional: RoleInternationalProfessional,
	}
	for c, want := range cases {
		assert.True(t, c.Valid(), c)
		assert.Equal(t, want, c.Role(), c)
	}
	assert.False(t, Category("alumni").Valid())
	assert.Equal(t, Role(""), Category("alumni").Role())
}

func TestCategory_ResolveCountry(t *testing.T) {
	assert.Equal(t, DomesticCountry, CategoryThaiStudent.ResolveCountry("France"))
	assert.Equal(t, DomesticCountry, CategoryThaiProfessional.ResolveCountry(""))
	assert.Equal(t, "France", CategoryInternationalStudent.ResolveCountry("France"))
	assert.Equal(t, "Japan", CategoryInternationalProfessional.ResolveCountry("Japan"))
}

func TestCategory_RequiresDocument(t *testing.T) {
	assert.True(t, CategoryThaiStudent.RequiresDocument())
	assert.True(t, CategoryInternationalStudent.RequiresDocument())
	assert.False(t, CategoryThaiProfessional.RequiresDocument())
	assert.False(t, CategoryInternationalProfessional.RequiresDocument())
}

func TestRejectionReason(t *testing.T) {
	for _, r := range []RejectionReason{ReasonExpired, ReasonUnreadable, ReasonMismatch, ReasonInvalid, ReasonFraud, ReasonOther} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, RejectionReason("bored").Valid())
	assert.Equal(t, "Document expired", ReasonExpired.Label())
}

func TestDuplicateError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("register: %w", &DuplicateError{Field: FieldPassportID})

	assert.True(t, errors.Is(err, ErrDuplicate))
	field, ok := DuplicateField(err)
	require.True(t, ok)
	assert.Equal(t, FieldPassportID, field)
	assert.Equal(t, "passportId already registered", (&DuplicateError{Field: FieldPassportID}).Error())
}

func TestDuplicateField_FromPostgresError(t *testing.T) {
	cases := map[string]string{
		database.AccountsEmailKey:      FieldEmail,
		database.AccountsNationalIDKey: FieldNationalID,
		database.AccountsPassportIDKey: FieldPassportID,
		database.AccountsLicenseIDKey:  FieldLicenseID,
		"some_other_key":               "identifier",
	}
	for constraint, want := range cases {
		err := fmt.Errorf("exec: %w", &pq.Error{Code: "23505", Constraint: constraint})
		got, ok := duplicateField(err)
		require.True(t, ok, constraint)
		assert.Equal(t, want, got, constraint)
	}
}

func TestDuplicateField_IgnoresOtherErrors(t *testing.T) {
	_, ok := duplicateField(&pq.Error{Code: "23502", Constraint: database.AccountsEmailKey})
	assert.False(t, ok)

	_, ok = duplicateField(errors.New("connection reset"))
	assert.False(t, ok)
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Nil(t, nullable("   "))
	require.NotNil(t, nullable(" 123 "))
	assert.Equal(t, "123", *nullable(" 123 "))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now`, escapeLike("50% off_now"))
}

func TestToDomain(t *testing.T) {
	country := "France"
	doc := "https://cdn.example/doc.pdf"
	row := &database.Account{
		Email:              "a@example.com",
		FirstName:          "Ana",
		LastName:           "Lopez",
		Role:               string(RoleInternationalStudent),
		Country:            &country,
		Status:             string(StatusPendingApproval),
		VerificationDocURL: &doc,
	}

	a := toDomain(row)
	assert.Equal(t, "France", a.Country)
	assert.Equal(t, StatusPendingApproval, a.Status)
	assert.True(t, a.HasDocument())
	assert.Equal(t, "Ana Lopez", a.FullName())
	assert.Empty(t, a.NationalID)
}
