package account

import (
	"errors"
	"fmt"
)

// Identifier fields that carry a uniqueness guarantee, named as the API
// exposes them
const (
	FieldEmail      = "email"
	FieldNationalID = "idCard"
	FieldPassportID = "passportId"
	FieldLicenseID  = "pharmacyLicenseId"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicate      = errors.New("identifier already registered")
	ErrAlreadyDecided = errors.New("verification already decided")
)

// DuplicateError names the identifier that collided with an existing account
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field)
}

// Is lets callers match any duplicate with errors.Is(err, ErrDuplicate)
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// DuplicateField returns the colliding field when err is a duplicate error
func DuplicateField(err error) (string, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Field, true
	}
	return "", false
}
