package registration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/accp-conference/api/internal/account"
	"github.com/accp-conference/api/internal/logging"
	"github.com/accp-conference/api/internal/validate"
)

// memStore enforces the same uniqueness rules as the accounts table
type memStore struct {
	mu        sync.Mutex
	accounts  []account.Account
	createErr error
}

func (m *memStore) find(match func(a account.Account) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if match(a) {
			return true
		}
	}
	return false
}

func (m *memStore) ExistsByEmail(_ context.Context, v string) (bool, error) {
	return m.find(func(a account.Account) bool { return a.Email == v }), nil
}

func (m *memStore) ExistsByNationalID(_ context.Context, v string) (bool, error) {
	return m.find(func(a account.Account) bool { return a.NationalID == v }), nil
}

func (m *memStore) ExistsByPassportID(_ context.Context, v string) (bool, error) {
	return m.find(func(a account.Account) bool { return a.PassportID == v }), nil
}

func (m *memStore) ExistsByLicenseID(_ context.Context, v string) (bool, error) {
	return m.find(func(a account.Account) bool { return a.LicenseID == v }), nil
}

func (m *memStore) Create(_ context.Context, in account.NewAccount) (*account.Account, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		switch {
		case a.Email == in.Email:
			return nil, &account.DuplicateError{Field: account.FieldEmail}
		case in.NationalID != "" && a.NationalID == in.NationalID:
			return nil, &account.DuplicateError{Field: account.FieldNationalID}
		case in.PassportID != "" && a.PassportID == in.PassportID:
			return nil, &account.DuplicateError{Field: account.FieldPassportID}
		case in.LicenseID != "" && a.LicenseID == in.LicenseID:
			return nil, &account.DuplicateError{Field: account.FieldLicenseID}
		}
	}

	a := account.Account{
		ID:                 uuid.New(),
		Email:              in.Email,
		PasswordHash:       in.PasswordHash,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Role:               in.Role,
		Category:           in.Category,
		Country:            in.Country,
		NationalID:         in.NationalID,
		PassportID:         in.PassportID,
		LicenseID:          in.LicenseID,
		Status:             in.Status,
		VerificationDocURL: in.VerificationDocURL,
	}
	m.accounts = append(m.accounts, a)
	return &a, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendPendingApproval(ctx context.Context, to, firstName, lastName string) error {
	args := m.Called(ctx, to, firstName, lastName)
	return args.Error(0)
}

func newTestService(store Store, notifier Notifier) *Service {
	svc := NewService(store, notifier, logging.NewDiscardLogger(), bcrypt.MinCost)
	svc.dispatch = func(f func()) { f() }
	return svc
}

func quietNotifier() *mockNotifier {
	n := new(mockNotifier)
	n.On("SendPendingApproval", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return n
}

func thaiStudent() Request {
	return Request{
		FirstName:          "Somchai",
		LastName:           "Jaidee",
		Email:              "somchai@example.com",
		Password:           "s3cret-pass",
		AccountType:        string(account.CategoryThaiStudent),
		IDCard:             "1234567890123",
		Country:            "France",
		VerificationDocURL: "https://accp-docs.s3.ap-southeast-1.amazonaws.com/verification/01H-card.pdf",
	}
}

func internationalProfessional() Request {
	return Request{
		FirstName:   "Claire",
		LastName:    "Martin",
		Email:       "claire@example.fr",
		Password:    "s3cret-pass",
		AccountType: string(account.CategoryInternationalProfessional),
		PassportID:  "fr1234567",
		Country:     "France",
	}
}

func TestRegister_DomesticStudent(t *testing.T) {
	store := &memStore{}
	notifier := new(mockNotifier)
	notifier.On("SendPendingApproval", mock.Anything, "somchai@example.com", "Somchai", "Jaidee").Return(nil).Once()
	svc := newTestService(store, notifier)

	result, err := svc.Register(context.Background(), thaiStudent())
	require.NoError(t, err)

	assert.Equal(t, account.RoleThaiStudent, result.Role)
	assert.Equal(t, account.StatusPendingApproval, result.Status)
	require.Equal(t, 1, store.count())

	saved := store.accounts[0]
	assert.Equal(t, account.DomesticCountry, saved.Country)
	assert.Equal(t, account.CategoryThaiStudent, saved.Category)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.PasswordHash), []byte("s3cret-pass")))
	notifier.AssertExpectations(t)
}

func TestRegister_InternationalCountryPassesThrough(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, quietNotifier())

	result, err := svc.Register(context.Background(), internationalProfessional())
	require.NoError(t, err)

	assert.Equal(t, account.RoleInternationalProfessional, result.Role)
	assert.Equal(t, account.StatusPendingApproval, result.Status)
	assert.Equal(t, "France", store.accounts[0].Country)
	assert.Equal(t, "FR1234567", store.accounts[0].PassportID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, quietNotifier())
	_, err := svc.Register(context.Background(), thaiStudent())
	require.NoError(t, err)

	again := internationalProfessional()
	again.Email = "  SOMCHAI@example.com "
	_, err = svc.Register(context.Background(), again)

	require.Error(t, err)
	field, ok := account.DuplicateField(err)
	require.True(t, ok)
	assert.Equal(t, account.FieldEmail, field)
	assert.Equal(t, 1, store.count())
}

func TestRegister_DuplicateNationalID(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, quietNotifier())
	_, err := svc.Register(context.Background(), thaiStudent())
	require.NoError(t, err)

	again := thaiStudent()
	again.Email = "other@example.com"
	_, err = svc.Register(context.Background(), again)

	field, ok := account.DuplicateField(err)
	require.True(t, ok)
	assert.Equal(t, account.FieldNationalID, field)
	assert.Equal(t, 1, store.count())
}

func TestRegister_DuplicateOrderReportsEmailFirst(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, quietNotifier())
	_, err := svc.Register(context.Background(), thaiStudent())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), thaiStudent())
	field, _ := account.DuplicateField(err)
	assert.Equal(t, account.FieldEmail, field)
}

func TestRegister_DuplicateLicense(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, quietNotifier())

	first := internationalProfessional()
	first.PharmacyLicenseID = "PH-001"
	_, err := svc.Register(context.Background(), first)
	require.NoError(t, err)

	second := internationalProfessional()
	second.Email = "b@example.fr"
	second.PassportID = "FR999"
	second.PharmacyLicenseID = "PH-001"
	_, err = svc.Register(context.Background(), second)

	field, ok := account.DuplicateField(err)
	require.True(t, ok)
	assert.Equal(t, account.FieldLicenseID, field)
}

func TestRegister_InsertConflictMapsToSameError(t *testing.T) {
	store := &memStore{createErr: &account.DuplicateError{Field: account.FieldPassportID}}
	svc := newTestService(store, quietNotifier())

	_, err := svc.Register(context.Background(), internationalProfessional())

	assert.True(t, errors.Is(err, account.ErrDuplicate))
	field, _ := account.DuplicateField(err)
	assert.Equal(t, account.FieldPassportID, field)
}

func TestRegister_StoreFailureIsInternal(t *testing.T) {
	store := &memStore{createErr: errors.New("connection refused")}
	svc := newTestService(store, quietNotifier())

	_, err := svc.Register(context.Background(), internationalProfessional())

	require.Error(t, err)
	assert.False(t, errors.Is(err, account.ErrDuplicate))
	assert.False(t, errors.Is(err, validate.ErrInvalid))
}

func TestRegister_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Request)
		field  string
	}{
		{"missing first name", func(r *Request) { r.FirstName = " " }, "firstName"},
		{"bad email", func(r *Request) { r.Email = "not-an-email" }, "email"},
		{"short password", func(r *Request) { r.Password = "short" }, "password"},
		{"password over 72 bytes", func(r *Request) { r.Password = strings.Repeat("ก", 30) }, "password"},
		{"unknown category", func(r *Request) { r.AccountType = "alumni" }, "accountType"},
		{"malformed id card", func(r *Request) { r.IDCard = "12-34" }, "idCard"},
		{"thai without id card", func(r *Request) { r.IDCard = "" }, "idCard"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &memStore{}
			svc := newTestService(store, quietNotifier())

			req := thaiStudent()
			tc.mutate(&req)
			_, err := svc.Register(context.Background(), req)

			var ve *validate.Error
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tc.field, ve.Field)
			assert.Equal(t, 0, store.count())
		})
	}
}

func TestRegister_InternationalRequiresPassportAndCountry(t *testing.T) {
	svc := newTestService(&memStore{}, quietNotifier())

	req := internationalProfessional()
	req.PassportID = ""
	_, err := svc.Register(context.Background(), req)
	var ve *validate.Error
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, account.FieldPassportID, ve.Field)

	req = internationalProfessional()
	req.Country = ""
	_, err = svc.Register(context.Background(), req)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "country", ve.Field)
}

func TestRegister_NotificationFailureDoesNotFail(t *testing.T) {
	notifier := new(mockNotifier)
	notifier.On("SendPendingApproval", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp not configured"))
	svc := newTestService(&memStore{}, notifier)

	result, err := svc.Register(context.Background(), internationalProfessional())

	require.NoError(t, err)
	assert.Equal(t, account.StatusPendingApproval, result.Status)
	notifier.AssertNumberOfCalls(t, "SendPendingApproval", 1)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, quietNotifier())

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := internationalProfessional()
			req.PassportID = "P" + uuid.NewString()[:8]
			<-start
			_, err := svc.Register(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, account.ErrDuplicate):
				conflicts++
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, store.count())
}

func TestRegister_MultibytePasswordWithinLimit(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, quietNotifier())

	req := thaiStudent()
	req.Password = strings.Repeat("ก", 24) // 72 bytes
	_, err := svc.Register(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 1, store.count())
}
