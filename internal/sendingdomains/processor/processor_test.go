package processor

import (
	"context"
	"errors"
	"testing"

	"crm-server/internal/clients/domains"
	"crm-server/internal/observability"
	"crm-server/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockDomainStore is a mock implementation of DomainStore
type MockDomainStore struct {
	mock.Mock
}

func (m *MockDomainStore) CreateEmailDomain(ctx context.Context, params store.CreateEmailDomainParams) (store.EmailDomain, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(store.EmailDomain), args.Error(1)
}

func (m *MockDomainStore) GetEmailDomainForUser(ctx context.Context, domainID, userID uuid.UUID) (store.EmailDomain, error) {
	args := m.Called(ctx, domainID, userID)
	return args.Get(0).(store.EmailDomain), args.Error(1)
}

func (m *MockDomainStore) UpdateEmailDomainVerification(ctx context.Context, domainID uuid.UUID, isVerified bool) error {
	args := m.Called(ctx, domainID, isVerified)
	return args.Error(0)
}

// MockProviderClient is a mock implementation of ProviderClient
type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) AddDomain(ctx context.Context, name string) (domains.Domain, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(domains.Domain), args.Error(1)
}

func (m *MockProviderClient) GetDomain(ctx context.Context, domainID string) (domains.Domain, error) {
	args := m.Called(ctx, domainID)
	return args.Get(0).(domains.Domain), args.Error(1)
}

// MockResolver is a mock implementation of Resolver
type MockResolver struct {
	mock.Mock
	endpoint string
}

func (m *MockResolver) Lookup(ctx context.Context, name, recordType string) ([]string, error) {
	args := m.Called(ctx, name, recordType)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockResolver) Endpoint() string {
	return m.endpoint
}

func newTestProcessor(store *MockDomainStore, provider *MockProviderClient, primary, backup *MockResolver) *Processor {
	return New(store, provider, primary, backup, observability.NewLogger())
}

func storedDomain(userID uuid.UUID) store.EmailDomain {
	return store.EmailDomain{
		ID:               uuid.New(),
		UserID:           userID,
		Domain:           "acme.fr",
		FromEmail:        "hello@acme.fr",
		ProviderDomainID: "prov-123",
	}
}

func TestAddDomain_RegistersWithProviderAndPersists(t *testing.T) {
	mockStore := new(MockDomainStore)
	mockProvider := new(MockProviderClient)
	p := newTestProcessor(mockStore, mockProvider, new(MockResolver), new(MockResolver))

	userID := uuid.New()
	providerDomain := domains.Domain{
		ID:     "prov-123",
		Name:   "acme.fr",
		Status: "pending",
		Records: []domains.DNSRecord{
			{Type: "TXT", Name: "resend._domainkey", Value: "p=abc"},
		},
	}
	mockProvider.On("AddDomain", mock.Anything, "acme.fr").Return(providerDomain, nil)
	mockStore.On("CreateEmailDomain", mock.Anything, mock.MatchedBy(func(params store.CreateEmailDomainParams) bool {
		return params.UserID == userID && params.Domain == "acme.fr" && params.ProviderDomainID == "prov-123"
	})).Return(storedDomain(userID), nil)

	result, err := p.AddDomain(context.Background(), userID, AddDomainRequest{
		Domain:    "acme.fr",
		FromName:  "Acme",
		FromEmail: "hello@acme.fr",
	})

	assert.NoError(t, err)
	assert.Equal(t, "pending", result.Status)
	assert.Len(t, result.Records, 1)
	mockStore.AssertExpectations(t)
	mockProvider.AssertExpectations(t)
}

func TestAddDomain_ProviderFailureDoesNotPersist(t *testing.T) {
	mockStore := new(MockDomainStore)
	mockProvider := new(MockProviderClient)
	p := newTestProcessor(mockStore, mockProvider, new(MockResolver), new(MockResolver))

	mockProvider.On("AddDomain", mock.Anything, "acme.fr").
		Return(domains.Domain{}, domains.ErrProviderRequestFailed)

	_, err := p.AddDomain(context.Background(), uuid.New(), AddDomainRequest{Domain: "acme.fr"})

	assert.ErrorIs(t, err, domains.ErrProviderRequestFailed)
	mockStore.AssertNotCalled(t, "CreateEmailDomain", mock.Anything, mock.Anything)
}

func TestCheckStatus_ClassifiesRecordsAndPersistsVerification(t *testing.T) {
	mockStore := new(MockDomainStore)
	mockProvider := new(MockProviderClient)
	p := newTestProcessor(mockStore, mockProvider, new(MockResolver), new(MockResolver))

	userID := uuid.New()
	emailDomain := storedDomain(userID)

	mockStore.On("GetEmailDomainForUser", mock.Anything, emailDomain.ID, userID).Return(emailDomain, nil)
	mockProvider.On("GetDomain", mock.Anything, "prov-123").Return(domains.Domain{
		ID:     "prov-123",
		Status: "verified",
		Records: []domains.DNSRecord{
			{Type: "TXT", Name: "resend._domainkey", Value: "p=abc"},
			{Type: "TXT", Name: "send", Value: "v=spf1 include:amazonses.com ~all"},
			{Type: "MX", Name: "send", Value: "feedback-smtp.eu-west-1.amazonses.com", Priority: 10},
		},
	}, nil)
	mockStore.On("UpdateEmailDomainVerification", mock.Anything, emailDomain.ID, true).Return(nil)

	status, err := p.CheckStatus(context.Background(), userID, emailDomain.ID)

	assert.NoError(t, err)
	assert.True(t, status.Verified)
	assert.Len(t, status.DKIMRecords, 1)
	assert.Len(t, status.SPFRecords, 1)
	assert.Len(t, status.MXRecords, 1)
	mockStore.AssertExpectations(t)
}

func TestCheckStatus_DomainNotFound(t *testing.T) {
	mockStore := new(MockDomainStore)
	p := newTestProcessor(mockStore, new(MockProviderClient), new(MockResolver), new(MockResolver))

	userID := uuid.New()
	domainID := uuid.New()
	mockStore.On("GetEmailDomainForUser", mock.Anything, domainID, userID).
		Return(store.EmailDomain{}, store.ErrNotFound)

	_, err := p.CheckStatus(context.Background(), userID, domainID)

	assert.ErrorIs(t, err, ErrDomainNotFound)
}

// crossCheckWith runs CrossCheckDNS for a single TXT record with the two
// resolvers primed to the given answers/errors.
func crossCheckWith(t *testing.T, primaryAnswers []string, primaryErr error, backupAnswers []string, backupErr error) RecordCheckStatus {
	t.Helper()

	mockStore := new(MockDomainStore)
	mockProvider := new(MockProviderClient)
	primary := &MockResolver{endpoint: "https://dns.google/resolve"}
	backup := &MockResolver{endpoint: "https://cloudflare-dns.com/dns-query"}
	p := newTestProcessor(mockStore, mockProvider, primary, backup)

	userID := uuid.New()
	emailDomain := storedDomain(userID)

	mockStore.On("GetEmailDomainForUser", mock.Anything, emailDomain.ID, userID).Return(emailDomain, nil)
	mockProvider.On("GetDomain", mock.Anything, "prov-123").Return(domains.Domain{
		ID:     "prov-123",
		Status: "pending",
		Records: []domains.DNSRecord{
			{Type: "TXT", Name: "resend._domainkey", Value: "p=abc"},
		},
	}, nil)
	primary.On("Lookup", mock.Anything, "resend._domainkey.acme.fr", "TXT").Return(primaryAnswers, primaryErr)
	backup.On("Lookup", mock.Anything, "resend._domainkey.acme.fr", "TXT").Return(backupAnswers, backupErr)

	checks, err := p.CrossCheckDNS(context.Background(), userID, emailDomain.ID)
	assert.NoError(t, err)
	assert.Len(t, checks, 1)
	return checks[0].Status
}

func TestCrossCheckDNS_BothResolversAgreeOnSuccess(t *testing.T) {
	status := crossCheckWith(t, []string{`"p=abc"`}, nil, []string{"p=abc"}, nil)
	assert.Equal(t, RecordCheckSuccess, status)
}

func TestCrossCheckDNS_OneResolverMissingRecordIsError(t *testing.T) {
	status := crossCheckWith(t, []string{"p=abc"}, nil, []string{}, nil)
	assert.Equal(t, RecordCheckError, status)
}

func TestCrossCheckDNS_TransientResolverFailureIsPending(t *testing.T) {
	status := crossCheckWith(t, []string{"p=abc"}, nil, []string{}, errors.New("timeout"))
	assert.Equal(t, RecordCheckPending, status)
}

func TestCrossCheckDNS_ConfirmedMissOutranksTransientFailure(t *testing.T) {
	status := crossCheckWith(t, []string{}, errors.New("timeout"), []string{"p=wrong"}, nil)
	assert.Equal(t, RecordCheckError, status)
}

func TestCrossCheckDNS_MXMatchIgnoresPriorityAndTrailingDot(t *testing.T) {
	mockStore := new(MockDomainStore)
	mockProvider := new(MockProviderClient)
	primary := &MockResolver{endpoint: "https://dns.google/resolve"}
	backup := &MockResolver{endpoint: "https://cloudflare-dns.com/dns-query"}
	p := newTestProcessor(mockStore, mockProvider, primary, backup)

	userID := uuid.New()
	emailDomain := storedDomain(userID)

	mockStore.On("GetEmailDomainForUser", mock.Anything, emailDomain.ID, userID).Return(emailDomain, nil)
	mockProvider.On("GetDomain", mock.Anything, "prov-123").Return(domains.Domain{
		ID:     "prov-123",
		Status: "pending",
		Records: []domains.DNSRecord{
			{Type: "MX", Name: "send", Value: "feedback-smtp.eu-west-1.amazonses.com", Priority: 10},
		},
	}, nil)
	primary.On("Lookup", mock.Anything, "send.acme.fr", "MX").
		Return([]string{"10 Feedback-SMTP.eu-west-1.amazonses.com."}, nil)
	backup.On("Lookup", mock.Anything, "send.acme.fr", "MX").
		Return([]string{"10 feedback-smtp.eu-west-1.amazonses.com"}, nil)

	checks, err := p.CrossCheckDNS(context.Background(), userID, emailDomain.ID)

	assert.NoError(t, err)
	assert.Len(t, checks, 1)
	assert.Equal(t, RecordCheckSuccess, checks[0].Status)
}

func TestFullyQualifiedName(t *testing.T) {
	assert.Equal(t, "acme.fr", fullyQualifiedName("@", "acme.fr"))
	assert.Equal(t, "acme.fr", fullyQualifiedName("", "acme.fr"))
	assert.Equal(t, "send.acme.fr", fullyQualifiedName("send", "acme.fr"))
	assert.Equal(t, "send.acme.fr", fullyQualifiedName("send.acme.fr", "acme.fr"))
	assert.Equal(t, "resend._domainkey.acme.fr", fullyQualifiedName("resend._domainkey.", "acme.fr"))
}
