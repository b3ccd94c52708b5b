package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crm-server/internal/clients/domains"
	"crm-server/internal/observability"
	"crm-server/internal/store"

	"github.com/google/uuid"
)

// DomainStore defines the database operations required by the domain processor
type DomainStore interface {
	CreateEmailDomain(ctx context.Context, params store.CreateEmailDomainParams) (store.EmailDomain, error)
	GetEmailDomainForUser(ctx context.Context, domainID, userID uuid.UUID) (store.EmailDomain, error)
	UpdateEmailDomainVerification(ctx context.Context, domainID uuid.UUID, isVerified bool) error
}

// ProviderClient defines the domain registration operations required from
// the email provider
type ProviderClient interface {
	AddDomain(ctx context.Context, name string) (domains.Domain, error)
	GetDomain(ctx context.Context, domainID string) (domains.Domain, error)
}

// Resolver defines one public DNS-over-HTTPS lookup source
type Resolver interface {
	Lookup(ctx context.Context, name, recordType string) ([]string, error)
	Endpoint() string
}

var ErrDomainNotFound = errors.New("sending domain not found")

const providerStatusVerified = "verified"

// RecordCheckStatus classifies one DNS record's propagation state
type RecordCheckStatus string

const (
	// RecordCheckSuccess means both resolvers confirmed the record
	RecordCheckSuccess RecordCheckStatus = "success"
	// RecordCheckPending means a resolver errored transiently; the record
	// may simply not have propagated yet
	RecordCheckPending RecordCheckStatus = "pending"
	// RecordCheckError means a resolver returned no answers or a value
	// that does not match
	RecordCheckError RecordCheckStatus = "error"
)

// AddDomainRequest carries the sending identity being registered
type AddDomainRequest struct {
	Domain    string
	FromName  string
	FromEmail string
	ReplyTo   string
}

// AddDomainResult is the registered domain plus the DNS records the
// provider requires
type AddDomainResult struct {
	Domain  store.EmailDomain   `json:"domain"`
	Status  string              `json:"status"`
	Records []domains.DNSRecord `json:"records"`
}

// DomainStatus classifies the provider's view of a domain's DNS records
type DomainStatus struct {
	Verified    bool                `json:"verified"`
	Status      string              `json:"status"`
	DKIMRecords []domains.DNSRecord `json:"dkim_records"`
	SPFRecords  []domains.DNSRecord `json:"spf_records"`
	MXRecords   []domains.DNSRecord `json:"mx_records"`
}

// RecordCheck is the cross-check outcome for one expected DNS record
type RecordCheck struct {
	Type   string            `json:"type"`
	Name   string            `json:"name"`
	Value  string            `json:"value"`
	Status RecordCheckStatus `json:"status"`
}

// Processor manages sending domain registration and verification
type Processor struct {
	store           DomainStore
	provider        ProviderClient
	primaryResolver Resolver
	backupResolver  Resolver
	logger          *observability.Logger
}

// New creates a new sending domain processor
func New(store DomainStore, provider ProviderClient, primaryResolver, backupResolver Resolver, logger *observability.Logger) *Processor {
	return &Processor{
		store:           store,
		provider:        provider,
		primaryResolver: primaryResolver,
		backupResolver:  backupResolver,
		logger:          logger,
	}
}

// AddDomain registers a sending domain with the email provider and persists
// the tenant's sending identity.
func (p *Processor) AddDomain(ctx context.Context, userID uuid.UUID, req AddDomainRequest) (AddDomainResult, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "user_id", Value: userID},
		observability.Field{Key: "domain", Value: req.Domain},
	)

	providerDomain, err := p.provider.AddDomain(ctx, req.Domain)
	if err != nil {
		p.logger.Error(ctx, "failed to register domain with provider", err)
		return AddDomainResult{}, err
	}

	emailDomain, err := p.store.CreateEmailDomain(ctx, store.CreateEmailDomainParams{
		UserID:           userID,
		Domain:           req.Domain,
		FromName:         req.FromName,
		FromEmail:        req.FromEmail,
		ReplyTo:          req.ReplyTo,
		ProviderDomainID: providerDomain.ID,
	})
	if err != nil {
		return AddDomainResult{}, err
	}

	p.logger.Info(ctx, "sending domain registered")
	return AddDomainResult{
		Domain:  emailDomain,
		Status:  providerDomain.Status,
		Records: providerDomain.Records,
	}, nil
}

// CheckStatus refreshes the provider's verification state for a domain and
// classifies its expected records into DKIM, SPF and MX groups.
func (p *Processor) CheckStatus(ctx context.Context, userID, domainID uuid.UUID) (DomainStatus, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "user_id", Value: userID},
		observability.Field{Key: "domain_id", Value: domainID},
	)

	emailDomain, err := p.store.GetEmailDomainForUser(ctx, domainID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DomainStatus{}, ErrDomainNotFound
		}
		return DomainStatus{}, err
	}

	providerDomain, err := p.provider.GetDomain(ctx, emailDomain.ProviderDomainID)
	if err != nil {
		p.logger.Error(ctx, "failed to fetch domain from provider", err)
		return DomainStatus{}, err
	}

	status := DomainStatus{
		Status:   providerDomain.Status,
		Verified: providerDomain.Status == providerStatusVerified,
	}
	for _, record := range providerDomain.Records {
		switch classifyRecord(record) {
		case "dkim":
			status.DKIMRecords = append(status.DKIMRecords, record)
		case "spf":
			status.SPFRecords = append(status.SPFRecords, record)
		case "mx":
			status.MXRecords = append(status.MXRecords, record)
		}
	}

	if err := p.store.UpdateEmailDomainVerification(ctx, domainID, status.Verified); err != nil {
		return DomainStatus{}, err
	}
	return status, nil
}

// CrossCheckDNS independently confirms DNS propagation of every record the
// provider expects, against two public resolvers. Both resolvers must agree
// before a record is reported as success; a confirmed miss outranks a
// transient resolver failure.
func (p *Processor) CrossCheckDNS(ctx context.Context, userID, domainID uuid.UUID) ([]RecordCheck, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "user_id", Value: userID},
		observability.Field{Key: "domain_id", Value: domainID},
	)

	emailDomain, err := p.store.GetEmailDomainForUser(ctx, domainID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}

	providerDomain, err := p.provider.GetDomain(ctx, emailDomain.ProviderDomainID)
	if err != nil {
		p.logger.Error(ctx, "failed to fetch domain from provider", err)
		return nil, err
	}

	checks := make([]RecordCheck, 0, len(providerDomain.Records))
	for _, record := range providerDomain.Records {
		fqn := fullyQualifiedName(record.Name, emailDomain.Domain)
		checks = append(checks, RecordCheck{
			Type:   record.Type,
			Name:   fqn,
			Value:  record.Value,
			Status: p.checkRecord(ctx, fqn, record),
		})
	}
	return checks, nil
}

// checkRecord resolves one expected record against both resolvers and
// combines their outcomes with error > pending > success precedence.
func (p *Processor) checkRecord(ctx context.Context, fqn string, record domains.DNSRecord) RecordCheckStatus {
	primary := p.resolveOutcome(ctx, p.primaryResolver, fqn, record)
	backup := p.resolveOutcome(ctx, p.backupResolver, fqn, record)

	if primary == RecordCheckError || backup == RecordCheckError {
		return RecordCheckError
	}
	if primary == RecordCheckPending || backup == RecordCheckPending {
		return RecordCheckPending
	}
	return RecordCheckSuccess
}

func (p *Processor) resolveOutcome(ctx context.Context, resolver Resolver, fqn string, record domains.DNSRecord) RecordCheckStatus {
	answers, err := resolver.Lookup(ctx, fqn, record.Type)
	if err != nil {
		p.logger.Warn(observability.WithFields(ctx,
			observability.Field{Key: "resolver", Value: resolver.Endpoint()},
			observability.Field{Key: "record_name", Value: fqn},
		), "resolver lookup failed, treating record as pending")
		return RecordCheckPending
	}
	if len(answers) == 0 {
		return RecordCheckError
	}

	if matchesRecord(record, answers) {
		return RecordCheckSuccess
	}
	return RecordCheckError
}

// matchesRecord compares resolver answers against the expected value. TXT
// values must match exactly after quote/whitespace stripping; MX answers
// must contain the expected hostname, priority ignored.
func matchesRecord(record domains.DNSRecord, answers []string) bool {
	switch strings.ToUpper(record.Type) {
	case "MX":
		expected := mxHost(record.Value)
		for _, answer := range answers {
			if mxHost(answer) == expected {
				return true
			}
		}
		return false
	default:
		expected := normalizeTXT(record.Value)
		for _, answer := range answers {
			if normalizeTXT(answer) == expected {
				return true
			}
		}
		return false
	}
}

// normalizeTXT strips surrounding quotes and whitespace and lowercases
func normalizeTXT(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, `"`)
	return strings.ToLower(strings.TrimSpace(value))
}

// mxHost extracts the exchange hostname: last whitespace-delimited token,
// trailing dot stripped, lowercased
func mxHost(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	host := fields[len(fields)-1]
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}

// classifyRecord buckets a provider record: TXT names containing _domainkey
// are DKIM, other TXT records are SPF, MX records are MX.
func classifyRecord(record domains.DNSRecord) string {
	switch strings.ToUpper(record.Type) {
	case "TXT":
		if strings.Contains(strings.ToLower(record.Name), "_domainkey") {
			return "dkim"
		}
		return "spf"
	case "MX":
		return "mx"
	default:
		return ""
	}
}

// fullyQualifiedName joins a provider-relative record name with the domain
func fullyQualifiedName(name, domain string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	if name == "" || name == "@" {
		return domain
	}
	if name == domain || strings.HasSuffix(name, "."+domain) {
		return name
	}
	return fmt.Sprintf("%s.%s", name, domain)
}
