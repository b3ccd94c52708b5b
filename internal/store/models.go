package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JSONB is a custom type for JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for JSONB")
	}

	if len(bytes) == 0 || string(bytes) == "null" {
		*j = make(JSONB)
		return nil
	}

	result := make(JSONB)
	err := json.Unmarshal(bytes, &result)
	if err != nil {
		return err
	}
	*j = result
	return nil
}

// StringArray is a custom type for PostgreSQL text[] arrays
type StringArray []string

// Value implements the driver.Valuer interface for StringArray
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	if len(a) == 0 {
		return "{}", nil
	}
	return "{" + strings.Join(a, ",") + "}", nil
}

// Scan implements the sql.Scanner interface for StringArray
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var str string
	switch v := value.(type) {
	case []byte:
		str = string(v)
	case string:
		str = v
	default:
		return fmt.Errorf("unsupported type for StringArray: %T", value)
	}

	str = strings.Trim(str, "{}")
	if str == "" {
		*a = []string{}
		return nil
	}

	*a = strings.Split(str, ",")
	return nil
}

// WorkflowStep is one element of a campaign's embedded workflow step array.
// Steps carry a stable identifier so execution progress survives reordering
// of the array.
type WorkflowStep struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	TemplateID   *uuid.UUID `json:"template_id,omitempty"`
	Subject      string     `json:"subject,omitempty"`
	Content      string     `json:"content,omitempty"`
	DelayDays    int        `json:"delay_days"`
	DelayHours   int        `json:"delay_hours"`
	DelayMinutes int        `json:"delay_minutes"`
}

// Delay returns the step's cumulative relative delay.
func (s WorkflowStep) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour +
		time.Duration(s.DelayHours)*time.Hour +
		time.Duration(s.DelayMinutes)*time.Minute
}

// WorkflowSteps is the ordered JSONB step array stored on a campaign
type WorkflowSteps []WorkflowStep

// Value implements the driver.Valuer interface for WorkflowSteps
func (w WorkflowSteps) Value() (driver.Value, error) {
	if w == nil {
		return json.Marshal([]WorkflowStep{})
	}
	return json.Marshal(w)
}

// Scan implements the sql.Scanner interface for WorkflowSteps
func (w *WorkflowSteps) Scan(value interface{}) error {
	if value == nil {
		*w = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for WorkflowSteps: %T", value)
	}

	if len(bytes) == 0 || string(bytes) == "null" {
		*w = WorkflowSteps{}
		return nil
	}

	return json.Unmarshal(bytes, w)
}

// IndexOf returns the position of the step with the given id, or -1.
func (w WorkflowSteps) IndexOf(stepID string) int {
	for i, s := range w {
		if s.ID == stepID {
			return i
		}
	}
	return -1
}

// Campaign represents an email campaign owned by a tenant
type Campaign struct {
	ID                     uuid.UUID     `db:"id"`
	UserID                 uuid.UUID     `db:"user_id"`
	Name                   string        `db:"name"`
	Subject                string        `db:"subject"`
	Content                string        `db:"content"`
	Status                 string        `db:"status"`
	IsActive               bool          `db:"is_active"`
	AutoEnrollNewProspects bool          `db:"auto_enroll_new_prospects"`
	TargetGroups           StringArray   `db:"target_groups"`
	WorkflowSteps          WorkflowSteps `db:"workflow_steps"`
	WorkflowID             *uuid.UUID    `db:"workflow_id"`
	SentAt                 *time.Time    `db:"sent_at"`
	CreatedAt              time.Time     `db:"created_at"`
	UpdatedAt              time.Time     `db:"updated_at"`
}

// Prospect represents a tenant-scoped contact record. Owned by the CRUD
// layer; read-only from the engine's perspective.
type Prospect struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	FullName  string    `db:"full_name"`
	Email     string    `db:"email"`
	Company   string    `db:"company"`
	Phone     string    `db:"phone"`
	CreatedAt time.Time `db:"created_at"`
}

// WorkflowExecution tracks one prospect's progress through a campaign's
// workflow steps.
type WorkflowExecution struct {
	ID              uuid.UUID  `db:"id"`
	CampaignID      uuid.UUID  `db:"campaign_id"`
	ProspectID      uuid.UUID  `db:"prospect_id"`
	WorkflowID      *uuid.UUID `db:"workflow_id"`
	CurrentStep     int        `db:"current_step"`
	CurrentStepID   *string    `db:"current_step_id"`
	TotalSteps      int        `db:"total_steps"`
	Status          string     `db:"status"`
	NextExecutionAt *time.Time `db:"next_execution_at"`
	LastExecutedAt  *time.Time `db:"last_executed_at"`
	ClaimedUntil    *time.Time `db:"claimed_until"`
	Metadata        JSONB      `db:"metadata"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// EmailCampaignRecipient tracks delivery status for one (campaign, prospect)
// pair, independently of workflow execution.
type EmailCampaignRecipient struct {
	ID           uuid.UUID  `db:"id"`
	CampaignID   uuid.UUID  `db:"campaign_id"`
	ProspectID   uuid.UUID  `db:"prospect_id"`
	Status       string     `db:"status"`
	SentAt       *time.Time `db:"sent_at"`
	OpenedAt     *time.Time `db:"opened_at"`
	ClickedAt    *time.Time `db:"clicked_at"`
	ErrorMessage *string    `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// PendingRecipient is a recipient row joined with its prospect's contact
// fields, as consumed by the batch sender.
type PendingRecipient struct {
	RecipientID uuid.UUID `db:"recipient_id"`
	ProspectID  uuid.UUID `db:"prospect_id"`
	FullName    string    `db:"full_name"`
	Email       string    `db:"email"`
	Company     string    `db:"company"`
}

// EmailDomain is a tenant's sending identity
type EmailDomain struct {
	ID               uuid.UUID `db:"id"`
	UserID           uuid.UUID `db:"user_id"`
	Domain           string    `db:"domain"`
	FromName         string    `db:"from_name"`
	FromEmail        string    `db:"from_email"`
	ReplyTo          string    `db:"reply_to"`
	IsVerified       bool      `db:"is_verified"`
	ProviderDomainID string    `db:"provider_domain_id"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// From returns the RFC 5322 sender for this domain.
func (d EmailDomain) From() string {
	if d.FromName == "" {
		return d.FromEmail
	}
	return fmt.Sprintf("%s <%s>", d.FromName, d.FromEmail)
}

// EmailTemplate is a reusable subject/content pair referenced by workflow steps
type EmailTemplate struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Name      string    `db:"name"`
	Subject   string    `db:"subject"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}
