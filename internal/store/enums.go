package store

// CampaignStatus represents campaign lifecycle states
type CampaignStatus string

const (
	CampaignStatusDraft   CampaignStatus = "draft"
	CampaignStatusSending CampaignStatus = "sending"
	CampaignStatusSent    CampaignStatus = "sent"
	CampaignStatusFailed  CampaignStatus = "failed"
)

// ExecutionStatus represents workflow execution lifecycle states
type ExecutionStatus string

const (
	ExecutionStatusInProgress ExecutionStatus = "in_progress"
	ExecutionStatusPaused     ExecutionStatus = "paused"
	ExecutionStatusCompleted  ExecutionStatus = "completed"
	ExecutionStatusFailed     ExecutionStatus = "failed"
	ExecutionStatusOrphaned   ExecutionStatus = "orphaned"
)

// RecipientStatus represents per-recipient delivery states
type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "en_attente"
	RecipientStatusSent    RecipientStatus = "envoye"
	RecipientStatusError   RecipientStatus = "erreur"
)

// StepType represents workflow step action types
type StepType string

const (
	StepTypeSendEmail StepType = "send_email"
)
