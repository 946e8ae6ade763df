package alerting

import (
	"slices"
	"time"
)

// ChannelType identifies a delivery channel in the registry.
type ChannelType string

const (
	ChannelEmail     ChannelType = "email"
	ChannelSMS       ChannelType = "sms"
	ChannelWhatsApp  ChannelType = "whatsapp"
	ChannelTelegram  ChannelType = "telegram"
	ChannelSlack     ChannelType = "slack"
	ChannelDashboard ChannelType = "dashboard"
)

// Urgency drives channel selection and the default tone.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Urgencies lists every accepted urgency, lowest first.
var Urgencies = []Urgency{UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical}

type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneUrgent       Tone = "urgent"
)

// Format tells the engine how much content a channel can carry.
type Format string

const (
	FormatLong  Format = "long"
	FormatShort Format = "short"
)

// DefaultMaxLength caps short-format content when a channel sets no limit.
const DefaultMaxLength = 1500

// DefaultSendTimeout bounds a transport call when a channel sets no timeout.
const DefaultSendTimeout = 15 * time.Second

type RateLimits struct {
	MaxPerHour      int `yaml:"max_per_hour" json:"max_per_hour"`
	MaxPerDay       int `yaml:"max_per_day" json:"max_per_day"`
	CooldownMinutes int `yaml:"cooldown_minutes" json:"cooldown_minutes"`
}

// Channel is a registry entry. Values are immutable once the registry is built.
type Channel struct {
	Type            ChannelType   `yaml:"type" json:"type"`
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Priority        int           `yaml:"priority" json:"priority"`
	RateLimits      RateLimits    `yaml:"rate_limits" json:"rate_limits"`
	Format          Format        `yaml:"format" json:"format"`
	MaxLength       int           `yaml:"max_length" json:"max_length,omitempty"`
	AlwaysAvailable bool          `yaml:"always_available" json:"always_available,omitempty"`
	SendTimeout     time.Duration `yaml:"send_timeout" json:"send_timeout,omitempty"`
}

func (c Channel) IsShort() bool {
	return c.Format == FormatShort
}

// Limit returns the short-format length cap.
func (c Channel) Limit() int {
	if c.MaxLength > 0 {
		return c.MaxLength
	}
	return DefaultMaxLength
}

func (c Channel) Timeout() time.Duration {
	if c.SendTimeout > 0 {
		return c.SendTimeout
	}
	return DefaultSendTimeout
}

type Personalization struct {
	Tone                   Tone `yaml:"tone" json:"tone,omitempty"`
	IncludeContext         bool `yaml:"include_context" json:"include_context,omitempty"`
	IncludeRecommendations bool `yaml:"include_recommendations" json:"include_recommendations,omitempty"`
}

// Template is a stored message blueprint with {{key}} placeholders.
type Template struct {
	ID                string          `yaml:"id" json:"id"`
	ChannelHint       ChannelType     `yaml:"channel_hint" json:"channel_hint,omitempty"`
	Subject           string          `yaml:"subject" json:"subject"`
	Body              string          `yaml:"body" json:"body"`
	RequiredVariables []string        `yaml:"required_variables" json:"required_variables,omitempty"`
	Urgency           Urgency         `yaml:"urgency" json:"urgency"`
	Personalization   Personalization `yaml:"personalization" json:"personalization"`
}

// Recipient is the profile the directory returns for a recipient id.
type Recipient struct {
	ID                 string                 `json:"id"`
	DisplayName        string                 `json:"display_name"`
	Timezone           string                 `json:"timezone,omitempty"`
	Contacts           map[ChannelType]string `json:"contacts,omitempty"`
	PreferredChannels  []ChannelType          `json:"preferred_channels,omitempty"`
	Tone               Tone                   `json:"tone,omitempty"`
	PerformanceSummary string                 `json:"performance_summary,omitempty"`
}

// Contact returns the address used to reach the recipient on ch.
func (r Recipient) Contact(ch ChannelType) string {
	return r.Contacts[ch]
}

// Location resolves the recipient timezone, defaulting to UTC.
func (r Recipient) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type AlertStatus string

const (
	AlertPending    AlertStatus = "pending"
	AlertProcessing AlertStatus = "processing"
	AlertCompleted  AlertStatus = "completed"
)

// Alert is one request to notify a recipient. Variables and Channels do not
// change after creation; Status only moves forward.
type Alert struct {
	ID            string         `json:"id"`
	RecipientID   string         `json:"recipient_id"`
	TemplateID    string         `json:"template_id"`
	Variables     map[string]any `json:"variables,omitempty"`
	Channels      []ChannelType  `json:"channels"`
	Urgency       Urgency        `json:"urgency"`
	BroadcastMode bool           `json:"broadcast_mode"`
	SendToAll     bool           `json:"send_to_all"`
	ScheduledAt   time.Time      `json:"scheduled_at"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	Status        AlertStatus    `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ExpiredAt reports whether the alert can no longer be delivered at now.
func (a Alert) ExpiredAt(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

func (a Alert) HasChannel(ch ChannelType) bool {
	return slices.Contains(a.Channels, ch)
}

type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptSent      AttemptStatus = "sent"
	AttemptDelivered AttemptStatus = "delivered"
	AttemptOpened    AttemptStatus = "opened"
	AttemptClicked   AttemptStatus = "clicked"
	AttemptFailed    AttemptStatus = "failed"
)

// DeliveryAttempt is the ledger row for one channel actually tried.
// Sequence is the channel's position in the alert's plan and orders the
// attempts of one alert.
type DeliveryAttempt struct {
	ID                string        `json:"id"`
	AlertID           string        `json:"alert_id"`
	RecipientID       string        `json:"recipient_id"`
	Channel           ChannelType   `json:"channel"`
	Sequence          int           `json:"sequence"`
	Status            AttemptStatus `json:"status"`
	ProviderMessageID string        `json:"provider_message_id,omitempty"`
	FailureReason     string        `json:"failure_reason,omitempty"`
	SentAt            *time.Time    `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time    `json:"delivered_at,omitempty"`
	OpenedAt          *time.Time    `json:"opened_at,omitempty"`
	ClickedAt         *time.Time    `json:"clicked_at,omitempty"`
	FailedAt          *time.Time    `json:"failed_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Content is the rendered, channel-formatted message.
type Content struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
	// Degraded is set when enrichment failed and the raw template was used.
	Degraded bool `json:"degraded,omitempty"`
}

func ptr[T any](v T) *T { return &v }
