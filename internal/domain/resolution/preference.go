package resolution

import (
	"fmt"
	"time"

	"dispatchly/internal/common"
)

// Frequency controls how often a user wants to hear about a module's events.
type Frequency string

const (
	FrequencyImmediate    Frequency = "immediate"
	FrequencyHourlyDigest Frequency = "hourly_digest"
	FrequencyDailyDigest  Frequency = "daily_digest"
)

var validFrequencies = map[Frequency]bool{
	FrequencyImmediate:    true,
	FrequencyHourlyDigest: true,
	FrequencyDailyDigest:  true,
}

// ChannelToggles are a user's global per-channel switches for one module.
type ChannelToggles struct {
	InApp bool `json:"in_app"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

// Enabled reports whether a channel is globally switched on.
func (t ChannelToggles) Enabled(c Channel) bool {
	switch c {
	case ChannelInApp:
		return t.InApp
	case ChannelEmail:
		return t.Email
	case ChannelSMS:
		return t.SMS
	case ChannelPush:
		return t.Push
	default:
		return false
	}
}

// EnabledSet returns the globally-enabled channels as a set.
func (t ChannelToggles) EnabledSet() ChannelSet {
	s := make(ChannelSet)
	for c := range validChannels {
		if t.Enabled(c) {
			s.Add(c)
		}
	}
	return s
}

// EventPreference is a user's explicit opt-in (or opt-out) for one event.
type EventPreference struct {
	Enabled  bool      `json:"enabled"`
	Channels []Channel `json:"channels"`
}

// QuietHours is a per-user do-not-disturb window, evaluated in the user's
// own timezone. Start and end are wall-clock "HH:MM"; a window with
// start == end suppresses around the clock.
type QuietHours struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

// RateLimit caps deliveries on one channel over trailing windows.
type RateLimit struct {
	MaxPerHour int `json:"max_per_hour"`
	MaxPerDay  int `json:"max_per_day"`
}

// NotificationPreference is a user's notification settings for one dealer
// and module. At most one record exists per (user, dealer, module); records
// are never deleted, only deprecated at the module-membership level.
type NotificationPreference struct {
	UserID           string                     `json:"user_id"`
	DealerID         string                     `json:"dealer_id"`
	Module           string                     `json:"module"`
	Channels         ChannelToggles             `json:"channels"`
	EventPreferences map[string]EventPreference `json:"event_preferences,omitempty"`
	QuietHours       QuietHours                 `json:"quiet_hours"`
	RateLimits       map[Channel]RateLimit      `json:"rate_limits,omitempty"`
	Frequency        Frequency                  `json:"frequency"`
	PhoneOverride    string                     `json:"phone_override,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// DefaultPreference builds the conservative defaults applied when a user has
// no stored record: in-app only, nothing opted in, no quiet hours, no caps.
func DefaultPreference(userID, dealerID, module string) *NotificationPreference {
	return &NotificationPreference{
		UserID:    userID,
		DealerID:  dealerID,
		Module:    module,
		Channels:  ChannelToggles{InApp: true},
		Frequency: FrequencyImmediate,
	}
}

// Validate checks a preference record before it is written. Malformed
// records are rejected here so resolution never sees them.
func (p *NotificationPreference) Validate() error {
	if p.UserID == "" {
		return common.NewValidationError("user_id is required")
	}
	if p.DealerID == "" {
		return common.NewValidationError("dealer_id is required")
	}
	if p.Module == "" {
		return common.NewValidationError("module is required")
	}

	if p.Frequency == "" {
		p.Frequency = FrequencyImmediate
	}
	if !validFrequencies[p.Frequency] {
		return common.NewValidationError(fmt.Sprintf("unsupported frequency: %s", p.Frequency))
	}

	for event, ep := range p.EventPreferences {
		for _, c := range ep.Channels {
			if !IsValidChannel(c) {
				return common.NewConfigurationError(fmt.Sprintf("event preference %q references unsupported channel: %s", event, c))
			}
		}
	}

	for c, rl := range p.RateLimits {
		if !IsValidChannel(c) {
			return common.NewConfigurationError(fmt.Sprintf("rate limit references unsupported channel: %s", c))
		}
		if rl.MaxPerHour < 0 || rl.MaxPerDay < 0 {
			return common.NewValidationError("rate limits must not be negative")
		}
	}

	if p.QuietHours.Enabled {
		if p.QuietHours.Timezone == "" {
			return common.NewValidationError("quiet_hours.timezone is required when quiet hours are enabled")
		}
		if _, err := parseClock(p.QuietHours.StartTime); err != nil {
			return common.NewValidationError("quiet_hours.start_time must be HH:MM")
		}
		if _, err := parseClock(p.QuietHours.EndTime); err != nil {
			return common.NewValidationError("quiet_hours.end_time must be HH:MM")
		}
		if _, err := time.LoadLocation(p.QuietHours.Timezone); err != nil {
			return common.NewValidationError(fmt.Sprintf("unknown quiet_hours.timezone: %s", p.QuietHours.Timezone))
		}
	}

	return nil
}
