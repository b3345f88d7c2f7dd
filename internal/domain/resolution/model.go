package resolution

import (
	"sort"
	"time"

	"dispatchly/internal/common"
)

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// validChannels is the set of all recognized delivery channels.
var validChannels = map[Channel]bool{
	ChannelInApp: true,
	ChannelEmail: true,
	ChannelSMS:   true,
	ChannelPush:  true,
}

// IsValidChannel checks whether a delivery channel is recognized.
func IsValidChannel(c Channel) bool {
	return validChannels[c]
}

// ChannelSet is a set of delivery channels.
type ChannelSet map[Channel]struct{}

// NewChannelSet builds a set from a channel list.
func NewChannelSet(channels ...Channel) ChannelSet {
	s := make(ChannelSet, len(channels))
	for _, c := range channels {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts a channel into the set.
func (s ChannelSet) Add(c Channel) {
	s[c] = struct{}{}
}

// Has reports whether the set contains a channel.
func (s ChannelSet) Has(c Channel) bool {
	_, ok := s[c]
	return ok
}

// Union merges another set into this one.
func (s ChannelSet) Union(other ChannelSet) {
	for c := range other {
		s[c] = struct{}{}
	}
}

// Intersect returns a new set containing channels present in both sets.
func (s ChannelSet) Intersect(other ChannelSet) ChannelSet {
	out := make(ChannelSet)
	for c := range s {
		if other.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

// Sorted returns the set's channels as a sorted slice, for stable output.
func (s ChannelSet) Sorted() []Channel {
	out := make([]Channel, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Metadata keys the resolution pipeline assigns meaning to. Everything else
// in event metadata is opaque business data seen only by rule conditions.
const (
	MetaAssignedUser = "assigned_user_id"
	MetaCreatedBy    = "created_by"
	MetaEntityType   = "entity_type"
	MetaEntityID     = "entity_id"
)

// EventContext describes a business event occurring for one dealer within
// one functional module. It is transient: never persisted by the resolver
// itself (the async intake keeps its own record, see ResolutionLog).
type EventContext struct {
	DealerID  string         `json:"dealer_id" binding:"required"`
	Module    string         `json:"module" binding:"required"`
	Event     string         `json:"event" binding:"required"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Validate checks the event's required fields. A nil or incomplete context is
// a caller contract violation, the one condition Resolve refuses outright.
func (e *EventContext) Validate() error {
	if e == nil {
		return common.NewValidationError("event context is required")
	}
	if e.DealerID == "" {
		return common.NewValidationError("dealer_id is required")
	}
	if e.Module == "" {
		return common.NewValidationError("module is required")
	}
	if e.Event == "" {
		return common.NewValidationError("event is required")
	}
	return nil
}

// MetaString returns a metadata value as a string, or "" when the key is
// absent or not a string.
func (e *EventContext) MetaString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if s, ok := e.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// ResolvedRecipient is one user the event must be delivered to, with the
// channels that survived preference, quiet-hours, and rate-limit gating.
// A nil MatchedRulePriority means the user was reached only via their
// personal preference fallback, never via a dealer rule.
type ResolvedRecipient struct {
	UserID              string    `json:"user_id"`
	Channels            []Channel `json:"channels"`
	MatchedRulePriority *int      `json:"matched_rule_priority"`
}

// ResolveResponse wraps the recipient list returned by the resolve API.
type ResolveResponse struct {
	Recipients []*ResolvedRecipient `json:"recipients"`
	Count      int                  `json:"count"`
}
