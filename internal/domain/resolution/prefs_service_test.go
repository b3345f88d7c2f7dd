package resolution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatchly/internal/common"
)

func TestPreferenceService_GetCreatesDefaults(t *testing.T) {
	store := newMemPreferenceStore()
	svc := NewPreferenceService(store)

	pref, err := svc.Get(context.Background(), "u1", "d1", "sales_orders")
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.True(t, pref.Channels.InApp)
	assert.False(t, pref.Channels.Email)
	assert.Equal(t, FrequencyImmediate, pref.Frequency)
	assert.False(t, pref.QuietHours.Enabled)

	// The defaults were persisted, not just returned.
	stored, err := store.Get(context.Background(), "u1", "d1", "sales_orders")
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestPreferenceService_GetReturnsStoredRecord(t *testing.T) {
	store := newMemPreferenceStore()
	svc := NewPreferenceService(store)

	require.NoError(t, store.Upsert(context.Background(), &NotificationPreference{
		UserID: "u1", DealerID: "d1", Module: "sales_orders",
		Channels: ChannelToggles{Email: true},
	}))

	pref, err := svc.Get(context.Background(), "u1", "d1", "sales_orders")
	require.NoError(t, err)
	assert.True(t, pref.Channels.Email)
	assert.False(t, pref.Channels.InApp)
}

func TestPreferenceService_GetStoreFailure(t *testing.T) {
	store := newMemPreferenceStore()
	store.fail = true
	svc := NewPreferenceService(store)

	_, err := svc.Get(context.Background(), "u1", "d1", "sales_orders")
	assert.Error(t, err)
}

func TestPreferenceService_UpsertValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NotificationPreference)
		wantCfg bool
	}{
		{"missing user", func(p *NotificationPreference) { p.UserID = "" }, false},
		{"missing dealer", func(p *NotificationPreference) { p.DealerID = "" }, false},
		{"missing module", func(p *NotificationPreference) { p.Module = "" }, false},
		{"bad frequency", func(p *NotificationPreference) { p.Frequency = "weekly" }, false},
		{"quiet hours without timezone", func(p *NotificationPreference) {
			p.QuietHours = QuietHours{Enabled: true, StartTime: "22:00", EndTime: "08:00"}
		}, false},
		{"quiet hours bad clock", func(p *NotificationPreference) {
			p.QuietHours = QuietHours{Enabled: true, StartTime: "25:00", EndTime: "08:00", Timezone: "UTC"}
		}, false},
		{"quiet hours unknown timezone", func(p *NotificationPreference) {
			p.QuietHours = QuietHours{Enabled: true, StartTime: "22:00", EndTime: "08:00", Timezone: "Mars/Olympus"}
		}, false},
		{"negative rate limit", func(p *NotificationPreference) {
			p.RateLimits = map[Channel]RateLimit{ChannelEmail: {MaxPerHour: -1}}
		}, false},
		{"rate limit unknown channel", func(p *NotificationPreference) {
			p.RateLimits = map[Channel]RateLimit{"fax": {MaxPerHour: 1}}
		}, true},
		{"event pref unknown channel", func(p *NotificationPreference) {
			p.EventPreferences = map[string]EventPreference{
				"order_created": {Enabled: true, Channels: []Channel{"fax"}},
			}
		}, true},
	}

	svc := NewPreferenceService(newMemPreferenceStore())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pref := &NotificationPreference{
				UserID: "u1", DealerID: "d1", Module: "sales_orders",
				Channels: ChannelToggles{InApp: true},
			}
			tt.mutate(pref)

			_, err := svc.Upsert(context.Background(), pref)
			require.Error(t, err)

			if tt.wantCfg {
				var cfgErr *common.ConfigurationError
				assert.True(t, errors.As(err, &cfgErr), "want ConfigurationError, got %T", err)
			} else {
				var valErr *common.ValidationError
				assert.True(t, errors.As(err, &valErr), "want ValidationError, got %T", err)
			}
		})
	}
}

func TestPreferenceService_UpsertDefaultsFrequency(t *testing.T) {
	svc := NewPreferenceService(newMemPreferenceStore())

	pref, err := svc.Upsert(context.Background(), &NotificationPreference{
		UserID: "u1", DealerID: "d1", Module: "sales_orders",
	})
	require.NoError(t, err)
	assert.Equal(t, FrequencyImmediate, pref.Frequency)
}

func TestPreferenceService_UpsertLastWriterWins(t *testing.T) {
	store := newMemPreferenceStore()
	svc := NewPreferenceService(store)

	_, err := svc.Upsert(context.Background(), &NotificationPreference{
		UserID: "u1", DealerID: "d1", Module: "sales_orders",
		Channels: ChannelToggles{InApp: true, Email: true},
	})
	require.NoError(t, err)

	_, err = svc.Upsert(context.Background(), &NotificationPreference{
		UserID: "u1", DealerID: "d1", Module: "sales_orders",
		Channels: ChannelToggles{SMS: true},
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "u1", "d1", "sales_orders")
	require.NoError(t, err)
	assert.False(t, got.Channels.InApp)
	assert.False(t, got.Channels.Email)
	assert.True(t, got.Channels.SMS)
}
