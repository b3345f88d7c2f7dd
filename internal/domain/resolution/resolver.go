package resolution

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"dispatchly/internal/common"

	"golang.org/x/sync/errgroup"
)

// ResolverOptions tune the resolution pipeline.
type ResolverOptions struct {
	// OverrideThreshold is the rule priority at or above which a rule's
	// channels bypass the target user's preferences and quiet hours.
	OverrideThreshold int

	// DealerOverrides replaces the threshold for individual dealers.
	DealerOverrides map[string]int

	// Parallelism bounds the per-candidate fan-out within one Resolve call.
	Parallelism int

	// CollaboratorTimeout bounds each external lookup; a lookup that blows
	// it excludes the affected candidate rather than retrying.
	CollaboratorTimeout time.Duration
}

func (o ResolverOptions) thresholdFor(dealerID string) int {
	if t, ok := o.DealerOverrides[dealerID]; ok {
		return t
	}
	return o.OverrideThreshold
}

// Resolver decides which users an event reaches and over which channels. It
// reconciles dealer broadcast rules with personal preferences, applies
// quiet hours, and reserves rate-limit slots, in that order. Dropped
// channels are never restored by a later stage.
type Resolver struct {
	rules     *RuleService
	prefs     PreferenceStore
	quiet     *QuietHoursEvaluator
	limiter   *ChannelRateLimiter
	members   TenantMembershipProvider
	followers FollowerProvider
	opts      ResolverOptions
}

// NewResolver creates a new recipient resolver.
func NewResolver(
	rules *RuleService,
	prefs PreferenceStore,
	quiet *QuietHoursEvaluator,
	limiter *ChannelRateLimiter,
	members TenantMembershipProvider,
	followers FollowerProvider,
	opts ResolverOptions,
) *Resolver {
	if opts.OverrideThreshold <= 0 {
		opts.OverrideThreshold = 80
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 16
	}
	if opts.CollaboratorTimeout <= 0 {
		opts.CollaboratorTimeout = 5 * time.Second
	}
	return &Resolver{
		rules:     rules,
		prefs:     prefs,
		quiet:     quiet,
		limiter:   limiter,
		members:   members,
		followers: followers,
		opts:      opts,
	}
}

// candidate is one user under consideration, with the highest contributing
// rule priority per channel. fromRule distinguishes rule-targeted users
// from preference-fallback ones.
type candidate struct {
	userID   string
	channels map[Channel]int
	priority int
	fromRule bool
}

// Resolve runs the full pipeline for one event. Individual collaborator
// failures exclude the affected candidate (fail-closed) and are logged; the
// call itself fails only for contract violations or when the rule store is
// unreachable.
func (r *Resolver) Resolve(ctx context.Context, evt *EventContext) ([]*ResolvedRecipient, error) {
	if err := evt.Validate(); err != nil {
		return nil, err
	}

	rules, err := r.rules.MatchingRules(ctx, evt.DealerID, evt.Module, evt.Event, evt.Metadata)
	if err != nil {
		return nil, common.NewCollaboratorUnavailableError("rule store", err.Error())
	}

	cands := r.expandRules(ctx, evt, rules)
	r.addFallbackCandidates(ctx, evt, cands)

	ordered := make([]*candidate, 0, len(cands))
	for _, cand := range cands {
		ordered = append(ordered, cand)
	}

	threshold := r.opts.thresholdFor(evt.DealerID)
	results := make([]*ResolvedRecipient, len(ordered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)
	for i, cand := range ordered {
		g.Go(func() error {
			results[i] = r.gate(gctx, evt, cand, threshold)
			return nil
		})
	}
	// Candidate funcs never return errors; failures exclude candidates.
	_ = g.Wait()

	recipients := make([]*ResolvedRecipient, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			recipients = append(recipients, rec)
		}
	}

	sort.Slice(recipients, func(i, j int) bool {
		pi, pj := -1, -1
		if recipients[i].MatchedRulePriority != nil {
			pi = *recipients[i].MatchedRulePriority
		}
		if recipients[j].MatchedRulePriority != nil {
			pj = *recipients[j].MatchedRulePriority
		}
		if pi != pj {
			return pi > pj
		}
		return recipients[i].UserID < recipients[j].UserID
	})

	return recipients, nil
}

// expandRules resolves every matching rule's target user set and merges
// them: channel sets union across rules, each channel remembering the
// highest priority that contributed it.
func (r *Resolver) expandRules(ctx context.Context, evt *EventContext, rules []*DealerRule) map[string]*candidate {
	cands := make(map[string]*candidate)

	for _, rule := range rules {
		for userID := range r.expandTargets(ctx, evt, rule) {
			cand, ok := cands[userID]
			if !ok {
				cand = &candidate{
					userID:   userID,
					channels: make(map[Channel]int),
					priority: rule.Priority,
					fromRule: true,
				}
				cands[userID] = cand
			}
			if rule.Priority > cand.priority {
				cand.priority = rule.Priority
			}
			for _, c := range rule.Channels {
				if p, ok := cand.channels[c]; !ok || rule.Priority > p {
					cand.channels[c] = rule.Priority
				}
			}
		}
	}

	return cands
}

// expandTargets resolves one rule's target user set: explicit users, role
// members, the event's assignee and creator, and entity followers. Each
// lookup fails closed: a role or follower lookup error skips only the users
// it would have contributed.
func (r *Resolver) expandTargets(ctx context.Context, evt *EventContext, rule *DealerRule) map[string]struct{} {
	users := make(map[string]struct{})

	for _, u := range rule.Recipients.ExplicitUsers {
		users[u] = struct{}{}
	}

	for _, role := range rule.Recipients.Roles {
		cctx, cancel := context.WithTimeout(ctx, r.opts.CollaboratorTimeout)
		roleUsers, err := r.members.MembersWithRole(cctx, evt.DealerID, role)
		cancel()
		if err != nil {
			slog.Error("role lookup failed, skipping role",
				"dealer_id", evt.DealerID,
				"rule_id", rule.ID,
				"role", role,
				"error", err,
			)
			continue
		}
		for _, u := range roleUsers {
			users[u] = struct{}{}
		}
	}

	if rule.Recipients.IncludeAssignedUser {
		if u := evt.MetaString(MetaAssignedUser); u != "" {
			users[u] = struct{}{}
		}
	}

	if rule.Recipients.IncludeCreator {
		if u := evt.MetaString(MetaCreatedBy); u != "" {
			users[u] = struct{}{}
		}
	}

	if rule.Recipients.IncludeFollowers {
		entityType := evt.MetaString(MetaEntityType)
		entityID := evt.MetaString(MetaEntityID)
		if entityType != "" && entityID != "" {
			cctx, cancel := context.WithTimeout(ctx, r.opts.CollaboratorTimeout)
			followerUsers, err := r.followers.FollowersOf(cctx, entityType, entityID)
			cancel()
			if err != nil {
				slog.Error("follower lookup failed, skipping followers",
					"dealer_id", evt.DealerID,
					"rule_id", rule.ID,
					"entity_type", entityType,
					"entity_id", entityID,
					"error", err,
				)
			} else {
				for _, u := range followerUsers {
					users[u] = struct{}{}
				}
			}
		}
	}

	return users
}

// addFallbackCandidates enumerates tenant members not covered by any rule
// and adds them as preference-fallback candidates. Their opt-in is verified
// later in gate, where the preference record is loaded anyway. A membership
// enumeration failure skips the fallback path but keeps rule-derived
// recipients.
func (r *Resolver) addFallbackCandidates(ctx context.Context, evt *EventContext, cands map[string]*candidate) {
	cctx, cancel := context.WithTimeout(ctx, r.opts.CollaboratorTimeout)
	defer cancel()

	members, err := r.members.ListActiveMembers(cctx, evt.DealerID)
	if err != nil {
		slog.Error("membership enumeration failed, skipping preference fallback",
			"dealer_id", evt.DealerID,
			"event", evt.Event,
			"error", err,
		)
		return
	}

	for _, m := range members {
		if _, ok := cands[m.UserID]; ok {
			continue
		}
		cands[m.UserID] = &candidate{
			userID:   m.UserID,
			channels: make(map[Channel]int),
		}
	}
}

// gate runs steps 3–6 of the pipeline for one candidate: preference gating,
// quiet hours, and rate-limit reservation. A nil return excludes the user.
func (r *Resolver) gate(ctx context.Context, evt *EventContext, cand *candidate, threshold int) *ResolvedRecipient {
	pctx, cancel := context.WithTimeout(ctx, r.opts.CollaboratorTimeout)
	pref, err := r.prefs.Get(pctx, cand.userID, evt.DealerID, evt.Module)
	cancel()
	if err != nil {
		slog.Error("preference lookup failed, excluding candidate",
			"user_id", cand.userID,
			"dealer_id", evt.DealerID,
			"module", evt.Module,
			"error", err,
		)
		return nil
	}

	channels := r.gateChannels(evt, cand, pref, threshold)
	if len(channels) == 0 {
		return nil
	}

	channels = r.gateQuietHours(evt, cand, pref, channels, threshold)
	if len(channels) == 0 {
		return nil
	}

	channels = r.gateRateLimits(ctx, evt, cand, pref, channels)
	if len(channels) == 0 {
		return nil
	}

	rec := &ResolvedRecipient{
		UserID:   cand.userID,
		Channels: channels.Sorted(),
	}
	if cand.fromRule {
		p := cand.priority
		rec.MatchedRulePriority = &p
	}
	return rec
}

// gateChannels applies preference gating. Rule channels at or above the
// override threshold always survive. Below it, a stored preference record
// gates rule channels through the user's global toggles and an explicit
// per-event opt-out; users with no record receive rule channels untouched.
// Fallback candidates need an explicit opt-in for the event.
func (r *Resolver) gateChannels(evt *EventContext, cand *candidate, pref *NotificationPreference, threshold int) ChannelSet {
	if cand.fromRule {
		out := make(ChannelSet)
		var optedOut bool
		if pref != nil {
			if ep, ok := pref.EventPreferences[evt.Event]; ok && !ep.Enabled {
				optedOut = true
			}
		}
		for c, p := range cand.channels {
			if p >= threshold {
				out.Add(c)
				continue
			}
			if optedOut {
				continue
			}
			if pref != nil && !pref.Channels.Enabled(c) {
				continue
			}
			out.Add(c)
		}
		return out
	}

	// Preference fallback: explicit opt-in model. No record, or no enabled
	// per-event preference, means silence.
	if pref == nil {
		return nil
	}
	ep, ok := pref.EventPreferences[evt.Event]
	if !ok || !ep.Enabled {
		return nil
	}
	return NewChannelSet(ep.Channels...).Intersect(pref.Channels.EnabledSet())
}

// gateQuietHours drops channels for users currently inside their
// do-not-disturb window, keeping channels contributed by override-tier
// rules. An evaluation error (bad timezone in a legacy record) suppresses
// rather than delivers.
func (r *Resolver) gateQuietHours(evt *EventContext, cand *candidate, pref *NotificationPreference, channels ChannelSet, threshold int) ChannelSet {
	inQuiet, err := r.quiet.Evaluate(pref)
	if err != nil {
		slog.Warn("quiet-hours evaluation failed, suppressing",
			"user_id", cand.userID,
			"dealer_id", evt.DealerID,
			"module", evt.Module,
			"error", err,
		)
		inQuiet = true
	}
	if !inQuiet {
		return channels
	}

	out := make(ChannelSet)
	for c := range channels {
		if p, ok := cand.channels[c]; ok && p >= threshold {
			out.Add(c)
		}
	}
	return out
}

// gateRateLimits reserves a delivery slot per surviving channel. A denied
// or failed reservation drops that channel only.
func (r *Resolver) gateRateLimits(ctx context.Context, evt *EventContext, cand *candidate, pref *NotificationPreference, channels ChannelSet) ChannelSet {
	out := make(ChannelSet)
	for _, c := range channels.Sorted() {
		key := DeliveryKey{
			UserID:   cand.userID,
			DealerID: evt.DealerID,
			Module:   evt.Module,
			Channel:  c,
		}
		var limits RateLimit
		var hasLimits bool
		if pref != nil {
			limits, hasLimits = pref.RateLimits[c]
		}

		lctx, cancel := context.WithTimeout(ctx, r.opts.CollaboratorTimeout)
		allowed, err := r.limiter.CheckAndReserve(lctx, key, limits, hasLimits)
		cancel()
		if err != nil {
			slog.Error("delivery ledger failed, dropping channel",
				"user_id", cand.userID,
				"dealer_id", evt.DealerID,
				"module", evt.Module,
				"channel", c,
				"error", err,
			)
			continue
		}
		if !allowed {
			slog.Warn("rate limit reached, dropping channel",
				"user_id", cand.userID,
				"dealer_id", evt.DealerID,
				"module", evt.Module,
				"channel", c,
			)
			continue
		}
		out.Add(c)
	}
	return out
}
