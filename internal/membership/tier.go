package membership

import (
	"strings"
	"sync"
)

// Membership tiers, lowest to highest.
const (
	TierNone     = "none"
	TierGold     = "gold"
	TierPlatinum = "platinum"
	TierDiamond  = "diamond"
)

const subStatusActive = "active"

// Subscription mirrors the membership service payload: a status plus the
// free-text plan description under the mango key.
type Subscription struct {
	Status string `json:"status"`
	Mango  struct {
		Description string `json:"description"`
	} `json:"mango"`
}

// Profile is what the membership service returns for a user. Subscriptions
// may be nil when the fetch failed or the service has no record.
type Profile struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Badges        []string       `json:"badges"`
}

// hasActivePlan reports whether any subscription mentioning the plan keyword
// is currently active.
func hasActivePlan(subs []Subscription, keyword string) (present, active bool) {
	for _, s := range subs {
		if !strings.Contains(strings.ToLower(s.Mango.Description), keyword) {
			continue
		}
		present = true
		if strings.EqualFold(strings.TrimSpace(s.Status), subStatusActive) {
			return true, true
		}
	}
	return present, false
}

// ResolveTier derives the tier from the subscription list.
//
// Tiers are cumulative plans: a diamond member still holds the gold and
// platinum plans. Each rung is therefore a gate: a higher tier is only
// honored when its prerequisite lower tier is itself active. A dangling
// active "diamond membership" with a lapsed gold plan resolves to none.
func ResolveTier(subs []Subscription) string {
	if _, active := hasActivePlan(subs, "gold membership"); !active {
		return TierNone
	}
	if _, active := hasActivePlan(subs, "platinum membership"); !active {
		return TierGold
	}
	if _, active := hasActivePlan(subs, "diamond membership"); !active {
		return TierPlatinum
	}
	return TierDiamond
}

// ResolveTierFromBadges is the fallback when subscription data is
// unavailable: badge names are scanned for tier keywords, highest first.
func ResolveTierFromBadges(badges []string) string {
	for _, keyword := range []string{TierDiamond, TierPlatinum, TierGold} {
		for _, b := range badges {
			if strings.Contains(strings.ToLower(b), keyword) {
				return keyword
			}
		}
	}
	return TierNone
}

// RedemptionPercent is the fraction of the tax-exclusive subtotal that may
// be covered by Angel Coins at this tier.
func RedemptionPercent(tier string) float64 {
	switch tier {
	case TierGold:
		return 0.05
	case TierPlatinum:
		return 0.10
	case TierDiamond:
		return 0.20
	default:
		return 0
	}
}

// DiscountPercent is the flat tier discount. Structurally present but only
// applied when the tier-discount feature flag is on.
func DiscountPercent(tier string) float64 {
	switch tier {
	case TierGold:
		return 0.03
	case TierPlatinum:
		return 0.05
	case TierDiamond:
		return 0.10
	default:
		return 0
	}
}

// Resolver derives tiers from profiles, honoring an administrative override
// that pins the tier until explicitly cleared.
type Resolver struct {
	mu       sync.RWMutex
	override map[string]string // userID -> pinned tier
}

func NewResolver() *Resolver {
	return &Resolver{override: make(map[string]string)}
}

// Pin fixes the user's tier, bypassing recomputation.
func (r *Resolver) Pin(userID, tier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override[userID] = tier
}

// Clear removes a pinned tier.
func (r *Resolver) Clear(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.override, userID)
}

// Resolve returns the user's tier. Order of precedence: pinned override,
// subscription gate, badge fallback. A nil profile degrades to none.
func (r *Resolver) Resolve(userID string, p *Profile) string {
	r.mu.RLock()
	pinned, ok := r.override[userID]
	r.mu.RUnlock()
	if ok {
		return pinned
	}
	if p == nil {
		return TierNone
	}
	if p.Subscriptions != nil {
		return ResolveTier(p.Subscriptions)
	}
	return ResolveTierFromBadges(p.Badges)
}
