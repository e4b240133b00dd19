package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cart-order-service/internal/membership"

	"go.uber.org/zap"
)

// ProfileService fetches membership data (subscriptions and badges) from
// the membership service. A failed fetch degrades to a nil profile, which
// the tier resolver turns into the badge fallback or tier none; membership
// lookup problems must never block checkout.
type ProfileService struct {
	profileURL string
	client     *http.Client
	log        *zap.Logger
}

func NewProfileService(profileURL string, log *zap.Logger) *ProfileService {
	return &ProfileService{
		profileURL: profileURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		log: log,
	}
}

// Fetch returns the user's membership profile, or nil when unavailable.
func (p *ProfileService) Fetch(ctx context.Context, userID string) *membership.Profile {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/users/%s/memberships", p.profileURL, userID), nil)
	if err != nil {
		return nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn("membership profile fetch failed",
			zap.String("user", userID), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var profile membership.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		p.log.Warn("membership profile decode failed",
			zap.String("user", userID), zap.Error(err))
		return nil
	}
	return &profile
}
