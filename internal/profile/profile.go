// Package profile owns the user record and the derived dashboard
// block that rides on it: month-to-date totals, top consumers, the
// cost projection, and savings suggestions.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/storage"
)

// ErrNoUser is returned when no user profile exists yet.
var ErrNoUser = errors.New("no user profile")

// Consumer is one appliance's share of the usage log.
type Consumer struct {
	Name     string  `json:"name"`
	UsageKWh float64 `json:"usageKWh"`
}

// Dashboard is the derived summary block refreshed on a timer.
type Dashboard struct {
	TotalUsageKWh  float64    `json:"totalUsageKWh"`
	TotalCost      float64    `json:"totalCost"`
	ProjectedCost  float64    `json:"projectedCost"`
	TopConsumers   []Consumer `json:"topPowerConsumers"`
	Suggestions    []string   `json:"suggestions"`
	Confidence     string     `json:"projectionConfidence,omitempty"`
	LastCalculated time.Time  `json:"lastCalculated"`
}

// User is the household profile.
type User struct {
	UID           string    `json:"uid"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Location      string    `json:"location,omitempty"`
	CountryCode   string    `json:"countryCode,omitempty"`
	MonthlyBudget float64   `json:"monthlyBudget"`
	Dashboard     Dashboard `json:"dashboardData"`
}

// Store persists user profiles as a versioned snapshot. The system is
// single-household; Current returns the first profile.
type Store struct {
	snap *storage.Snapshot[User]
}

// NewStore creates a profile store over snap.
func NewStore(snap *storage.Snapshot[User]) *Store {
	return &Store{snap: snap}
}

// Current returns the household profile.
func (s *Store) Current(ctx context.Context) (User, error) {
	users, _, err := s.snap.Load()
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, ErrNoUser
	}
	return users[0], nil
}

// Put inserts or replaces a profile by UID.
func (s *Store) Put(ctx context.Context, u User) error {
	return s.snap.Update(func(users []User) ([]User, error) {
		for i := range users {
			if users[i].UID == u.UID {
				users[i] = u
				return users, nil
			}
		}
		return append(users, u), nil
	})
}

// SetDashboard replaces the dashboard block on the profile.
func (s *Store) SetDashboard(ctx context.Context, uid string, d Dashboard) error {
	return s.snap.Update(func(users []User) ([]User, error) {
		for i := range users {
			if users[i].UID == uid {
				users[i].Dashboard = d
				return users, nil
			}
		}
		return nil, ErrNoUser
	})
}
