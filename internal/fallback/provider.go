// Package fallback produces the plausible substitute data served while the
// backend is unconfigured, down, or deliberately bypassed.
//
// Nothing here is persisted remotely. Records carry "demo-" identifiers so
// they can never be mistaken for backend rows.
package fallback

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/match"
)

const (
	DemoEmail    = "demo@edublin.com.br"
	DemoPassword = "demo123"
	DemoName     = "Usuário Demo"
	DemoUserID   = "demo-user-default"

	demoUserPrefix = "demo-user"
)

// Credentials is the fixed demo identity accepted in fallback mode.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Provider generates fallback records. It is safe for concurrent use.
type Provider struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// Option customises a Provider.
type Option func(*Provider)

// WithRand makes generation reproducible.
func WithRand(r *rand.Rand) Option {
	return func(p *Provider) { p.rng = r }
}

// WithClock fixes the timestamps stamped on generated records.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func New(opts ...Option) *Provider {
	p := &Provider{now: time.Now}
	for _, o := range opts {
		o(p)
	}
	if p.rng == nil {
		seed := uint64(time.Now().UnixNano())
		p.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return p
}

// GenerateProfiles returns count synthetic exchange students sorted by
// score, best first.
func (p *Provider) GenerateProfiles(count int) []db.Profile {
	if count <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]db.Profile, 0, count)
	for i := 0; i < count; i++ {
		dest := destinations[p.rng.IntN(len(destinations))]

		year := "2025"
		if p.rng.Float64() > 0.5 {
			year = "2026"
		}

		var airline string
		if p.rng.Float64() > 0.3 {
			airline = p.pick(airlines)
		}

		score := p.rng.IntN(40) + 60
		out = append(out, db.Profile{
			ID:                 fmt.Sprintf("demo-%d", i+1),
			Name:               names[i%len(names)],
			Age:                p.rng.IntN(10) + 18,
			OriginCity:         p.pick(originCities),
			DestinationCountry: dest.country,
			DestinationCity:    p.pick(dest.cities),
			School:             p.pick(schools),
			YearMonth:          fmt.Sprintf("%s-%02d", year, p.rng.IntN(12)+1),
			Airline:            airline,
			WhatsAppOptIn:      p.rng.Float64() > 0.2,
			Verified:           p.rng.Float64() > 0.3,
			Premium:            p.rng.Float64() > 0.8,
			Bio:                p.pick(bios),
			Interests:          p.sample(interests, 3, 8),
			BaseScore:          score,
			Score:              score,
		})
	}

	sortByScore(out)
	return out
}

// FilterProfiles keeps profiles whose destination fits c and rescores them.
// The input is not modified. Scores derive from BaseScore, so filtering
// the output again with the same criteria yields the same order.
func FilterProfiles(profiles []db.Profile, c match.Criteria) []db.Profile {
	out := make([]db.Profile, 0, len(profiles))
	for _, pr := range profiles {
		if !match.MatchesDestination(c, pr.DestinationCountry, pr.DestinationCity) {
			continue
		}
		pr.Interests = slices.Clone(pr.Interests)
		pr.Score = match.Score(pr.BaseScore, c, match.Candidate{
			OriginCity: pr.OriginCity,
			School:     pr.School,
			Airline:    pr.Airline,
			YearMonth:  pr.YearMonth,
		}, match.Demo)
		out = append(out, pr)
	}
	sortByScore(out)
	return out
}

func sortByScore(ps []db.Profile) {
	slices.SortStableFunc(ps, func(a, b db.Profile) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// DemoUser is the fixed demo identity.
func (p *Provider) DemoUser() db.User {
	now := p.now()
	age := 22
	return db.User{
		ID:            DemoUserID,
		Email:         DemoEmail,
		Name:          DemoName,
		Age:           &age,
		Phone:         "+55 11 99999-9999",
		OriginCity:    "São Paulo, SP",
		WhatsAppOptIn: false,
		Interests:     []string{"Viagens", "Idiomas", "Tecnologia", "Fotografia"},
		Verified:      true,
		Premium:       false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func DemoCredentials() Credentials {
	return Credentials{Email: DemoEmail, Password: DemoPassword, Name: DemoName}
}

// UserFromSignUp builds the local user stored by a fallback sign-up.
// Local users are verified on creation.
func (p *Provider) UserFromSignUp(in db.SignUpData) db.User {
	now := p.now()
	return db.User{
		ID:        demoUserPrefix + "-" + uuid.NewString(),
		Email:     in.Email,
		Name:      in.Name,
		Age:       in.Age,
		Phone:     in.Phone,
		Interests: []string{},
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MinimalUser builds a profile from an auth identity whose profile row
// could not be read. email is used when the identity carries none.
func (p *Provider) MinimalUser(au *db.AuthUser, email string) db.User {
	now := p.now()
	u := db.User{
		ID:        "offline-user",
		Email:     email,
		Name:      "Usuário",
		Interests: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if u.Email == "" {
		u.Email = "user@example.com"
	}
	if au == nil {
		return u
	}

	if au.ID != "" {
		u.ID = au.ID
	}
	if au.Email != "" {
		u.Email = au.Email
	}
	if name := au.Metadata["name"]; name != "" {
		u.Name = name
	}
	if age, err := strconv.Atoi(au.Metadata["age"]); err == nil {
		u.Age = &age
	}
	u.Phone = au.Metadata["phone"]
	u.Verified = au.EmailConfirmedAt != nil
	if !au.CreatedAt.IsZero() {
		u.CreatedAt = au.CreatedAt
	}
	if !au.UpdatedAt.IsZero() {
		u.UpdatedAt = au.UpdatedAt
	}
	return u
}

// IsDemoUser reports whether id belongs to a locally created user.
func IsDemoUser(id string) bool {
	return strings.HasPrefix(id, demoUserPrefix)
}

func (p *Provider) pick(list []string) string {
	return list[p.rng.IntN(len(list))]
}

// sample returns between lo and hi distinct entries of list.
func (p *Provider) sample(list []string, lo, hi int) []string {
	n := lo + p.rng.IntN(hi-lo+1)
	idx := p.rng.Perm(len(list))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = list[j]
	}
	return out
}
