package fallback

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/match"
)

func (p *Provider) Stats() Stats { return stats }

func (p *Provider) Tips() []Tip { return slices.Clone(tips) }

func (p *Provider) SuccessMessages() []string { return slices.Clone(successMessages) }

// UserVariations are ready-made personas for trying the sign-up flow.
func (p *Provider) UserVariations() []db.SignUpData {
	age := func(n int) *int { return &n }
	return []db.SignUpData{
		{Email: "ana.silva@email.com", Name: "Ana Silva", Age: age(23), Phone: "+55 11 98765-4321"},
		{Email: "bruno.santos@email.com", Name: "Bruno Santos", Age: age(25), Phone: "+55 21 99876-5432"},
		{Email: "carla.oliveira@email.com", Name: "Carla Oliveira", Age: age(21), Phone: "+55 31 97654-3210"},
	}
}

func (p *Provider) PopularDestinations() []db.Destination {
	return []db.Destination{
		{Country: "Canadá", City: "Toronto", Count: 45},
		{Country: "Estados Unidos", City: "Nova York", Count: 38},
		{Country: "Reino Unido", City: "Londres", Count: 32},
		{Country: "Austrália", City: "Sydney", Count: 28},
		{Country: "Irlanda", City: "Dublin", Count: 25},
		{Country: "França", City: "Paris", Count: 22},
		{Country: "Alemanha", City: "Berlim", Count: 19},
		{Country: "Espanha", City: "Madri", Count: 16},
	}
}

// SearchHistory returns two saved searches from the last days.
func (p *Provider) SearchHistory(userID string) []db.SearchCriteria {
	now := p.now()
	day := 24 * time.Hour
	return []db.SearchCriteria{
		{
			ID: "demo-history-1", UserID: userID,
			OriginCity: "São Paulo, SP", DestinationCountry: "Canadá", DestinationCity: "Toronto",
			School: "University of Toronto", Airline: "Air Canada", YearMonth: "2026-03",
			CreatedAt: now.Add(-day), UpdatedAt: now.Add(-day),
		},
		{
			ID: "demo-history-2", UserID: userID,
			OriginCity: "São Paulo, SP", DestinationCountry: "Reino Unido", DestinationCity: "Londres",
			School: "London School of Economics", YearMonth: "2026-01",
			CreatedAt: now.Add(-2 * day), UpdatedAt: now.Add(-2 * day),
		},
	}
}

// ContactRequests returns one pending request addressed to userID.
func (p *Provider) ContactRequests(userID string) []db.ContactRequest {
	at := p.now().Add(-24 * time.Hour)
	return []db.ContactRequest{{
		ID:               "demo-contact-1",
		RequesterID:      "demo-user-1",
		TargetID:         userID,
		SearchCriteriaID: "demo-criteria-1",
		Message:          "Olá! Vi que você também vai para Toronto. Gostaria de conversar sobre o intercâmbio!",
		Status:           db.ContactPending,
		CreatedAt:        at,
		UpdatedAt:        at,
	}}
}

// SavedCriteria is what a fallback save returns: the criteria echoed back
// with a local id.
func (p *Provider) SavedCriteria(userID string, c match.Criteria) db.SearchCriteria {
	now := p.now()
	return db.SearchCriteria{
		ID:                 "demo-search-" + uuid.NewString(),
		UserID:             userID,
		OriginCity:         c.OriginCity,
		DestinationCountry: c.DestinationCountry,
		DestinationCity:    c.DestinationCity,
		School:             c.School,
		Airline:            c.Airline,
		YearMonth:          c.YearMonth,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// ContactRequest is the pending request a fallback send returns.
func (p *Provider) ContactRequest(requesterID, targetID, criteriaID, message string) db.ContactRequest {
	now := p.now()
	return db.ContactRequest{
		ID:               "demo-contact-" + uuid.NewString(),
		RequesterID:      requesterID,
		TargetID:         targetID,
		SearchCriteriaID: criteriaID,
		Message:          message,
		Status:           db.ContactPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Matches converts generated profiles into match records with contact data.
func (p *Provider) Matches(count int) []db.Match {
	profiles := p.GenerateProfiles(count)

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]db.Match, 0, len(profiles))
	for _, pr := range profiles {
		age := pr.Age
		u := db.User{
			ID:            pr.ID,
			Name:          pr.Name,
			Age:           &age,
			OriginCity:    pr.OriginCity,
			PhotoURL:      p.pick(photos),
			Verified:      pr.Verified,
			Premium:       pr.Premium,
			Interests:     pr.Interests,
			WhatsAppOptIn: pr.WhatsAppOptIn,
			Reports:       p.rng.IntN(3),
		}
		if pr.WhatsAppOptIn {
			u.WhatsApp = fmt.Sprintf("+5511%d", p.rng.IntN(900000000)+100000000)
		}
		out = append(out, db.Match{
			User: u,
			Criteria: db.SearchCriteria{
				ID:                 "demo-criteria-" + pr.ID,
				UserID:             pr.ID,
				OriginCity:         pr.OriginCity,
				DestinationCountry: pr.DestinationCountry,
				DestinationCity:    pr.DestinationCity,
				School:             pr.School,
				Airline:            pr.Airline,
				YearMonth:          pr.YearMonth,
			},
			Compatibility: pr.Score,
		})
	}
	return out
}
