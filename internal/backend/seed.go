package backend

import (
	"context"
	"fmt"

	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/fallback"
)

// SeedPassword is shared by every seeded persona except the demo account.
const SeedPassword = "password"

// Seed resets the backend and populates it with demo data.
//
// Behavior:
//  1. Clears every table.
//  2. Creates the demo account and the sign-up personas, all confirmed.
//  3. Creates `profiles` generated students, each with one saved search,
//     so remote matching has something to find.
func Seed(ctx context.Context, s *GormStore, p *fallback.Provider, profiles int) error {
	// --- Fresh start ---
	wipe := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range db.All() {
		if err := wipe.Delete(model).Error; err != nil {
			return fmt.Errorf("failed to clear %T: %w", model, err)
		}
	}
	s.log.Info("cleared existing data")

	// --- Accounts ---
	demo := p.DemoUser()
	creds := fallback.DemoCredentials()
	if err := s.seedAccount(ctx, demo, creds.Password); err != nil {
		return err
	}
	for _, v := range p.UserVariations() {
		u := db.User{Email: v.Email, Name: v.Name, Age: v.Age, Phone: v.Phone, WhatsApp: v.Phone, Verified: true}
		if err := s.seedAccount(ctx, u, SeedPassword); err != nil {
			return err
		}
	}
	s.log.Info("seeded accounts", "count", 1+len(p.UserVariations()))

	// --- Generated students with saved searches ---
	for i, prof := range p.GenerateProfiles(profiles) {
		age := prof.Age
		u := db.User{
			ID:            fmt.Sprintf("seed-%03d", i+1),
			Email:         fmt.Sprintf("%s.%d@seed.edublin.com.br", slug.Make(prof.Name), i+1),
			Name:          prof.Name,
			Age:           &age,
			OriginCity:    prof.OriginCity,
			WhatsAppOptIn: prof.WhatsAppOptIn,
			PhotoURL:      prof.PhotoURL,
			Interests:     prof.Interests,
			Verified:      prof.Verified,
			Premium:       prof.Premium,
		}
		if err := s.users.Insert(ctx, &u); err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		c := db.SearchCriteria{
			ID:                 fmt.Sprintf("seed-search-%03d", i+1),
			UserID:             u.ID,
			OriginCity:         prof.OriginCity,
			DestinationCountry: prof.DestinationCountry,
			DestinationCity:    prof.DestinationCity,
			School:             prof.School,
			Airline:            prof.Airline,
			YearMonth:          prof.YearMonth,
		}
		if err := s.criteria.Insert(ctx, &c); err != nil {
			return fmt.Errorf("failed to seed search criteria: %w", err)
		}
	}
	s.log.Info("seeded profiles", "count", profiles)

	return nil
}

// seedAccount registers a confirmed account and its profile row. The
// profile takes the account id.
func (s *GormStore) seedAccount(ctx context.Context, u db.User, password string) error {
	md := map[string]string{"name": u.Name}
	au, _, err := s.register(ctx, u.Email, password, md, true)
	if err != nil {
		return fmt.Errorf("failed to seed account %s: %w", u.Email, err)
	}
	u.ID = au.ID
	u.Email = au.Email
	if err := s.users.Insert(ctx, &u); err != nil {
		return fmt.Errorf("failed to seed profile %s: %w", u.Email, err)
	}
	return nil
}
