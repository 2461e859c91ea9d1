package db

import (
	"encoding/json"
	"strconv"
	"time"
)

// Records below are not tables. They travel between the backend, the
// fallback provider and the transport layer.

// AuthUser is the identity an auth step returns, before the profile row
// is looked up. Metadata carries sign-up fields (name, age, phone).
type AuthUser struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// SignUpData is the registration form.
type SignUpData struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
	Age      *int   `json:"age,omitempty" validate:"omitempty,gte=14,lte=120"`
	Phone    string `json:"phone,omitempty"`
}

// Metadata is what the backend stores next to the account.
func (s SignUpData) Metadata() map[string]string {
	md := map[string]string{"name": s.Name}
	if s.Age != nil {
		md["age"] = strconv.Itoa(*s.Age)
	}
	if s.Phone != "" {
		md["phone"] = s.Phone
	}
	return md
}

// AuthSession is an issued bearer token.
type AuthSession struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Profile is a search result card.
type Profile struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Age                int      `json:"age"`
	OriginCity         string   `json:"origin_city"`
	DestinationCity    string   `json:"destination_city"`
	DestinationCountry string   `json:"destination_country"`
	School             string   `json:"school"`
	YearMonth          string   `json:"year_month"`
	Airline            string   `json:"airline,omitempty"`
	WhatsAppOptIn      bool     `json:"whatsapp_opt_in"`
	Verified           bool     `json:"verified"`
	Premium            bool     `json:"premium"`
	PhotoURL           string   `json:"photo_url,omitempty"`
	Bio                string   `json:"bio,omitempty"`
	Interests          []string `json:"interests"`
	// BaseScore is fixed at generation; Score is recomputed from it on
	// every filter pass.
	BaseScore int `json:"-"`
	Score     int `json:"match_score"`
}

// Match is another user whose saved search overlaps the requested one.
type Match struct {
	User          User           `json:"user"`
	Criteria      SearchCriteria `json:"criteria"`
	Compatibility int            `json:"compatibility"`
}

// Destination counts saved searches per country and city.
type Destination struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Count   int    `json:"count"`
}

// ProfileUpdate holds the editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name          *string   `json:"name,omitempty"`
	Age           *int      `json:"age,omitempty"`
	OriginCity    *string   `json:"origin_city,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	WhatsApp      *string   `json:"whatsapp,omitempty"`
	WhatsAppOptIn *bool     `json:"whatsapp_opt_in,omitempty"`
	PhotoURL      *string   `json:"photo_url,omitempty"`
	Interests     *[]string `json:"interests,omitempty"`
}

// Changes returns the column updates for a SQL UPDATE.
func (p ProfileUpdate) Changes() map[string]any {
	ch := map[string]any{}
	if p.Name != nil {
		ch["name"] = *p.Name
	}
	if p.Age != nil {
		ch["age"] = *p.Age
	}
	if p.OriginCity != nil {
		ch["origin_city"] = *p.OriginCity
	}
	if p.Phone != nil {
		ch["phone"] = *p.Phone
	}
	if p.WhatsApp != nil {
		ch["whatsapp"] = *p.WhatsApp
	}
	if p.WhatsAppOptIn != nil {
		ch["whatsapp_opt_in"] = *p.WhatsAppOptIn
	}
	if p.PhotoURL != nil {
		ch["photo_url"] = *p.PhotoURL
	}
	if p.Interests != nil {
		// map updates bypass the json serializer on the column
		b, _ := json.Marshal(*p.Interests)
		ch["interests"] = string(b)
	}
	return ch
}

// Apply merges the update into u.
func (p ProfileUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Age != nil {
		age := *p.Age
		u.Age = &age
	}
	if p.OriginCity != nil {
		u.OriginCity = *p.OriginCity
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.WhatsApp != nil {
		u.WhatsApp = *p.WhatsApp
	}
	if p.WhatsAppOptIn != nil {
		u.WhatsAppOptIn = *p.WhatsAppOptIn
	}
	if p.PhotoURL != nil {
		u.PhotoURL = *p.PhotoURL
	}
	if p.Interests != nil {
		u.Interests = append([]string(nil), (*p.Interests)...)
	}
}
