package db

import (
	"time"
)

// User is the profile row. It is also the record the gateway caches and
// hands to callers, so JSON tags matter.
type User struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Email         string    `gorm:"uniqueIndex;size:128;not null" json:"email"`
	Name          string    `gorm:"size:128;not null" json:"name"`
	Age           *int      `json:"age,omitempty"`
	OriginCity    string    `gorm:"size:128" json:"origin_city,omitempty"`
	Phone         string    `gorm:"size:32" json:"phone,omitempty"`
	WhatsApp      string    `gorm:"column:whatsapp;size:32" json:"whatsapp,omitempty"`
	WhatsAppOptIn bool      `gorm:"column:whatsapp_opt_in;not null;default:false" json:"whatsapp_opt_in"`
	PhotoURL      string    `gorm:"size:512" json:"photo_url,omitempty"`
	Interests     []string  `gorm:"serializer:json" json:"interests"`
	Verified      bool      `gorm:"not null;default:false" json:"verified"`
	Premium       bool      `gorm:"not null;default:false" json:"premium"`
	Reports       int       `gorm:"not null;default:0" json:"reports"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Clone returns a deep copy of u; nil stays nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Interests != nil {
		cp.Interests = append([]string(nil), u.Interests...)
	}
	if u.Age != nil {
		age := *u.Age
		cp.Age = &age
	}
	return &cp
}

// Account holds credentials. One per user; kept apart from the profile row
// so profile reads never carry the hash.
type Account struct {
	UserID           string            `gorm:"primaryKey;size:64"`
	Email            string            `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash     string            `gorm:"size:255;not null"`
	Metadata         map[string]string `gorm:"serializer:json"`
	EmailConfirmedAt *time.Time
	LastSignInAt     *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// Session is an opaque bearer token issued on sign-in.
//
// Indexes:
//   - idx_sessions_user(user_id) for sign-out of every session of a user.
//   - idx_sessions_expires(expires_at) for the janitor purge.
type Session struct {
	Token     string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"size:64;not null;index:idx_sessions_user"`
	ExpiresAt time.Time `gorm:"not null;index:idx_sessions_expires"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Token purposes for AuthToken.
const (
	PurposeConfirmEmail  = "confirm_email"
	PurposeResetPassword = "reset_password"
)

// AuthToken is a single-use token for email confirmation or password reset.
type AuthToken struct {
	Token     string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"size:64;not null;index"`
	Purpose   string    `gorm:"size:32;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// SearchCriteria is a saved search. YearMonth is "YYYY-MM" so string
// comparison orders it correctly.
type SearchCriteria struct {
	ID                 string    `gorm:"primaryKey;size:64" json:"id"`
	UserID             string    `gorm:"size:64;not null;index:idx_criteria_user_created,priority:1" json:"user_id"`
	OriginCity         string    `gorm:"size:128;not null" json:"origin_city"`
	DestinationCountry string    `gorm:"size:128;not null;index:idx_criteria_destination,priority:1" json:"destination_country"`
	DestinationCity    string    `gorm:"size:128;not null;index:idx_criteria_destination,priority:2" json:"destination_city"`
	School             string    `gorm:"size:256" json:"school,omitempty"`
	Airline            string    `gorm:"size:128" json:"airline,omitempty"`
	YearMonth          string    `gorm:"size:7;not null" json:"year_month"`
	Course             string    `gorm:"size:128" json:"course,omitempty"`
	CreatedAt          time.Time `gorm:"autoCreateTime;index:idx_criteria_user_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the plural the hosted schema uses.
func (SearchCriteria) TableName() string { return "search_criteria" }

// Contact request statuses.
const (
	ContactPending  = "pending"
	ContactAccepted = "accepted"
	ContactRejected = "rejected"
)

type ContactRequest struct {
	ID               string    `gorm:"primaryKey;size:64" json:"id"`
	RequesterID      string    `gorm:"size:64;not null;index" json:"requester_id"`
	TargetID         string    `gorm:"size:64;not null;index:idx_contact_target_created,priority:1" json:"target_id"`
	SearchCriteriaID string    `gorm:"size:64" json:"search_criteria_id"`
	Message          string    `gorm:"size:1024" json:"message"`
	Status           string    `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index:idx_contact_target_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// WhatsAppGroup ties an arrival city and month to a group invite.
type WhatsAppGroup struct {
	ID              string    `gorm:"primaryKey;size:64" json:"id"`
	Name            string    `gorm:"size:256;not null" json:"name"`
	Description     string    `gorm:"size:512" json:"description"`
	DestinationCity string    `gorm:"size:128;not null;index:idx_group_city_month,priority:1" json:"destination_city"`
	YearMonth       string    `gorm:"size:7;not null;index:idx_group_city_month,priority:2" json:"year_month"`
	InviteLink      string    `gorm:"size:1024;not null" json:"invite_link"`
	AdminUserID     string    `gorm:"size:64;not null;index" json:"admin_user_id"`
	MaxMembers      int       `gorm:"not null;default:256" json:"max_members"`
	CurrentMembers  int       `gorm:"not null;default:0" json:"current_members"`
	Active          bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WhatsAppGroup) TableName() string { return "whatsapp_groups" }

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &Account{}, &Session{}, &AuthToken{},
		&SearchCriteria{}, &ContactRequest{}, &WhatsAppGroup{},
	}
}
