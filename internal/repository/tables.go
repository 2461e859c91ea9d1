package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/edublin-connect/internal/db"
)

func NewUsers(database *gorm.DB) *Table[db.User] {
	return NewTable(database, func(u db.User) (string, time.Time) { return u.ID, u.CreatedAt })
}

func NewSearchCriteria(database *gorm.DB) *Table[db.SearchCriteria] {
	return NewTable(database, func(c db.SearchCriteria) (string, time.Time) { return c.ID, c.CreatedAt })
}

func NewContactRequests(database *gorm.DB) *Table[db.ContactRequest] {
	return NewTable(database, func(c db.ContactRequest) (string, time.Time) { return c.ID, c.CreatedAt })
}

func NewWhatsAppGroups(database *gorm.DB) *Table[db.WhatsAppGroup] {
	return NewTable(database, func(g db.WhatsAppGroup) (string, time.Time) { return g.ID, g.CreatedAt })
}
