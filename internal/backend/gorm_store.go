package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/oggyb/edublin-connect/internal/db"
	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/repository"
)

const (
	minPasswordLen  = 6
	confirmTokenTTL = 24 * time.Hour
	resetTokenTTL   = time.Hour
)

// GormStore implements Store over a SQL database.
type GormStore struct {
	db          *gorm.DB
	log         *slog.Logger
	now         func() time.Time
	sessionTTL  time.Duration
	autoConfirm bool

	users    repository.Rows[db.User]
	criteria repository.Rows[db.SearchCriteria]
	contacts repository.Rows[db.ContactRequest]
	groups   repository.Rows[db.WhatsAppGroup]

	mu        sync.Mutex
	nextSubID int
	listeners map[int]func(AuthEvent)
}

type Option func(*GormStore)

func WithClock(now func() time.Time) Option {
	return func(s *GormStore) { s.now = now }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *GormStore) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithAutoConfirm marks new accounts as confirmed and signs them in. It
// is on by default.
func WithAutoConfirm(on bool) Option {
	return func(s *GormStore) { s.autoConfirm = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *GormStore) {
		if l != nil {
			s.log = l
		}
	}
}

func NewGormStore(database *gorm.DB, opts ...Option) *GormStore {
	s := &GormStore{
		db:          database,
		log:         slog.Default(),
		now:         time.Now,
		sessionTTL:  time.Hour,
		autoConfirm: true,
		users:       rows[db.User]{name: "users", inner: repository.NewUsers(database)},
		criteria:    rows[db.SearchCriteria]{name: "search_criteria", inner: repository.NewSearchCriteria(database)},
		contacts:    rows[db.ContactRequest]{name: "contact_requests", inner: repository.NewContactRequests(database)},
		groups:      rows[db.WhatsAppGroup]{name: "whatsapp_groups", inner: repository.NewWhatsAppGroups(database)},
		listeners:   make(map[int]func(AuthEvent)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GormStore) Users() repository.Rows[db.User]                    { return s.users }
func (s *GormStore) SearchCriteria() repository.Rows[db.SearchCriteria] { return s.criteria }
func (s *GormStore) ContactRequests() repository.Rows[db.ContactRequest] {
	return s.contacts
}
func (s *GormStore) WhatsAppGroups() repository.Rows[db.WhatsAppGroup] { return s.groups }

func (s *GormStore) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*db.AuthUser, *db.AuthSession, error) {
	return s.register(ctx, email, password, metadata, s.autoConfirm)
}

func (s *GormStore) register(ctx context.Context, email, password string, metadata map[string]string, confirmed bool) (*db.AuthUser, *db.AuthSession, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, &svcErr.Error{Kind: svcErr.KindValidation, Key: svcErr.KeyInvalidEmail, Err: err}
	}
	if len(password) < minPasswordLen {
		return nil, nil, svcErr.New(svcErr.KindWeakPassword, "")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&db.Account{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, nil, classify("accounts count", err)
	}
	if existing > 0 {
		return nil, nil, svcErr.New(svcErr.KindAlreadyRegistered, "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, svcErr.E(svcErr.KindUnknown, "", fmt.Errorf("hash password: %w", err))
	}

	now := s.now().UTC()
	acct := db.Account{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Metadata:     metadata,
	}
	if confirmed {
		acct.EmailConfirmedAt = &now
	}

	var sess *db.AuthSession
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&acct).Error; err != nil {
			return err
		}
		if !confirmed {
			tok := db.AuthToken{
				Token:     uuid.NewString(),
				UserID:    acct.UserID,
				Purpose:   db.PurposeConfirmEmail,
				ExpiresAt: now.Add(confirmTokenTTL),
			}
			if err := tx.Create(&tok).Error; err != nil {
				return err
			}
			// No mail transport; the token is only reachable through logs.
			s.log.Info("confirmation token issued", "user_id", acct.UserID, "token", tok.Token)
			return nil
		}
		var err error
		sess, err = s.issueSession(tx, acct.UserID, now)
		return err
	})
	if err != nil {
		return nil, nil, classify("sign up", err)
	}

	user := authUser(acct)
	if sess != nil {
		s.emit(AuthEvent{Type: EventSignedIn, User: user, Session: sess})
	}
	return user, sess, nil
}

func (s *GormStore) SignIn(ctx context.Context, email, password string) (*db.AuthUser, *db.AuthSession, error) {
	var acct db.Account
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, svcErr.New(svcErr.KindInvalidCredentials, "")
	}
	if err != nil {
		return nil, nil, classify("accounts first", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return nil, nil, svcErr.New(svcErr.KindInvalidCredentials, "")
	}
	if acct.EmailConfirmedAt == nil {
		return nil, nil, svcErr.New(svcErr.KindEmailNotConfirmed, "")
	}

	now := s.now().UTC()
	var sess *db.AuthSession
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if sess, err = s.issueSession(tx, acct.UserID, now); err != nil {
			return err
		}
		return tx.Model(&db.Account{}).Where("user_id = ?", acct.UserID).Update("last_sign_in_at", now).Error
	})
	if err != nil {
		return nil, nil, classify("sign in", err)
	}

	acct.LastSignInAt = &now
	user := authUser(acct)
	s.emit(AuthEvent{Type: EventSignedIn, User: user, Session: sess})
	return user, sess, nil
}

func (s *GormStore) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	var sess db.Session
	err := s.db.WithContext(ctx).Where("token = ?", token).Take(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return classify("sessions first", err)
	}
	if err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&db.Session{}).Error; err != nil {
		return classify("sessions delete", err)
	}
	s.emit(AuthEvent{Type: EventSignedOut, Session: &db.AuthSession{AccessToken: token, UserID: sess.UserID}})
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, token string) (*db.AuthUser, error) {
	if token == "" {
		return nil, nil
	}
	var sess db.Session
	err := s.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, s.now().UTC()).
		Take(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("sessions first", err)
	}

	var acct db.Account
	err = s.db.WithContext(ctx).Where("user_id = ?", sess.UserID).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("accounts first", err)
	}
	return authUser(acct), nil
}

// RequestPasswordReset issues a reset token. Unknown emails succeed
// silently so the endpoint cannot be used to probe accounts.
func (s *GormStore) RequestPasswordReset(ctx context.Context, email string) error {
	var acct db.Account
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return classify("accounts first", err)
	}

	tok := db.AuthToken{
		Token:     uuid.NewString(),
		UserID:    acct.UserID,
		Purpose:   db.PurposeResetPassword,
		ExpiresAt: s.now().UTC().Add(resetTokenTTL),
	}
	if err := s.db.WithContext(ctx).Create(&tok).Error; err != nil {
		return classify("auth_tokens insert", err)
	}
	s.log.Info("password reset token issued", "user_id", acct.UserID, "token", tok.Token)
	s.emit(AuthEvent{Type: EventRecovering, User: authUser(acct)})
	return nil
}

func (s *GormStore) ConfirmEmail(ctx context.Context, token string) (*db.AuthUser, error) {
	now := s.now().UTC()
	var acct db.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tok db.AuthToken
		err := tx.Where("token = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?",
			token, db.PurposeConfirmEmail, now).Take(&tok).Error
		if err != nil {
			return err
		}
		if err := tx.Model(&db.AuthToken{}).Where("token = ?", tok.Token).Update("used_at", now).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.Account{}).Where("user_id = ?", tok.UserID).Update("email_confirmed_at", now).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", tok.UserID).Take(&acct).Error
	})
	if err != nil {
		return nil, classify("confirm email", err)
	}

	user := authUser(acct)
	s.emit(AuthEvent{Type: EventConfirmed, User: user})
	return user, nil
}

func (s *GormStore) Authorize(ctx context.Context, token, ownerID string) error {
	user, err := s.GetUser(ctx, token)
	if err != nil {
		return err
	}
	if user == nil {
		return svcErr.New(svcErr.KindUnauthenticated, "")
	}
	if user.ID != ownerID {
		return svcErr.New(svcErr.KindPermissionDenied, "")
	}
	return nil
}

// Ping runs the cheapest query that proves the schema is reachable.
func (s *GormStore) Ping(ctx context.Context) error {
	_, err := s.users.Select(ctx, repository.Query{}.Limit(1))
	return err
}

func (s *GormStore) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UTC()).Delete(&db.Session{})
	if res.Error != nil {
		return 0, classify("sessions purge", res.Error)
	}
	return res.RowsAffected, nil
}

// OnAuthStateChange registers fn for every later auth event. Listeners run
// on the goroutine that caused the event and must not block.
func (s *GormStore) OnAuthStateChange(fn func(AuthEvent)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *GormStore) emit(ev AuthEvent) {
	s.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *GormStore) issueSession(tx *gorm.DB, userID string, now time.Time) (*db.AuthSession, error) {
	row := db.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	return &db.AuthSession{AccessToken: row.Token, UserID: userID, ExpiresAt: row.ExpiresAt}, nil
}

func authUser(a db.Account) *db.AuthUser {
	md := make(map[string]string, len(a.Metadata))
	for k, v := range a.Metadata {
		md[k] = v
	}
	return &db.AuthUser{
		ID:               a.UserID,
		Email:            a.Email,
		Metadata:         md,
		EmailConfirmedAt: a.EmailConfirmedAt,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
