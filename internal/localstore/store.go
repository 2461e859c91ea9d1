// Package localstore persists the small key/value state that fallback mode
// needs across restarts: the local current user per session and a couple of
// UI flags. Values are JSON strings.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Well-known keys.
const (
	KeyConfigSkipped   = "supabase_config_skipped"
	KeyBannerDismissed = "demo_banner_dismissed"
	currentUserPrefix  = "demo_current_user:"
	accountPrefix      = "demo_account:"
)

// CurrentUserKey is where the fallback user of a session lives.
func CurrentUserKey(sessionID string) string {
	return currentUserPrefix + sessionID
}

// AccountKey indexes a fallback user by email so it can sign in again
// from a new session.
func AccountKey(email string) string {
	return accountPrefix + strings.ToLower(strings.TrimSpace(email))
}

type Store struct {
	db *badger.DB
}

// Open opens the store at path, or in memory when path is empty.
func Open(path string, log *slog.Logger) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create local store directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if log != nil {
		opts = opts.WithLogger(&badgerLogger{log: log})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the value under key. ok is false when the key is absent.
func (s *Store) Get(key string) (value string, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = string(v)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("local store get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("local store set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("local store remove %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the value under key into dst.
func (s *Store) GetJSON(key string, dst any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("local store decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) SetJSON(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("local store encode %s: %w", key, err)
	}
	return s.Set(key, string(b))
}

// Flag reads a boolean flag. Missing means false.
func (s *Store) Flag(key string) bool {
	v, ok, err := s.Get(key)
	return err == nil && ok && v == "true"
}

func (s *Store) SetFlag(key string, on bool) error {
	if !on {
		return s.Remove(key)
	}
	return s.Set(key, "true")
}

// RemovePrefix deletes every key starting with prefix and returns the count.
func (s *Store) RemovePrefix(prefix string) (int, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("local store scan %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("local store delete: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("local store flush: %w", err)
	}
	return len(keys), nil
}

// ClearCurrentUsers drops every stored fallback user, by session and by
// email.
func (s *Store) ClearCurrentUsers() (int, error) {
	n, err := s.RemovePrefix(currentUserPrefix)
	if err != nil {
		return n, err
	}
	m, err := s.RemovePrefix(accountPrefix)
	return n + m, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger adapts slog to badger's logger. Info and debug are dropped;
// badger is chatty at those levels.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(string, ...interface{})  {}
func (l *badgerLogger) Debugf(string, ...interface{}) {}
