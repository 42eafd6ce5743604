// Package bdgr persists the namespace catalog and the semantic side-table in a badger database.
package bdgr

import (
	"sync"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/errors"
	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/semantic"
)

var (
	// ErrDB wraps errors returned by the badger database
	ErrDB = errors.New("metadata database error")

	// ErrCorruptRecord is returned when a stored record cannot be decoded
	ErrCorruptRecord = errors.New("corrupt metadata record")
)

var (
	pathPref      = [5]byte{'p', 'a', 't', 'h', ':'}
	assertionPref = [5]byte{'a', 's', 'r', 't', ':'}
)

type options struct {
	inMemory bool
	l        *zap.Logger
}

// Option configures the metadata database
type Option func(*options)

// InMemory keeps the database in memory only
func InMemory(enabled bool) Option {
	return func(o *options) {
		o.inMemory = enabled
	}
}

// Logger sets the logger of the database
func Logger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.l = l
		}
	}
}

// DB is the metadata database of a workspace
type DB struct {
	db    *badger.DB
	l     *zap.Logger
	close sync.Once
}

// Open the metadata database located in dir
func Open(dir string, opts ...Option) (*DB, error) {
	o := &options{l: zap.NewNop()}
	for _, apply := range opts {
		apply(o)
	}

	bopts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{o.l.Sugar()}).
		WithLoggingLevel(badger.WARNING)
	if o.inMemory {
		bopts = badger.DefaultOptions("").
			WithInMemory(true).
			WithLogger(badgerLogger{o.l.Sugar()}).
			WithLoggingLevel(badger.WARNING)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, ErrDB.Wrap(err)
	}
	return &DB{db: db, l: o.l}, nil
}

// Close the database. Close may be called several times.
func (d *DB) Close() error {
	var err error
	d.close.Do(func() {
		if e := d.db.Close(); e != nil {
			err = ErrDB.Wrap(e)
		}
	})
	return err
}

// Catalog returns the namespace catalog stored in this database
func (d *DB) Catalog() model.Catalog {
	return &catalogStore{db: d.db, l: d.l}
}

// SideTable returns the semantic side-table stored in this database
func (d *DB) SideTable() semantic.SideTable {
	return &assertionStore{db: d.db}
}

func prefixed(pref [5]byte, key string) []byte {
	k := make([]byte, 0, len(pref)+len(key))
	k = append(k, pref[:]...)
	return append(k, key...)
}

// badgerLogger adapts a zap logger to the badger logging interface
type badgerLogger struct {
	*zap.SugaredLogger
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.Warnf(format, args...)
}
