package bdgr

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/model"
)

var _ model.Catalog = &catalogStore{}

type catalogStore struct {
	db *badger.DB
	l  *zap.Logger
}

// Load all entries, sorted by path
func (c *catalogStore) Load(ctx context.Context) (model.Entries, error) {
	var entries model.Entries
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pathPref[:]
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(pathPref[:]); iter.ValidForPrefix(pathPref[:]); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return ErrDB.Wrap(err)
			}
			var entry model.Entry
			if err := jsoniter.Unmarshal(data, &entry); err != nil {
				return ErrCorruptRecord.WrapMessage("catalog entry %q: %v", string(item.Key()), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Commit removals and saves in a single transaction
func (c *catalogStore) Commit(ctx context.Context, removed []string, saved ...model.Entry) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		for _, pth := range removed {
			if err := txn.Delete(prefixed(pathPref, pth)); err != nil {
				return ErrDB.Wrap(err)
			}
		}
		for _, entry := range saved {
			data, err := jsoniter.Marshal(entry)
			if err != nil {
				return ErrCorruptRecord.Wrap(err)
			}
			if err := txn.Set(prefixed(pathPref, entry.Path), data); err != nil {
				return ErrDB.Wrap(err)
			}
		}
		return nil
	})
	if err != nil {
		c.l.Warn("catalog commit failed", zap.Strings("removed", removed), zap.Int("saved", len(saved)), zap.Error(err))
	}
	return err
}
