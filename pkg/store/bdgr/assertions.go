package bdgr

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"

	"github.com/paninifs/panini/pkg/semantic"
)

var _ semantic.SideTable = &assertionStore{}

type assertionStore struct {
	db *badger.DB
}

// subjectPrefix is the key prefix of all assertions about a subject.
// Subjects may not contain NUL, so the separator keeps "/a" and "/ab" apart.
func subjectPrefix(subject string) []byte {
	return append(prefixed(assertionPref, subject), 0)
}

func (a *assertionStore) RecordAssertion(ctx context.Context, as semantic.Assertion) error {
	if err := as.Validate(); err != nil {
		return err
	}
	semantic.Stamp(&as)

	data, err := jsoniter.Marshal(as)
	if err != nil {
		return ErrCorruptRecord.Wrap(err)
	}
	key := append(subjectPrefix(as.Subject), as.ID...)

	return a.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return ErrDB.Wrap(err)
		}
		return nil
	})
}

func (a *assertionStore) QueryAssertions(ctx context.Context, subject string) ([]semantic.Assertion, error) {
	var found []semantic.Assertion
	prefix := subjectPrefix(subject)

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return ErrDB.Wrap(err)
			}
			var as semantic.Assertion
			if err := jsoniter.Unmarshal(data, &as); err != nil {
				return ErrCorruptRecord.WrapMessage("assertion on %q: %v", subject, err)
			}
			found = append(found, as)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	semantic.SortAssertions(found)
	return found, nil
}
