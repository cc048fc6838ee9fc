package cartstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/buntdb"
)

// BuntCartStore persists values in an embedded buntdb file on the local device.
type BuntCartStore struct {
	path string
	db   *buntdb.DB
	log  logrus.FieldLogger
}

// NewBuntCartStore returns a store for the database file at path. Use
// ":memory:" for a database that is never written to disk.
func NewBuntCartStore(path string, log logrus.FieldLogger) *BuntCartStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BuntCartStore{
		path: path,
		log:  log.WithFields(logrus.Fields{"component": "BuntCartStore", "path": path}),
	}
}

// Initialize opens the database file, creating it when missing.
func (b *BuntCartStore) Initialize(ctx context.Context) error {
	if b.db != nil {
		return nil
	}
	db, err := buntdb.Open(b.path)
	if err != nil {
		return errors.Wrapf(err, "open buntdb %s", b.path)
	}
	b.db = db
	b.log.Info("BuntCartStore initialized")
	return nil
}

func (b *BuntCartStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := b.ready(ctx); err != nil {
		return "", false, err
	}
	b.log.WithField("key", key).Debug("GetItem called")

	var val string
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "buntdb get")
	}
	return val, true, nil
}

func (b *BuntCartStore) SetItem(ctx context.Context, key, value string) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	b.log.WithFields(logrus.Fields{"key": key, "bytes": len(value)}).Debug("SetItem called")

	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, value, nil)
		return err
	})
	return errors.Wrap(err, "buntdb set")
}

func (b *BuntCartStore) RemoveItem(ctx context.Context, key string) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	b.log.WithField("key", key).Debug("RemoveItem called")

	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
	return errors.Wrap(err, "buntdb delete")
}

// Ping reports whether the database is open and answering reads.
func (b *BuntCartStore) Ping(ctx context.Context) bool {
	if b.db == nil {
		return false
	}
	return b.db.View(func(tx *buntdb.Tx) error { return nil }) == nil
}

func (b *BuntCartStore) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return errors.Wrap(err, "close buntdb")
}

func (b *BuntCartStore) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.db == nil {
		return errors.New("buntdb: store not initialized")
	}
	return nil
}
