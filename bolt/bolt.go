// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package bolt provides a workqueue.DocumentStore in a single local
// bbolt file, suitable for a local queue that must survive restarts
// without a database server.
//
// Documents live in one bucket, keyed by ID, as CBOR envelopes
// holding their revision and data.  Each view has its own bucket
// whose keys are the view key and document ID joined by a zero byte,
// so view queries are ordered cursor scans.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmwm/go-workqueue/workqueue"
	bbolt "go.etcd.io/bbolt"
)

var (
	bucketDocuments = []byte("documents")
	bucketMeta      = []byte("meta")
	viewPrefix      = "view:"
	keySeparator    = []byte{0}
)

type boltStore struct {
	db    *bbolt.DB
	views map[string]workqueue.ViewFunc
}

// New opens (creating if needed) a bbolt file at path and returns a
// document store over it.  Only one process may have the file open.
func New(path string, views map[string]workqueue.ViewFunc) (workqueue.DocumentStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	store := &boltStore{
		db:    db,
		views: make(map[string]workqueue.ViewFunc, len(views)),
	}
	for name, f := range views {
		store.views[name] = f
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocuments, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		for name := range store.views {
			b, err := tx.CreateBucketIfNotExists(viewBucket(name))
			if err != nil {
				return err
			}
			// A view added since the file was written needs
			// its index built
			if b.Stats().KeyN == 0 {
				if err := store.reindex(tx, name); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func viewBucket(name string) []byte {
	return []byte(viewPrefix + name)
}

func indexKey(key, id string) []byte {
	k := make([]byte, 0, len(key)+1+len(id))
	k = append(k, key...)
	k = append(k, keySeparator...)
	return append(k, id...)
}

func splitIndexKey(k []byte) (key, id string, ok bool) {
	i := bytes.Index(k, keySeparator)
	if i < 0 {
		return "", "", false
	}
	return string(k[:i]), string(k[i+1:]), true
}

// envelope is the stored form of a document.
type envelope struct {
	revision int64
	data     map[string]interface{}
}

func encode(env envelope) ([]byte, error) {
	return workqueue.MarshalData(map[string]interface{}{
		"revision": env.revision,
		"data":     env.data,
	})
}

func decode(raw []byte) (envelope, error) {
	outer, err := workqueue.UnmarshalData(raw)
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	switch rev := outer["revision"].(type) {
	case int64:
		env.revision = rev
	case uint64:
		env.revision = int64(rev)
	default:
		return envelope{}, fmt.Errorf("corrupt document envelope: revision %T", outer["revision"])
	}
	env.data, _ = outer["data"].(map[string]interface{})
	if env.data == nil {
		env.data = map[string]interface{}{}
	}
	return env, nil
}

// load reads a document inside a transaction.
func load(tx *bbolt.Tx, id string) (envelope, bool, error) {
	raw := tx.Bucket(bucketDocuments).Get([]byte(id))
	if raw == nil {
		return envelope{}, false, nil
	}
	env, err := decode(raw)
	return env, err == nil, err
}

// index adds (add true) or removes the view entries of a document.
func (s *boltStore) index(tx *bbolt.Tx, id string, data map[string]interface{}, add bool) error {
	for name, f := range s.views {
		b := tx.Bucket(viewBucket(name))
		for _, key := range f(data) {
			var err error
			if add {
				err = b.Put(indexKey(key, id), []byte{})
			} else {
				err = b.Delete(indexKey(key, id))
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// reindex rebuilds one view's index from every document.
func (s *boltStore) reindex(tx *bbolt.Tx, name string) error {
	f := s.views[name]
	b := tx.Bucket(viewBucket(name))
	return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
		env, err := decode(v)
		if err != nil {
			return err
		}
		for _, key := range f(env.data) {
			if err := b.Put(indexKey(key, string(k)), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
}

// store writes a document with a fresh revision and returns it.
func store(tx *bbolt.Tx, id string, data map[string]interface{}) (int64, error) {
	seq, err := tx.Bucket(bucketMeta).NextSequence()
	if err != nil {
		return 0, err
	}
	revision := int64(seq)
	raw, err := encode(envelope{revision: revision, data: data})
	if err != nil {
		return 0, err
	}
	return revision, tx.Bucket(bucketDocuments).Put([]byte(id), raw)
}

func (s *boltStore) Insert(ctx context.Context, doc workqueue.Document) (workqueue.Document, error) {
	if doc.ID == "" {
		return workqueue.Document{}, errors.New("document has no ID")
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		_, exists, err := load(tx, doc.ID)
		if err != nil {
			return err
		}
		if exists {
			return workqueue.ErrDocumentExists{ID: doc.ID}
		}
		if _, err := store(tx, doc.ID, doc.Data); err != nil {
			return err
		}
		return s.index(tx, doc.ID, doc.Data, true)
	})
	if err != nil {
		return workqueue.Document{}, err
	}
	return s.Get(ctx, doc.ID)
}

func (s *boltStore) Get(ctx context.Context, id string) (result workqueue.Document, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		env, exists, err := load(tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return workqueue.ErrNoSuchDocument{ID: id}
		}
		result = workqueue.Document{ID: id, Revision: env.revision, Data: env.data}
		return nil
	})
	return
}

func (s *boltStore) QueryByView(ctx context.Context, view string, r workqueue.KeyRange) (result []workqueue.Document, err error) {
	if _, ok := s.views[view]; !ok {
		return nil, workqueue.ErrNoSuchView
	}
	err = s.db.View(func(tx *bbolt.Tx) error {
		seen := make(map[string]bool)
		c := tx.Bucket(viewBucket(view)).Cursor()
		for k, _ := c.Seek([]byte(r.Start)); k != nil; k, _ = c.Next() {
			key, id, ok := splitIndexKey(k)
			if !ok {
				continue
			}
			if !r.Contains(key) {
				if r.End != "" && key > r.End {
					break
				}
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			env, exists, err := load(tx, id)
			if err != nil {
				return err
			}
			if exists {
				result = append(result, workqueue.Document{ID: id, Revision: env.revision, Data: env.data})
			}
		}
		return nil
	})
	return
}

func (s *boltStore) Update(ctx context.Context, doc workqueue.Document, expectedRevision int64) (revision int64, err error) {
	err = s.db.Update(func(tx *bbolt.Tx) error {
		old, exists, err := load(tx, doc.ID)
		if err != nil {
			return err
		}
		if !exists {
			return workqueue.ErrNoSuchDocument{ID: doc.ID}
		}
		if old.revision != expectedRevision {
			return workqueue.ErrConflict{ID: doc.ID, Expected: expectedRevision}
		}
		if err := s.index(tx, doc.ID, old.data, false); err != nil {
			return err
		}
		revision, err = store(tx, doc.ID, doc.Data)
		if err != nil {
			return err
		}
		return s.index(tx, doc.ID, doc.Data, true)
	})
	if err != nil {
		return 0, err
	}
	return revision, nil
}

func (s *boltStore) Delete(ctx context.Context, id string, revision int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		old, exists, err := load(tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return workqueue.ErrNoSuchDocument{ID: id}
		}
		if old.revision != revision {
			return workqueue.ErrConflict{ID: id, Expected: revision}
		}
		if err := s.index(tx, id, old.data, false); err != nil {
			return err
		}
		return tx.Bucket(bucketDocuments).Delete([]byte(id))
	})
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
