package database

import (
	"bytes"
	"conference-webapp/model"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

type localTxKey struct{}

type localSnapshot struct {
	Collections map[string][]bson.Raw `bson:"collections"`
}

// LocalStore keeps documents in process memory, in insertion order. With a non
// empty path every committed write is flushed to that file as extended JSON.
//
// Transactions are serialized with each other and with writes made outside of
// them. Reads made outside of a transaction wait until the open one commits or
// rolls back, so they never see its intermediate state.
type LocalStore struct {
	path string

	txMu sync.RWMutex
	mu   sync.RWMutex
	docs map[model.Kind][]bson.Raw
	uniq map[model.Kind][][]string
}

// NewLocalStore opens the store at path, creating the file when missing.
// An empty path keeps everything in memory.
func NewLocalStore(path string) (*LocalStore, error) {
	s := &LocalStore{
		path: path,
		docs: map[model.Kind][]bson.Raw{},
		uniq: map[model.Kind][][]string{},
	}
	if path == "" {
		return s, nil
	}

	fileBytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, s.commit()
	} else if err != nil {
		return nil, err
	}

	var snapshot localSnapshot
	if err := bson.UnmarshalExtJSON(fileBytes, true, &snapshot); err != nil {
		return nil, fmt.Errorf("read local db %v: %w", path, err)
	}
	for kind, docs := range snapshot.Collections {
		s.docs[model.Kind(kind)] = docs
	}
	return s, nil
}

func (s *LocalStore) commit() error {
	if s.path == "" {
		return nil
	}
	snapshot := localSnapshot{Collections: map[string][]bson.Raw{}}
	for kind, docs := range s.docs {
		snapshot.Collections[string(kind)] = docs
	}
	out, err := bson.MarshalExtJSON(snapshot, true, false)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0644)
}

func (s *LocalStore) inTx(ctx context.Context) bool {
	return ctx.Value(localTxKey{}) == s
}

// write runs fn under the data lock. Outside a transaction it also takes the
// transaction lock and flushes the result.
func (s *LocalStore) write(ctx context.Context, fn func() error) error {
	if !s.inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(); err != nil {
		return err
	}
	if s.inTx(ctx) {
		return nil
	}
	return s.commit()
}

// read runs fn under the read locks. Outside a transaction it waits for the
// open one to finish.
func (s *LocalStore) read(ctx context.Context, fn func() error) error {
	if !s.inTx(ctx) {
		s.txMu.RLock()
		defer s.txMu.RUnlock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

func (s *LocalStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	saved := make(map[model.Kind][]bson.Raw, len(s.docs))
	for kind, docs := range s.docs {
		saved[kind] = append([]bson.Raw(nil), docs...)
	}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, localTxKey{}, s)); err != nil {
		s.mu.Lock()
		s.docs = saved
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit()
}

func (s *LocalStore) Insert(ctx context.Context, kind model.Kind, doc interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	if _, err := bson.Raw(raw).LookupErr("_id"); err != nil {
		return fmt.Errorf("insert into %v: document has no _id", kind)
	}
	return s.write(ctx, func() error {
		if s.violatesUnique(kind, raw, -1) {
			return ErrDuplicateKey
		}
		s.docs[kind] = append(s.docs[kind], raw)
		return nil
	})
}

func (s *LocalStore) FindByID(ctx context.Context, kind model.Kind, id interface{}, out interface{}) error {
	return s.read(ctx, func() error {
		idx, err := s.indexOf(kind, id)
		if err != nil {
			return err
		}
		if idx < 0 {
			return ErrNoDocuments
		}
		return bson.Unmarshal(s.docs[kind][idx], out)
	})
}

func (s *LocalStore) Find(ctx context.Context, kind model.Kind, filter bson.M, opts FindOptions) (Cursor, error) {
	var found []bson.Raw
	err := s.read(ctx, func() error {
		for _, doc := range s.docs[kind] {
			ok, err := matches(doc, filter)
			if err != nil {
				return err
			}
			if ok {
				found = append(found, doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opts.SortBy != "" {
		sort.SliceStable(found, func(i, j int) bool {
			c := compareValues(found[i].Lookup(opts.SortBy), found[j].Lookup(opts.SortBy))
			if opts.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	return &localCursor{docs: found}, nil
}

func (s *LocalStore) Count(ctx context.Context, kind model.Kind, filter bson.M) (int64, error) {
	var n int64
	err := s.read(ctx, func() error {
		for _, doc := range s.docs[kind] {
			ok, err := matches(doc, filter)
			if err != nil {
				return err
			}
			if ok {
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *LocalStore) Replace(ctx context.Context, kind model.Kind, id interface{}, doc interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return s.write(ctx, func() error {
		idx, err := s.indexOf(kind, id)
		if err != nil {
			return err
		}
		if idx < 0 {
			return ErrNoDocuments
		}
		if s.violatesUnique(kind, raw, idx) {
			return ErrDuplicateKey
		}
		s.docs[kind][idx] = raw
		return nil
	})
}

func (s *LocalStore) Delete(ctx context.Context, kind model.Kind, id interface{}) error {
	return s.write(ctx, func() error {
		idx, err := s.indexOf(kind, id)
		if err != nil {
			return err
		}
		if idx < 0 {
			return ErrNoDocuments
		}
		docs := s.docs[kind]
		s.docs[kind] = append(docs[:idx:idx], docs[idx+1:]...)
		return nil
	})
}

func (s *LocalStore) DeleteMany(ctx context.Context, kind model.Kind, filter bson.M) (int64, error) {
	var deleted int64
	err := s.write(ctx, func() error {
		kept := make([]bson.Raw, 0, len(s.docs[kind]))
		for _, doc := range s.docs[kind] {
			ok, err := matches(doc, filter)
			if err != nil {
				return err
			}
			if ok {
				deleted++
				continue
			}
			kept = append(kept, doc)
		}
		s.docs[kind] = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *LocalStore) EnsureUnique(ctx context.Context, kind model.Kind, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	joined := strings.Join(keys, ",")
	for _, existing := range s.uniq[kind] {
		if strings.Join(existing, ",") == joined {
			return nil
		}
	}
	s.uniq[kind] = append(s.uniq[kind], keys)
	return nil
}

func (s *LocalStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit()
}

func (s *LocalStore) indexOf(kind model.Kind, id interface{}) (int, error) {
	for i, doc := range s.docs[kind] {
		ok, err := matches(doc, bson.M{"_id": id})
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

// violatesUnique reports whether raw collides with a document other than the
// one at position skip on any unique key set of kind.
func (s *LocalStore) violatesUnique(kind model.Kind, raw bson.Raw, skip int) bool {
	newId := raw.Lookup("_id")
	for i, doc := range s.docs[kind] {
		if i != skip && doc.Lookup("_id").Equal(newId) {
			return true
		}
	}
	for _, keys := range s.uniq[kind] {
		for i, doc := range s.docs[kind] {
			if i == skip {
				continue
			}
			same := true
			for _, key := range keys {
				if !doc.Lookup(key).Equal(raw.Lookup(key)) {
					same = false
					break
				}
			}
			if same {
				return true
			}
		}
	}
	return false
}

func matches(doc bson.Raw, filter bson.M) (bool, error) {
	for key, want := range filter {
		got, err := doc.LookupErr(key)
		if err != nil {
			return false, nil
		}
		t, data, err := bson.MarshalValue(want)
		if err != nil {
			return false, fmt.Errorf("filter on %v: %w", key, err)
		}
		if got.Type != t || !bytes.Equal(got.Value, data) {
			return false, nil
		}
	}
	return true, nil
}

func compareValues(a, b bson.RawValue) int {
	if a.Type != b.Type {
		return int(a.Type) - int(b.Type)
	}
	switch a.Type {
	case bsontype.String:
		return strings.Compare(a.StringValue(), b.StringValue())
	case bsontype.DateTime:
		return compareInt64(a.DateTime(), b.DateTime())
	case bsontype.Int32:
		return compareInt64(int64(a.Int32()), int64(b.Int32()))
	case bsontype.Int64:
		return compareInt64(a.Int64(), b.Int64())
	case bsontype.Double:
		switch x, y := a.Double(), b.Double(); {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case bsontype.ObjectID:
		return strings.Compare(a.ObjectID().Hex(), b.ObjectID().Hex())
	}
	return bytes.Compare(a.Value, b.Value)
}

func compareInt64(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

type localCursor struct {
	docs []bson.Raw
	pos  int
	cur  bson.Raw
}

func (c *localCursor) Next(ctx context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.cur = c.docs[c.pos]
	c.pos++
	return true
}

func (c *localCursor) Decode(val interface{}) error {
	return bson.Unmarshal(c.cur, val)
}

func (c *localCursor) Err() error                      { return nil }
func (c *localCursor) Close(ctx context.Context) error { return nil }
