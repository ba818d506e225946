package database

import (
	"conference-webapp/errors"
	"conference-webapp/model"
	"context"
	stderrors "errors"
	"fmt"
	"iter"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fields is a partial update: field name (bson) to new value.
type Fields = bson.M

// Entities enforces the field level rules of the four conference graph kinds
// on top of a Store. It knows nothing about relationships between them.
type Entities struct {
	store Store
	clock func() time.Time
}

func NewEntities(store Store) *Entities {
	return &Entities{store: store, clock: time.Now}
}

// WithClock replaces the time source used for created/updated stamps.
func (e *Entities) WithClock(clock func() time.Time) *Entities {
	e.clock = clock
	return e
}

func (e *Entities) Store() Store { return e.store }

func (e *Entities) now() time.Time {
	return e.clock().UTC().Truncate(time.Millisecond)
}

// Create applies defaults, validates, assigns a fresh id and persists rec.
func (e *Entities) Create(ctx context.Context, rec model.Record) error {
	rec.Normalize()
	rec.ApplyDefaults()
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.SetId(primitive.NewObjectID())
	rec.Stamp(e.now())

	if err := e.store.Insert(ctx, rec.Kind(), rec); err != nil {
		return fmt.Errorf("insert %v: %w", rec.Kind().Singular(), err)
	}
	return nil
}

// Get loads the record with id into rec.
func (e *Entities) Get(ctx context.Context, id primitive.ObjectID, rec model.Record) error {
	err := e.store.FindByID(ctx, rec.Kind(), id, rec)
	if stderrors.Is(err, ErrNoDocuments) {
		return &errors.NotFoundError{Kind: rec.Kind().Singular(), ID: id.Hex()}
	}
	if err != nil {
		return fmt.Errorf("get %v: %w", rec.Kind().Singular(), err)
	}
	return nil
}

// Exists reports whether a record of kind with id is present.
func (e *Entities) Exists(ctx context.Context, kind model.Kind, id primitive.ObjectID) (bool, error) {
	n, err := e.store.Count(ctx, kind, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("lookup %v: %w", kind.Singular(), err)
	}
	return n > 0, nil
}

// Update merges fields into the stored record and writes the result back.
// Fields that are not supplied keep their value. On success rec holds the
// merged record.
func (e *Entities) Update(ctx context.Context, id primitive.ObjectID, rec model.Record, fields Fields) error {
	if _, ok := fields["_id"]; ok {
		return errors.Invalid("_id", "identifier cannot be changed")
	}
	if err := e.Get(ctx, id, rec); err != nil {
		return err
	}

	current, err := bson.Marshal(rec)
	if err != nil {
		return err
	}
	merged := bson.M{}
	if err := bson.Unmarshal(current, &merged); err != nil {
		return err
	}
	for key, value := range fields {
		merged[key] = value
	}
	encoded, err := bson.Marshal(merged)
	if err != nil {
		return err
	}
	if err := bson.Unmarshal(encoded, rec); err != nil {
		return errors.Invalid("fields", err.Error())
	}

	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.Stamp(e.now())

	err = e.store.Replace(ctx, rec.Kind(), id, rec)
	if stderrors.Is(err, ErrNoDocuments) {
		return &errors.NotFoundError{Kind: rec.Kind().Singular(), ID: id.Hex()}
	}
	if err != nil {
		return fmt.Errorf("update %v: %w", rec.Kind().Singular(), err)
	}
	return nil
}

// Delete removes a single record. Relationship side effects are the caller's
// business.
func (e *Entities) Delete(ctx context.Context, kind model.Kind, id primitive.ObjectID) error {
	err := e.store.Delete(ctx, kind, id)
	if stderrors.Is(err, ErrNoDocuments) {
		return &errors.NotFoundError{Kind: kind.Singular(), ID: id.Hex()}
	}
	if err != nil {
		return fmt.Errorf("delete %v: %w", kind.Singular(), err)
	}
	return nil
}

// Count returns the number of records of kind matching filter.
func (e *Entities) Count(ctx context.Context, kind model.Kind, filter bson.M) (int, error) {
	n, err := e.store.Count(ctx, kind, filter)
	if err != nil {
		return 0, fmt.Errorf("count %v: %w", kind, err)
	}
	return int(n), nil
}

// List returns the records of kind matching filter as a lazy sequence. Every
// iteration queries the store again, so the sequence can be ranged over more
// than once.
func (e *Entities) List(ctx context.Context, kind model.Kind, filter bson.M, opts FindOptions) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		cur, err := e.store.Find(ctx, kind, filter, opts)
		if err != nil {
			yield(nil, fmt.Errorf("list %v: %w", kind, err))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			rec := model.New(kind)
			if rec == nil {
				yield(nil, fmt.Errorf("list %v: not an entity kind", kind))
				return
			}
			if err := cur.Decode(rec); err != nil {
				yield(nil, fmt.Errorf("decode %v: %w", kind.Singular(), err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, fmt.Errorf("list %v: %w", kind, err))
		}
	}
}

// List is the typed form of Entities.List.
func List[T any, PT interface {
	*T
	model.Record
}](ctx context.Context, e *Entities, filter bson.M, opts FindOptions) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		for rec, err := range e.List(ctx, PT(new(T)).Kind(), filter, opts) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(any(rec).(*T), nil) {
				return
			}
		}
	}
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := []T{}
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
