package database

import (
	"conference-webapp/model"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNoDocuments  = errors.New("no documents in result")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Cursor walks the result of a Find. *mongo.Cursor satisfies it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// FindOptions selects the order of a Find. The zero value keeps insertion order.
type FindOptions struct {
	SortBy     string
	Descending bool
}

// Store is the persistence boundary. Filters are equality matches on top level
// fields. Every method taking an id matches it against "_id".
type Store interface {
	Insert(ctx context.Context, kind model.Kind, doc interface{}) error
	FindByID(ctx context.Context, kind model.Kind, id interface{}, out interface{}) error
	Find(ctx context.Context, kind model.Kind, filter bson.M, opts FindOptions) (Cursor, error)
	Count(ctx context.Context, kind model.Kind, filter bson.M) (int64, error)
	Replace(ctx context.Context, kind model.Kind, id interface{}, doc interface{}) error
	Delete(ctx context.Context, kind model.Kind, id interface{}) error
	DeleteMany(ctx context.Context, kind model.Kind, filter bson.M) (int64, error)
	EnsureUnique(ctx context.Context, kind model.Kind, keys ...string) error
	// WithTransaction runs fn so that either all of its writes persist or none
	// do. Stores are free to run fn directly when they cannot isolate it.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Close(ctx context.Context) error
}

// FindOne decodes the first document matching filter into out.
func FindOne(ctx context.Context, store Store, kind model.Kind, filter bson.M, out interface{}) error {
	cur, err := store.Find(ctx, kind, filter, FindOptions{})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return err
		}
		return ErrNoDocuments
	}
	return cur.Decode(out)
}
