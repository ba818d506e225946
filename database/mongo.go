package database

import (
	"conference-webapp/model"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps every kind in its own collection of one database.
type MongoStore struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
}

// DBInit connects to connString and pings the server before returning.
// Transactions need a replica set; with useTransactions false,
// WithTransaction runs its function without one.
func DBInit(ctx context.Context, connString, database string, useTransactions bool) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(connString)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the db: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("db is not available: %w", err)
	}

	return &MongoStore{
		client:       client,
		db:           client.Database(database),
		transactions: useTransactions,
	}, nil
}

func (s *MongoStore) collection(kind model.Kind) *mongo.Collection {
	return s.db.Collection(string(kind))
}

func (s *MongoStore) Insert(ctx context.Context, kind model.Kind, doc interface{}) error {
	if _, err := s.collection(kind).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, kind model.Kind, id interface{}, out interface{}) error {
	err := s.collection(kind).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNoDocuments
	}
	return err
}

func (s *MongoStore) Find(ctx context.Context, kind model.Kind, filter bson.M, opts FindOptions) (Cursor, error) {
	if filter == nil {
		filter = bson.M{}
	}
	sortBy, direction := "_id", 1
	if opts.SortBy != "" {
		sortBy = opts.SortBy
	}
	if opts.Descending {
		direction = -1
	}
	findOpts := options.Find().SetSort(bson.D{{Key: sortBy, Value: direction}})

	cur, err := s.collection(kind).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *MongoStore) Count(ctx context.Context, kind model.Kind, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	return s.collection(kind).CountDocuments(ctx, filter)
}

func (s *MongoStore) Replace(ctx context.Context, kind model.Kind, id interface{}, doc interface{}) error {
	res, err := s.collection(kind).ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoDocuments
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, kind model.Kind, id interface{}) error {
	res, err := s.collection(kind).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoDocuments
	}
	return nil
}

func (s *MongoStore) DeleteMany(ctx context.Context, kind model.Kind, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	res, err := s.collection(kind).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) EnsureUnique(ctx context.Context, kind model.Kind, keys ...string) error {
	index := bson.D{}
	for _, key := range keys {
		index = append(index, bson.E{Key: key, Value: 1})
	}
	name := string(kind) + "_" + strings.Join(keys, "_") + "_unique"

	_, err := s.collection(kind).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    index,
		Options: options.Index().SetUnique(true).SetName(name),
	})
	if err != nil {
		return fmt.Errorf("%v indexes: %w", kind, err)
	}
	return nil
}

// EnsureTTL lets the server remove documents once the time stored in field
// has passed.
func (s *MongoStore) EnsureTTL(ctx context.Context, kind model.Kind, field string) error {
	_, err := s.collection(kind).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName(string(kind) + "_" + field + "_ttl"),
	})
	if err != nil {
		return fmt.Errorf("%v ttl index: %w", kind, err)
	}
	return nil
}

func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
