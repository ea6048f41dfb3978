package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/codewandler/lrukv-go/internal/keyenc"
	"github.com/codewandler/lrukv-go/ports/kv"
)

// document is one key. The id is the hex-encoded key: BSON strings must
// be valid UTF-8 and binary ids do not sort bytewise.
type document struct {
	ID    string `bson:"_id"`
	Value []byte `bson:"value"`
}

// Store is a kv.Store over a single collection.
type Store struct {
	coll   *mongo.Collection
	client *mongo.Client // set when the store owns the client
	log    *slog.Logger
}

// NewStore uses the named collection of db. With createIfMissing the
// collection is created when absent, otherwise a missing collection is an
// error. log may be nil.
func NewStore(ctx context.Context, db *mongo.Database, collection string, createIfMissing bool, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return nil, err
	}
	if !slices.Contains(names, collection) {
		if !createIfMissing {
			return nil, fmt.Errorf("%w: %s.%s", ErrCollectionNotFound, db.Name(), collection)
		}
		if err := db.CreateCollection(ctx, collection); err != nil {
			return nil, fmt.Errorf("failed to create collection %s: %w", collection, err)
		}
	}

	return &Store{
		coll: db.Collection(collection),
		log:  log.With(slog.String("collection", collection)),
	}, nil
}

// Opener connects using cfg and opens the collection named by location in
// cfg.Database.
func Opener(cfg Config) kv.Opener {
	return func(ctx context.Context, location string, createIfMissing bool) (kv.Store, error) {
		client, err := Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s, err := NewStore(ctx, client.Database(cfg.Database), location, createIfMissing, cfg.Log)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		s.client = client
		return s, nil
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: keyenc.Encode(key)}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return valueOf(doc), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	id := keyenc.Encode(key)
	_, err := s.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		document{ID: id, Value: value},
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: keyenc.Encode(key)}})
	return err
}

func (s *Store) Iterate(ctx context.Context, fn func(key string, value []byte) bool) error {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close(ctx) }()

	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		key, err := keyenc.Decode(doc.ID)
		if err != nil {
			s.log.Warn("skipping foreign document", slog.String("id", doc.ID))
			continue
		}
		if !fn(key, valueOf(doc)) {
			return nil
		}
	}
	return cur.Err()
}

// Close disconnects the client if the store created it.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

func valueOf(doc document) []byte {
	if doc.Value == nil {
		return []byte{}
	}
	return doc.Value
}

var (
	_ kv.Store    = (*Store)(nil)
	_ kv.Iterable = (*Store)(nil)
)
