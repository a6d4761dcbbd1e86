package credentials

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// credentialDoc is the Mongo document shape: one per token.
type credentialDoc struct {
	Token string `bson:"token"`
	Name  string `bson:"name"`
}

// MongoStore is a Store backed by a MongoDB collection, for deployments that
// want credentials loaded from a real datastore instead of held in process
// memory. It satisfies the same Store interface as MemoryStore, so the
// server never needs to know which backend is in use.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore returns a Store backed by the given collection. Callers are
// responsible for establishing the mongo.Client connection beforehand.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// Lookup implements Store.
func (s *MongoStore) Lookup(token string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var doc credentialDoc
	err := s.coll.FindOne(ctx, bson.M{"token": token}).Decode(&doc)
	if err != nil {
		return "", false
	}
	return doc.Name, true
}

// NameMatches implements Store.
func (s *MongoStore) NameMatches(token, name string) bool {
	stored, ok := s.Lookup(token)
	if !ok {
		return false
	}
	return stored == name
}

// Set implements Store, upserting the (token, name) pair.
func (s *MongoStore) Set(name, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	opts := options.Update().SetUpsert(true)
	s.coll.UpdateOne(ctx,
		bson.M{"token": token},
		bson.M{"$set": bson.M{"name": name}},
		opts,
	)
}

// Remove implements Store.
func (s *MongoStore) Remove(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	s.coll.DeleteOne(ctx, bson.M{"token": token})
}
