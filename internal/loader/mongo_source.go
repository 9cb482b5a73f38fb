package loader

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSource exposes a collection of raw question records as a single
// document named after the collection.
type MongoSource struct {
	col *mongo.Collection
}

// ConnectMongo dials uri and verifies the connection.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("MONGO_URI is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

func NewMongoSource(client *mongo.Client, dbName, collection string) *MongoSource {
	if dbName == "" {
		dbName = "sprinklerprep"
	}
	if collection == "" {
		collection = "questions"
	}
	return &MongoSource{col: client.Database(dbName).Collection(collection)}
}

func (s *MongoSource) Name() string { return "mongo" }

func (s *MongoSource) List(ctx context.Context) ([]string, error) {
	return []string{s.col.Name() + ".json"}, nil
}

// Fetch returns the whole collection as a JSON array so it goes through the
// same parse path as file documents.
func (s *MongoSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	cur, err := s.col.Find(ctx, bson.D{}, options.Find().SetProjection(bson.M{"_id": 0}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return recordsToJSON(docs)
}

// recordsToJSON converts driver documents to plain JSON. bson.M values
// marshal through encoding/json directly except for nested bson.A/bson.D,
// which are flattened first.
func recordsToJSON(docs []bson.M) ([]byte, error) {
	out := make([]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, plainValue(d))
	}
	return json.Marshal(out)
}

func plainValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = plainValue(val)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plainValue(e.Value)
		}
		return m
	case bson.A:
		a := make([]any, len(t))
		for i, val := range t {
			a[i] = plainValue(val)
		}
		return a
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
