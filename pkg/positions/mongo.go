package positions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

// Mongo defaults.
const (
	DefaultMongoDatabase   = "astrolabe"
	DefaultMongoCollection = "positions"
)

// MongoStore keeps one document per project. Declaration names contain
// dots, so positions are stored as an array rather than a sub-document.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoDoc struct {
	Project   string       `bson:"_id"`
	Positions []mongoEntry `bson:"positions"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

type mongoEntry struct {
	Node string  `bson:"node"`
	X    float64 `bson:"x"`
	Y    float64 `bson:"y"`
	Z    float64 `bson:"z"`
}

// NewMongoStore wraps an existing collection.
func NewMongoStore(client *mongo.Client, coll *mongo.Collection) *MongoStore {
	return &MongoStore{client: client, coll: coll}
}

// DialMongo connects to a mongodb:// URL and pings the primary.
func DialMongo(ctx context.Context, url, database, collection string) (*MongoStore, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url).SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStore(client, client.Database(database).Collection(collection)), nil
}

// Load fetches the project's document.
func (s *MongoStore) Load(ctx context.Context, project string) (map[string]geom.Vec3, error) {
	var doc mongoDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": project}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return map[string]geom.Vec3{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	return fromEntries(doc.Positions), nil
}

// Save upserts the project's document.
func (s *MongoStore) Save(ctx context.Context, project string, positions map[string]geom.Vec3) error {
	if err := Validate(positions); err != nil {
		return err
	}
	return s.replace(ctx, project, positions)
}

// Merge reads, merges and replaces the document. Concurrent merges to
// the same project may lose updates.
func (s *MongoStore) Merge(ctx context.Context, project string, positions map[string]geom.Vec3) (int, error) {
	if err := Validate(positions); err != nil {
		return 0, err
	}
	existing, err := s.Load(ctx, project)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return len(existing), nil
	}
	merged := merge(existing, positions)
	if err := s.replace(ctx, project, merged); err != nil {
		return 0, err
	}
	return len(merged), nil
}

func (s *MongoStore) replace(ctx context.Context, project string, positions map[string]geom.Vec3) error {
	doc := mongoDoc{Project: project, Positions: toEntries(positions), UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": project}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save positions: %w", err)
	}
	return nil
}

// Delete removes the project's document.
func (s *MongoStore) Delete(ctx context.Context, project string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": project}); err != nil {
		return fmt.Errorf("delete positions: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// toEntries flattens positions sorted by node ID.
func toEntries(positions map[string]geom.Vec3) []mongoEntry {
	out := make([]mongoEntry, 0, len(positions))
	for id, p := range positions {
		out = append(out, mongoEntry{Node: id, X: p.X, Y: p.Y, Z: p.Z})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

func fromEntries(entries []mongoEntry) map[string]geom.Vec3 {
	out := make(map[string]geom.Vec3, len(entries))
	for _, e := range entries {
		out[e.Node] = geom.Vec3{X: e.X, Y: e.Y, Z: e.Z}
	}
	return out
}

var _ Store = (*MongoStore)(nil)
