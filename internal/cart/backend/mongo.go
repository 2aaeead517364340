package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spice-admin/customer-app-sub000/internal/cart"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cartsCollection = "carts"

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// cartDocument keeps the cart as the same JSON blob the other backends store.
type cartDocument struct {
	OwnerID   string    `bson:"_id"`
	Items     string    `bson:"items"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Mongo struct {
	collection *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{collection: db.Collection(cartsCollection)}
}

func (m *Mongo) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetName("carts_updated_at"),
	})
	if err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}

func (m *Mongo) For(ownerID string) cart.Persistence {
	return mongoCart{collection: m.collection, owner: ownerID}
}

type mongoCart struct {
	collection *mongo.Collection
	owner      string
}

func (c mongoCart) Load(ctx context.Context) ([]byte, error) {
	var doc cartDocument
	err := c.collection.FindOne(ctx, bson.M{"_id": c.owner}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return []byte(doc.Items), nil
}

func (c mongoCart) Save(ctx context.Context, data []byte) error {
	filter := bson.M{"_id": c.owner}
	update := bson.M{"$set": bson.M{
		"items":      string(data),
		"updated_at": time.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := c.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}
