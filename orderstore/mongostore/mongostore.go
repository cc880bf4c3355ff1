// Package mongostore reads and updates orders held in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kitchenedge/orders"
	"kitchenedge/orderstore"
)

// ErrConcurrentChange reports a status that moved between read and update.
var ErrConcurrentChange = errors.New("order status changed concurrently")

// Store is an orderstore.Store backed by MongoDB.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Open connects, pings and ensures the status index exists.
func Open(ctx context.Context, uri, database, collection string) (*Store, error) {
	opts := options.Client().ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	index := mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}}
	if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("create status index: %w", err)
	}

	log.Printf("mongostore: connected to %s.%s", database, collection)
	return &Store{client: client, collection: coll}, nil
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

func (s *Store) ListOpenOrders(ctx context.Context) ([]*orders.Order, error) {
	filter := bson.M{"status": bson.M{"$in": openStatuses()}}
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find open orders: %w", err)
	}
	defer cursor.Close(ctx)

	var list []*orders.Order
	for cursor.Next(ctx) {
		var doc orderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		o, err := doc.toOrder()
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return list, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	var doc orderDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, orderstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	return doc.toOrder()
}

// RequestStatusChange applies a lifecycle edge. The update is conditional on
// the status read, so a concurrent change is reported instead of overwritten.
func (s *Store) RequestStatusChange(ctx context.Context, id string, status orders.Status, extra orders.TransitionExtra) error {
	var cur struct {
		Status string `bson:"status"`
	}
	err := s.collection.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"status": 1})).Decode(&cur)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return orderstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read status of %s: %w", id, err)
	}

	from := orders.Status(cur.Status)
	set, err := statusUpdate(id, from, status, extra, time.Now().UTC())
	if err != nil {
		return err
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id, "status": cur.Status}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("order %s changed from %s while updating: %w", id, from, ErrConcurrentChange)
	}
	return nil
}

// Insert adds an order, replacing any document with the same id.
func (s *Store) Insert(ctx context.Context, o *orders.Order) error {
	doc := fromOrder(o)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": o.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return nil
}

func openStatuses() []string {
	return []string{string(orders.StatusReceived), string(orders.StatusPreparing), string(orders.StatusReady)}
}
