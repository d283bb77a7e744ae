// Package mongostore is the document-database Store driver.
package mongostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stellarlinkco/daypost/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Store struct {
	client   *mongo.Client
	database *mongo.Database
	users    *mongo.Collection
	events   *mongo.Collection
}

var _ store.Store = (*Store)(nil)

type eventDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	TgID      int64              `bson:"tgId"`
	Text      string             `bson:"text"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// Open connects, pings the primary and ensures indexes. A failed ping is
// reported as store.ErrUnavailable.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, store.Unavailable("connect mongo", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, store.Unavailable("ping mongo", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:   client,
		database: db,
		users:    db.Collection(store.CollectionUsers),
		events:   db.Collection(store.CollectionEvents),
	}
	if err := s.initialize(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Printf("[store] connected to mongo database %s", dbName)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tgId", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("create users indexes: %w", err)
	}
	if _, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tgId", Value: 1}, {Key: "createdAt", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create events indexes: %w", err)
	}
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, u store.User) (store.User, error) {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	filter := bson.M{"tgId": u.TgID}
	update := bson.M{"$setOnInsert": userInsertFields(u, createdAt)}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var out store.User
	if err := s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out); err != nil {
		return store.User{}, store.Unavailable("upsert user", err)
	}
	return out, nil
}

// userInsertFields leaves optional attributes out instead of storing empty
// strings.
func userInsertFields(u store.User, createdAt time.Time) bson.M {
	fields := bson.M{
		"tgId":      u.TgID,
		"firstName": u.FirstName,
		"isBot":     u.IsBot,
		"createdAt": createdAt,
	}
	if u.LastName != "" {
		fields["lastName"] = u.LastName
	}
	if u.Username != "" {
		fields["username"] = u.Username
	}
	return fields
}

func (s *Store) ListUsers(ctx context.Context) ([]store.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "tgId", Value: 1}}))
	if err != nil {
		return nil, store.Unavailable("list users", err)
	}
	defer cursor.Close(ctx)

	users := make([]store.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, store.Unavailable("decode users", err)
	}
	return users, nil
}

func (s *Store) InsertEvent(ctx context.Context, e store.Event) (store.Event, error) {
	doc := eventDoc{TgID: e.TgID, Text: e.Text, CreatedAt: e.CreatedAt}
	res, err := s.events.InsertOne(ctx, doc)
	if err != nil {
		return store.Event{}, store.Unavailable("insert event", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		e.ID = oid.Hex()
	} else {
		e.ID = fmt.Sprint(res.InsertedID)
	}
	return e, nil
}

func (s *Store) FindEvents(ctx context.Context, f store.EventFilter) ([]store.Event, error) {
	cursor, err := s.events.Find(ctx, eventFilter(f), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, store.Unavailable("find events", err)
	}
	defer cursor.Close(ctx)

	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, store.Unavailable("decode events", err)
	}
	events := make([]store.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, store.Event{
			ID:        d.ID.Hex(),
			TgID:      d.TgID,
			Text:      d.Text,
			CreatedAt: d.CreatedAt,
		})
	}
	return events, nil
}

func (s *Store) CountEvents(ctx context.Context, f store.EventFilter) (int64, error) {
	n, err := s.events.CountDocuments(ctx, eventFilter(f))
	if err != nil {
		return 0, store.Unavailable("count events", err)
	}
	return n, nil
}

func (s *Store) DeleteEvents(ctx context.Context, f store.EventFilter) (int64, error) {
	res, err := s.events.DeleteMany(ctx, eventFilter(f))
	if err != nil {
		return 0, store.Unavailable("delete events", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return store.Unavailable("ping mongo", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func eventFilter(f store.EventFilter) bson.M {
	return bson.M{
		"tgId": f.TgID,
		"createdAt": bson.M{
			"$gte": f.From,
			"$lte": f.To,
		},
	}
}
