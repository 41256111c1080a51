// Package mongo implements the Datastore interface backed by MongoDB.
//
// Expiry is enforced twice: a TTL index lets the server reap dead records
// in the background, and every read filters on expires_at so records the
// TTL monitor has not swept yet are still invisible.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/tourplanner/travel-service/internal/config"
	"github.com/tourplanner/travel-service/internal/model"
	registrymigrate "github.com/tourplanner/travel-service/internal/registry/migrate"
	registrystore "github.com/tourplanner/travel-service/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registrystore.Datastore, error) {
			cfg := config.FromContext(ctx)
			opts := options.Client().ApplyURI(cfg.DBURL)
			if cfg.DBMaxOpenConns > 0 {
				opts.SetMaxPoolSize(uint64(cfg.DBMaxOpenConns))
			}
			if cfg.DBMaxIdleConns > 0 {
				opts.SetMinPoolSize(uint64(cfg.DBMaxIdleConns))
			}
			client, err := mongo.Connect(opts)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
			}
			if err := client.Ping(ctx, nil); err != nil {
				return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
			}

			return &MongoStore{
				client: client,
				db:     client.Database(cfg.DBName),
			}, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &mongoMigrator{}})
}

type mongoMigrator struct{}

func (m *mongoMigrator) Name() string { return "mongo-schema" }
func (m *mongoMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart {
		return nil
	}
	if cfg.DatastoreType != "mongo" {
		return nil // skip if not using mongo
	}

	log.Info("Running migration", "name", m.Name())
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DBURL))
	if err != nil {
		return fmt.Errorf("mongo migration: failed to connect: %w", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.DBName)
	return ensureIndexes(ctx, db)
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	collections := map[string][]mongo.IndexModel{
		"messages": {
			// expireAfterSeconds=0 makes expires_at the absolute eviction time.
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0).SetName("messages_ttl"),
			},
			{Keys: bson.D{{Key: "owner_key", Value: 1}, {Key: "occurred_at", Value: -1}}},
		},
		"users": {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for name, indexes := range collections {
		db.CreateCollection(ctx, name)
		if len(indexes) > 0 {
			if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
				return fmt.Errorf("failed to create indexes for %s: %w", name, err)
			}
		}
	}
	return nil
}

// MongoStore implements registrystore.Datastore backed by MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

type messageDoc struct {
	ID         string    `bson:"_id"`
	OwnerKey   string    `bson:"owner_key"`
	Role       string    `bson:"role"`
	Content    string    `bson:"content"`
	OccurredAt time.Time `bson:"occurred_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	Name         string    `bson:"name"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (s *MongoStore) messages() *mongo.Collection { return s.db.Collection("messages") }
func (s *MongoStore) users() *mongo.Collection    { return s.db.Collection("users") }

func (s *MongoStore) AppendMessage(ctx context.Context, msg model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	doc := messageDoc{
		ID:         msg.ID,
		OwnerKey:   msg.OwnerKey,
		Role:       string(msg.Role),
		Content:    msg.Content,
		OccurredAt: msg.OccurredAt,
		ExpiresAt:  msg.ExpiresAt,
	}
	if _, err := s.messages().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *MongoStore) RecentMessages(ctx context.Context, q registrystore.HistoryQuery) ([]model.Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	// Newest first with the limit applied, then reversed, so the window
	// holds the most recent turns in chronological order.
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.messages().Find(ctx, bson.M{
		"owner_key":  q.OwnerKey,
		"expires_at": bson.M{"$gt": q.Now},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	msgs := make([]model.Message, len(docs))
	for i, d := range docs {
		msgs[len(docs)-1-i] = docToMessage(d)
	}
	return msgs, nil
}

func (s *MongoStore) ClearMessages(ctx context.Context, ownerKey string) (int64, error) {
	res, err := s.messages().DeleteMany(ctx, bson.M{"owner_key": ownerKey})
	if err != nil {
		return 0, fmt.Errorf("failed to clear messages: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) MessageStats(ctx context.Context, ownerKey string, now time.Time) (*model.HistoryStats, error) {
	filter := bson.M{
		"owner_key":  ownerKey,
		"expires_at": bson.M{"$gt": now},
	}
	count, err := s.messages().CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	stats := &model.HistoryStats{OwnerKey: ownerKey, Count: count}
	if count == 0 {
		return stats, nil
	}

	var oldest, newest messageDoc
	if err := s.messages().FindOne(ctx, filter,
		options.FindOne().SetSort(bson.D{{Key: "occurred_at", Value: 1}})).Decode(&oldest); err == nil {
		stats.Oldest = &oldest.OccurredAt
	}
	if err := s.messages().FindOne(ctx, filter,
		options.FindOne().SetSort(bson.D{{Key: "occurred_at", Value: -1}})).Decode(&newest); err == nil {
		stats.Newest = &newest.OccurredAt
	}
	return stats, nil
}

func (s *MongoStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	// The TTL monitor handles this natively; sweeping here keeps reaper
	// metrics meaningful and covers deployments with TTL disabled.
	res, err := s.messages().DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	doc := userDoc{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	}
	if _, err := s.users().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &registrystore.ConflictError{Message: "email already registered"}
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &user, nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var doc userDoc
	err := s.users().FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &registrystore.NotFoundError{Resource: "user", ID: email}
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &model.User{
		ID:           doc.ID,
		Email:        doc.Email,
		Name:         doc.Name,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	return ensureIndexes(ctx, s.db)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func docToMessage(d messageDoc) model.Message {
	return model.Message{
		ID:         d.ID,
		OwnerKey:   d.OwnerKey,
		Role:       model.Role(d.Role),
		Content:    d.Content,
		OccurredAt: d.OccurredAt,
		ExpiresAt:  d.ExpiresAt,
	}
}
