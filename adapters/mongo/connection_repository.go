package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
)

const connectionsCollection = "connections"

// ConnectionRepository implements repositories.ConnectionRepository using MongoDB
type ConnectionRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.ConnectionRepository = (*ConnectionRepository)(nil)

// NewConnectionRepository creates a new MongoDB connection repository
func NewConnectionRepository(db *mongo.Database, logger *zap.Logger) *ConnectionRepository {
	return &ConnectionRepository{
		collection: db.Collection(connectionsCollection),
		logger:     logger,
	}
}

// EnsureIndexes creates the indexes used by listing and cleanup
func (r *ConnectionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "started_at", Value: -1}}},
		{Keys: bson.D{{Key: "ended_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create connection indexes: %w", err)
	}
	r.logger.Info("Connection indexes created successfully")
	return nil
}

// Save implements repositories.ConnectionRepository
func (r *ConnectionRepository) Save(ctx context.Context, record *entities.ConnectionRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": record.ID},
		record,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save connection record: %w", err)
	}
	return nil
}

// GetByID implements repositories.ConnectionRepository
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*entities.ConnectionRecord, error) {
	var record entities.ConnectionRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get connection record: %w", err)
	}
	return &record, nil
}

// ListRecent implements repositories.ConnectionRepository
func (r *ConnectionRepository) ListRecent(ctx context.Context, limit int) ([]*entities.ConnectionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list connection records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*entities.ConnectionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode connection records: %w", err)
	}
	return records, nil
}

// DeleteEndedBefore implements repositories.ConnectionRepository
func (r *ConnectionRepository) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{
		"ended_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete connection records: %w", err)
	}
	return result.DeletedCount, nil
}
