package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"triage_server/core/port/out"
)

// =============================================================================
// MongoDB Transcript Adapter
// =============================================================================

const (
	collectionHandoffs = "handoff_transcripts"

	defaultHandoffListLimit = 20
	// Archived transcripts are kept for a year.
	handoffRetention = 365 * 24 * time.Hour
)

var _ out.TranscriptArchive = (*TranscriptAdapter)(nil)

// TranscriptAdapter implements out.TranscriptArchive using MongoDB.
type TranscriptAdapter struct {
	collection *mongo.Collection
}

// NewTranscriptAdapter creates a new MongoDB transcript adapter.
func NewTranscriptAdapter(db *mongo.Database) *TranscriptAdapter {
	return &TranscriptAdapter{collection: db.Collection(collectionHandoffs)}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *TranscriptAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "ticket_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// handoffDocument wraps the record with the TTL field.
type handoffDocument struct {
	out.HandoffRecord `bson:",inline"`
	ExpiresAt         time.Time `bson:"expires_at"`
}

// ArchiveHandoff stores one handoff transcript.
func (a *TranscriptAdapter) ArchiveHandoff(ctx context.Context, record *out.HandoffRecord) error {
	if record == nil {
		return nil
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().UnixMilli()
	}

	doc := handoffDocument{
		HandoffRecord: *record,
		ExpiresAt:     time.UnixMilli(record.CreatedAt).Add(handoffRetention),
	}
	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to archive handoff: %w", err)
	}
	return nil
}

// ListHandoffs returns a user's archived handoffs, newest first.
func (a *TranscriptAdapter) ListHandoffs(ctx context.Context, user string, limit int) ([]*out.HandoffRecord, error) {
	if limit <= 0 || limit > defaultHandoffListLimit {
		limit = defaultHandoffListLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{"user_id": user}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list handoffs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []handoffDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode handoffs: %w", err)
	}

	records := make([]*out.HandoffRecord, 0, len(docs))
	for i := range docs {
		rec := docs[i].HandoffRecord
		records = append(records, &rec)
	}
	return records, nil
}
