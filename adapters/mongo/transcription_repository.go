package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
)

const (
	transcriptionsCollection = "transcriptions"
	countersCollection       = "counters"
	attachmentsBucket        = "attachments"
	referenceCounterID       = "transcription_reference"
)

// TranscriptionRepository implements repositories.TranscriptionRepository on
// MongoDB. Session documents live in one collection, binary attachments in a
// GridFS bucket, and references come from a counter document.
type TranscriptionRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
	bucket     *gridfs.Bucket
	format     entities.ReferenceFormat
	logger     *zap.Logger
}

// Ensure TranscriptionRepository implements the repository interface
var _ repositories.TranscriptionRepository = (*TranscriptionRepository)(nil)

// NewTranscriptionRepository creates a new MongoDB transcription repository
func NewTranscriptionRepository(db *mongo.Database, format entities.ReferenceFormat, logger *zap.Logger) (*TranscriptionRepository, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(attachmentsBucket))
	if err != nil {
		return nil, fmt.Errorf("failed to open attachments bucket: %w", err)
	}

	collection := db.Collection(transcriptionsCollection)

	// Create indexes for better performance
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "reference", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "created_at", Value: -1}},
			},
			{
				Keys: bson.D{{Key: "state", Value: 1}},
			},
			{
				Keys: bson.D{{Key: "api_transcription_id", Value: 1}},
			},
		})
		if err != nil {
			logger.Error("Failed to create transcription indexes", zap.Error(err))
		} else {
			logger.Info("Transcription indexes created successfully")
		}
	}()

	return &TranscriptionRepository{
		collection: collection,
		counters:   db.Collection(countersCollection),
		bucket:     bucket,
		format:     format,
		logger:     logger,
	}, nil
}

// nextReference increments the shared counter and formats the new value
func (r *TranscriptionRepository) nextReference(ctx context.Context) (string, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": referenceCounterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return "", fmt.Errorf("failed to advance reference sequence: %w", err)
	}
	return r.format.Format(counter.Seq), nil
}

// Create implements repositories.TranscriptionRepository
func (r *TranscriptionRepository) Create(ctx context.Context, session *entities.TranscriptionSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	ref, err := r.nextReference(ctx)
	if err != nil {
		return err
	}
	if err := session.AssignReference(ref); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		r.logger.Error("Failed to create transcription", zap.Error(err), zap.String("transcriptionID", session.ID))
		return fmt.Errorf("failed to create transcription: %w", err)
	}

	r.logger.Info("Transcription created",
		zap.String("transcriptionID", session.ID),
		zap.String("reference", session.Reference))
	return nil
}

// GetByID implements repositories.TranscriptionRepository
func (r *TranscriptionRepository) GetByID(ctx context.Context, id string) (*entities.TranscriptionSession, error) {
	var session entities.TranscriptionSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrSessionNotFound
		}
		r.logger.Error("Failed to get transcription by ID", zap.Error(err), zap.String("transcriptionID", id))
		return nil, err
	}
	return &session, nil
}

// List implements repositories.TranscriptionRepository
func (r *TranscriptionRepository) List(ctx context.Context, limit int) ([]*entities.TranscriptionSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcriptions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := make([]*entities.TranscriptionSession, 0)
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode transcriptions: %w", err)
	}
	return sessions, nil
}

// Update implements repositories.TranscriptionRepository
func (r *TranscriptionRepository) Update(ctx context.Context, id string, patch entities.SessionPatch) error {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		r.logger.Error("Failed to update transcription", zap.Error(err), zap.String("transcriptionID", id))
		return fmt.Errorf("failed to update transcription: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrSessionNotFound
	}
	return nil
}

// PutAttachment implements repositories.TranscriptionRepository. The
// payload goes to GridFS first, then the session points at it; the file it
// replaces is removed afterwards.
func (r *TranscriptionRepository) PutAttachment(ctx context.Context, id string, attachment entities.Attachment) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	previous := session.AttachmentRef(attachment.Kind)

	fileID, err := r.bucket.UploadFromStream(attachment.Filename, bytes.NewReader(attachment.Data),
		options.GridFSUpload().SetMetadata(bson.M{
			"transcription_id": id,
			"kind":             string(attachment.Kind),
			"content_type":     attachment.Kind.ContentType(),
		}))
	if err != nil {
		return fmt.Errorf("failed to upload %s attachment: %w", attachment.Kind, err)
	}

	ref := &entities.AttachmentRef{
		Filename: attachment.Filename,
		FileID:   fileID.Hex(),
		Size:     int64(len(attachment.Data)),
		StoredAt: time.Now().UTC(),
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		attachment.Kind.FieldName(): ref,
		"updated_at":                ref.StoredAt,
	}})
	if err != nil || result.MatchedCount == 0 {
		r.removeFile(ctx, fileID)
		if err != nil {
			return fmt.Errorf("failed to attach %s: %w", attachment.Kind, err)
		}
		return repositories.ErrSessionNotFound
	}

	if previous != nil && previous.FileID != "" {
		if oldID, err := primitive.ObjectIDFromHex(previous.FileID); err == nil {
			r.removeFile(ctx, oldID)
		}
	}

	r.logger.Info("Attachment stored",
		zap.String("transcriptionID", id),
		zap.String("kind", string(attachment.Kind)),
		zap.String("filename", attachment.Filename),
		zap.Int("bytes", len(attachment.Data)))
	return nil
}

// GetAttachment implements repositories.TranscriptionRepository
func (r *TranscriptionRepository) GetAttachment(ctx context.Context, id string, kind entities.AttachmentKind) (*entities.Attachment, error) {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ref := session.AttachmentRef(kind)
	if ref == nil || ref.FileID == "" {
		return nil, repositories.ErrAttachmentNotFound
	}

	fileID, err := primitive.ObjectIDFromHex(ref.FileID)
	if err != nil {
		return nil, fmt.Errorf("invalid attachment file ID %q: %w", ref.FileID, err)
	}

	var buf bytes.Buffer
	if _, err := r.bucket.DownloadToStream(fileID, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, repositories.ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("failed to download %s attachment: %w", kind, err)
	}

	return &entities.Attachment{
		Kind:     kind,
		Filename: ref.Filename,
		Data:     buf.Bytes(),
	}, nil
}

func (r *TranscriptionRepository) removeFile(ctx context.Context, fileID primitive.ObjectID) {
	if err := r.bucket.DeleteContext(ctx, fileID); err != nil {
		r.logger.Warn("Failed to remove attachment file", zap.String("fileID", fileID.Hex()), zap.Error(err))
	}
}
