package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"labeler_server/adapter/out/persistence"
	"labeler_server/core/domain"
	"labeler_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// States above this size are stored gzip-compressed.
const compressionThreshold = 4096

// modelStateDocument is the stored document. State holds the codec output.
type modelStateDocument struct {
	ID           string    `bson:"_id"`
	Version      int       `bson:"version"`
	State        []byte    `bson:"state"`
	Compressed   bool      `bson:"compressed"`
	Labels       []string  `bson:"labels"`
	ExampleCount int       `bson:"example_count"`
	IsTrained    bool      `bson:"is_trained"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// ModelStore implements out.ModelStore with one document replaced per save.
type ModelStore struct {
	collection *mongo.Collection
	stateID    string
	codec      *persistence.Codec
}

var (
	_ out.ModelStore    = (*ModelStore)(nil)
	_ out.HealthChecker = (*ModelStore)(nil)
)

// NewModelStore creates a MongoDB-backed model store.
func NewModelStore(collection *mongo.Collection, stateID string, codec *persistence.Codec) *ModelStore {
	return &ModelStore{collection: collection, stateID: stateID, codec: codec}
}

func (s *ModelStore) Name() string { return "mongodb" }

func (s *ModelStore) Load(ctx context.Context) (*domain.ModelState, error) {
	var doc modelStateDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": s.stateID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find model state: %w", err)
	}

	data := doc.State
	if doc.Compressed {
		if data, err = decompress(doc.State); err != nil {
			return nil, fmt.Errorf("%w: %v", persistence.ErrCorruptState, err)
		}
	}
	return s.codec.Decode(data)
}

func (s *ModelStore) Save(ctx context.Context, state *domain.ModelState) error {
	data, err := s.codec.Encode(state)
	if err != nil {
		return err
	}

	doc := modelStateDocument{
		ID:           s.stateID,
		Version:      domain.ModelStateVersion,
		State:        data,
		Labels:       state.Corpus.DistinctLabels(),
		ExampleCount: state.Corpus.Len(),
		IsTrained:    state.IsTrained,
		UpdatedAt:    state.UpdatedAt,
	}
	if len(data) > compressionThreshold {
		if doc.State, err = compress(data); err != nil {
			return fmt.Errorf("compress model state: %w", err)
		}
		doc.Compressed = true
	}

	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": s.stateID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace model state: %w", err)
	}
	return nil
}

func (s *ModelStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, readpref.Primary())
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
