package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aluiziolira/go-crawl-books/models"
)

// MongoWriter inserts records into a MongoDB collection.
type MongoWriter struct {
	client     *mongo.Client
	collection *mongo.Collection
	runID      string

	mu    sync.Mutex
	count int
}

// NewMongoWriter connects to uri and verifies the server is reachable.
func NewMongoWriter(ctx context.Context, uri, database, collection, runID string) (*MongoWriter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoWriter{
		client:     client,
		collection: client.Database(database).Collection(collection),
		runID:      runID,
	}, nil
}

// Write inserts one document per book.
func (mw *MongoWriter) Write(books []*models.Book) error {
	if len(books) == 0 {
		return nil
	}
	docs := make([]any, len(books))
	for i, book := range books {
		docs[i] = mongoDocument(book, mw.runID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := mw.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}

	mw.mu.Lock()
	mw.count += len(books)
	total := mw.count
	mw.mu.Unlock()
	slog.Debug("books stored in mongodb", slog.Int("count", len(books)), slog.Int("total", total))
	return nil
}

// Close disconnects the client.
func (mw *MongoWriter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return mw.client.Disconnect(ctx)
}

// Validate ensures this run inserted at least one document.
func (mw *MongoWriter) Validate() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.count == 0 {
		return fmt.Errorf("mongodb collection received no documents for run %s", mw.runID)
	}
	return nil
}

// mongoDocument keeps absent fields as explicit nulls so every document
// carries the seven record keys.
func mongoDocument(book *models.Book, runID string) bson.D {
	return bson.D{
		{Key: "title", Value: nullable(book.Title)},
		{Key: "price", Value: nullable(book.Price)},
		{Key: "amount_in_stock", Value: nullable(book.AmountInStock)},
		{Key: "rating", Value: nullable(book.Rating)},
		{Key: "category", Value: nullable(book.Category)},
		{Key: "description", Value: nullable(book.Description)},
		{Key: "upc", Value: nullable(book.UPC)},
		{Key: "_url", Value: book.URL},
		{Key: "_run_id", Value: runID},
		{Key: "_scraped_at", Value: book.ScrapedAt},
	}
}
