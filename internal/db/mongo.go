package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"style_spider/internal/config"
	"style_spider/internal/logging"
	"style_spider/internal/models"
)

// MongoDB mirrors spider results into a documents collection keyed by slug,
// plus one history entry per scrape attempt.
type MongoDB struct {
	client        *mongo.Client
	database      *mongo.Database
	documents     *mongo.Collection
	spiderHistory *mongo.Collection
	log           *zap.Logger
}

func NewMongoDB(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)

	d := &MongoDB{
		client:        client,
		database:      database,
		documents:     database.Collection(cfg.Collections.Documents),
		spiderHistory: database.Collection(cfg.Collections.SpiderHistory),
		log:           logging.OrNop(logger),
	}

	d.createIndexes(ctx)

	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := d.documents.Indexes().CreateOne(ctx, indexModel); err != nil {
		d.log.Warn("mongo: create slug index", zap.Error(err))
	}

	indexModel = mongo.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "slug", Value: 1}},
	}
	if _, err := d.spiderHistory.Indexes().CreateOne(ctx, indexModel); err != nil {
		d.log.Warn("mongo: create history index", zap.Error(err))
	}
}

// SaveDocument upserts doc by slug and bumps its scraped_count.
func (d *MongoDB) SaveDocument(ctx context.Context, doc *models.Document) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var updateDoc bson.M
	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("mongo: encode %s: %w", doc.Slug, err)
	}
	if err := bson.Unmarshal(data, &updateDoc); err != nil {
		return fmt.Errorf("mongo: encode %s: %w", doc.Slug, err)
	}
	delete(updateDoc, "scraped_count")

	update := bson.M{
		"$set": updateDoc,
		"$inc": bson.M{"scraped_count": 1},
	}

	opts := options.Update().SetUpsert(true)
	_, err = d.documents.UpdateOne(ctx, bson.M{"slug": doc.Slug}, update, opts)
	return err
}

func (d *MongoDB) SaveSpiderHistory(ctx context.Context, history *models.SpiderHistory) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := d.spiderHistory.InsertOne(ctx, history)
	return err
}

// GetRunStats aggregates the history of one spider run by status.
func (d *MongoDB) GetRunStats(ctx context.Context, runID string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "run_id", Value: runID}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := d.spiderHistory.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	stats := make(map[string]int, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
