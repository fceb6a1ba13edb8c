package sink

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
)

const runsCollection = "runs"

var ErrRunNotFound = errors.New("run not found")

// MongoRunRepo stores one document per run report.
type MongoRunRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoRunRepo(mongoURL, dbName string) (*MongoRunRepo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	coll := client.Database(dbName).Collection(runsCollection)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "region", Value: 1}, {Key: "finished_at", Value: -1}}},
		{Keys: bson.D{{Key: "state", Value: 1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Log.Warn().Err(err).Str("collection", runsCollection).Msg("create indexes failed")
	}

	return &MongoRunRepo{client: client, coll: coll}, nil
}

func (r *MongoRunRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *MongoRunRepo) Name() string {
	return "mongo"
}

func (r *MongoRunRepo) Write(ctx context.Context, report *models.RunReport, _ []models.QuoteRecord) error {
	return r.Save(ctx, report)
}

// Save upserts the report by run ID.
func (r *MongoRunRepo) Save(ctx context.Context, report *models.RunReport) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": report.RunID}, report, opts)
	return err
}

// LastByRegion returns the most recently finished run for region.
func (r *MongoRunRepo) LastByRegion(ctx context.Context, region string) (*models.RunReport, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "finished_at", Value: -1}})

	var report models.RunReport
	err := r.coll.FindOne(ctx, bson.M{"region": region}, opts).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}
