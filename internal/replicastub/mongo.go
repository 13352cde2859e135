package replicastub

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoExecutor runs statements against a Mongo database, one collection per
// table. It only understands the narrow "SELECT/UPDATE ... WHERE key = N"
// shape the benchmark generator and msql grammar actually produce. A row
// document is {_id: key, val: value}.
type MongoExecutor struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoExecutor connects to uri and selects database dbName.
func NewMongoExecutor(ctx context.Context, uri, dbName string) (*MongoExecutor, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("replicastub: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("replicastub: mongo ping: %w", err)
	}
	return &MongoExecutor{client: client, db: client.Database(dbName)}, nil
}

var (
	mongoSelectRe = regexp.MustCompile(`(?is)^\s*SELECT\s+\*\s+FROM\s+([A-Za-z_][A-Za-z0-9_]*)\s+WHERE\s+key\s*=\s*(\d+)`)
	mongoUpdateRe = regexp.MustCompile(`(?is)^\s*UPDATE\s+([A-Za-z_][A-Za-z0-9_]*)\s+SET\s+val\s*=\s*'([^']*)'\s+WHERE\s+key\s*=\s*(\d+)`)
)

type row struct {
	Key string `bson:"_id" json:"key"`
	Val string `bson:"val" json:"val"`
}

func (e *MongoExecutor) Exec(ctx context.Context, queryText string) ([]byte, error) {
	if m := mongoSelectRe.FindStringSubmatch(queryText); m != nil {
		return e.find(ctx, m[1], m[2])
	}
	if m := mongoUpdateRe.FindStringSubmatch(queryText); m != nil {
		return nil, e.upsert(ctx, m[1], m[3], m[2])
	}
	return nil, fmt.Errorf("replicastub: mongo executor does not understand %q", queryText)
}

func (e *MongoExecutor) find(ctx context.Context, table, key string) ([]byte, error) {
	var r row
	err := e.db.Collection(table).FindOne(ctx, bson.M{"_id": key}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return json.Marshal([]row{})
	}
	if err != nil {
		return nil, fmt.Errorf("replicastub: mongo find: %w", err)
	}
	return json.Marshal([]row{r})
}

func (e *MongoExecutor) upsert(ctx context.Context, table, key, val string) error {
	opts := options.Update().SetUpsert(true)
	_, err := e.db.Collection(table).UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": bson.M{"val": val}}, opts)
	if err != nil {
		return fmt.Errorf("replicastub: mongo upsert: %w", err)
	}
	return nil
}

// EndTx is a no-op for the same reason as PostgresExecutor: the scheduler's
// version gating already serializes access per table.
func (e *MongoExecutor) EndTx(ctx context.Context, commit bool) error {
	return nil
}

func (e *MongoExecutor) Close(ctx context.Context) error {
	return e.client.Disconnect(ctx)
}
