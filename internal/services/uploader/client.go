package uploader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
)

// Classification is the uploader store's answer for one submitted file.
type Classification struct {
	Study       string
	PackageType string
}

// Options configures the lookup-store connection.
type Options struct {
	URI      string
	Host     string
	Port     string
	Database string
	Timeout  time.Duration
}

// Client reads package classifications from the uploader's document store.
type Client struct {
	client   *mongo.Client
	database string
}

// Connect establishes the document-store session. Either a full URI or
// host/port may be supplied.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	uri := strings.TrimSpace(opts.URI)
	if uri == "" {
		if opts.Host == "" || opts.Port == "" {
			return nil, services.Wrap(services.ErrConfiguration, "uploader", "connect", "uri or host/port required", nil)
		}
		uri = fmt.Sprintf("mongodb://%s:%s/", opts.Host, opts.Port)
	}
	if opts.Database == "" {
		return nil, services.Wrap(services.ErrConfiguration, "uploader", "connect", "database name required", nil)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client, err := mongo.Connect(ctx, mongooptions.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, services.Wrap(services.ErrLookupUnavailable, "uploader", "connect", "mongo connect", err)
	}
	return &Client{client: client, database: opts.Database}, nil
}

// Close tears down the document-store session.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

// ClassificationByFilename finds the package containing fileName and returns
// its study label and package type. The second return is false when no
// package references the file.
func (c *Client) ClassificationByFilename(ctx context.Context, fileName string) (Classification, bool, error) {
	collection := c.client.Database(c.database).Collection("packages")

	filter := bson.D{{Key: "files", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
		{Key: "$and", Value: bson.A{bson.D{{Key: "fileName", Value: fileName}}}},
	}}}}}
	projection := bson.D{
		{Key: "_id", Value: 0},
		{Key: "study", Value: 1},
		{Key: "packageType", Value: 1},
	}

	var result struct {
		Study       string `bson:"study"`
		PackageType string `bson:"packageType"`
	}
	err := collection.FindOne(ctx, filter, mongooptions.FindOne().SetProjection(projection)).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Classification{}, false, nil
		}
		return Classification{}, false, services.Wrap(services.ErrLookupUnavailable, "uploader", "find package",
			"lookup for "+fileName, err)
	}
	return Classification{Study: result.Study, PackageType: result.PackageType}, true, nil
}
