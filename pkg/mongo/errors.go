package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

var (
	ErrEmptyConnectionURL     = errors.New("mongo: MONGODB_URL is empty")
	ErrFailedToConnectToMongo = errors.New("mongo: connection failed")
	ErrHealthcheckFailed      = errors.New("mongo: healthcheck failed")
)

// Healthcheck pings the primary, which PutTemplate and PutRecipient write to.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		err := client.Ping(ctx, readpref.Primary())
		if err == nil {
			return nil
		}
		return errors.Join(ErrHealthcheckFailed, err)
	}
}
