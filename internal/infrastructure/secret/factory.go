package secret

import (
	"context"
	"fmt"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// NewStore creates the SecretStore selected by config.KeySource.
// A nil store is returned for plain mode.
func NewStore(ctx context.Context, config *model.Config) (port.SecretStore, error) {
	if config.Plain() {
		return nil, nil
	}

	switch config.KeySource {
	case model.KeySourceEnv, "":
		return NewEnvStore(config.KeyEnv), nil
	case model.KeySourceFile:
		return NewFileStore(config.KeyFile), nil
	case model.KeySourceAWS:
		return NewAWSStore(ctx, config.AWSRegion)
	case model.KeySourceMongo:
		return NewMongoStore(config.MongoURI, config.MongoDatabase, config.MongoCollection), nil
	default:
		return nil, fmt.Errorf("key source not supported: %s", config.KeySource)
	}
}
