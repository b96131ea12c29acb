// Command lambda runs the relay entrypoint as an AWS Lambda function URL handler.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/haxorport/relay-tunnel/internal/di"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// defaultConfigPath is where a bundled configuration is looked up; it may be absent
const defaultConfigPath = "/var/task/relay-tunnel.yaml"

type handlerFunc func(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error)

// newHandler adapts a function URL invocation to the relay entrypoint
func newHandler(relay port.RelayHandler) handlerFunc {
	return func(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
		status, body := relay.HandleBody(ctx, []byte(req.Body), req.IsBase64Encoded)
		return events.LambdaFunctionURLResponse{
			StatusCode: status,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       string(body),
		}, nil
	}
}

func main() {
	configPath := os.Getenv("RELAYTUNNEL_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	container, err := setupRelay(context.Background(), configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer container.Close()
	container.Logger.Info("Relay function ready (envelope: %s)", container.Sealer.Mode())

	lambda.Start(newHandler(container.RelayService))
}

// setupRelay builds the relay entrypoint. The container is closed before
// any error is returned.
func setupRelay(ctx context.Context, configPath string) (*di.Container, error) {
	container := di.NewContainer()
	if err := container.Initialize(configPath); err != nil {
		container.Close()
		return nil, err
	}

	// the function reads its key from Secrets Manager unless told otherwise
	if _, ok := os.LookupEnv("RELAYTUNNEL_KEY_SOURCE"); !ok && !fileExists(configPath) {
		container.Config.KeySource = model.KeySourceAWS
	}

	if err := container.InitializeRelay(ctx); err != nil {
		container.Logger.Error("Failed to initialize relay: %v", err)
		container.Close()
		return nil, err
	}
	return container, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
