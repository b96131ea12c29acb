package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/haxorport/relay-tunnel/internal/application/service"
	"github.com/haxorport/relay-tunnel/internal/domain/codec"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/crypto"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/logger"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/upstream"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer origin.Close()

	log := logger.NewLogger(io.Discard, "error")
	sealer := crypto.NewPlainSealer()
	relay := service.NewRelayService(sealer, upstream.NewExecutor(5*time.Second, 1<<20, log), log, false)
	handle := newHandler(relay)

	u, _ := url.Parse(origin.URL)
	raw := codec.SerializeRequest(&model.RawRequest{
		Method:  "GET",
		Target:  "/status",
		Version: "HTTP/1.1",
		Headers: model.Headers{{Name: "Host", Value: u.Host}},
	})
	sealed, err := sealer.Seal(raw)
	require.NoError(t, err)
	env, err := model.NewEnvelope(sealed)
	require.NoError(t, err)

	for _, req := range []events.LambdaFunctionURLRequest{
		{Body: string(env)},
		{Body: base64.StdEncoding.EncodeToString(env), IsBase64Encoded: true},
	} {
		resp, err := handle(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "application/json", resp.Headers["Content-Type"])

		payload, err := model.ParseEnvelope([]byte(resp.Body))
		require.NoError(t, err)
		plain, err := sealer.Open(payload)
		require.NoError(t, err)
		parsed, err := codec.ParseResponse(plain)
		require.NoError(t, err)
		require.Equal(t, 200, parsed.StatusCode)
		require.Equal(t, "ok", string(parsed.Body))
	}

	resp, err := handle(context.Background(), events.LambdaFunctionURLRequest{Body: "{}"})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body model.RelayErrorBody
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	require.NotEmpty(t, body.Error)
}

func TestSetupRelay(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "relay.log")
	t.Setenv("RELAYTUNNEL_KEY_SOURCE", "env")
	t.Setenv("RELAYTUNNEL_KEY_ENV", "LAMBDA_TEST_MISSING_KEY")
	t.Setenv("RELAYTUNNEL_LOG_FILE", logFile)
	t.Setenv("RELAYTUNNEL_LOG_LEVEL", "error")

	container, err := setupRelay(context.Background(), filepath.Join(dir, "absent.yaml"))
	require.ErrorIs(t, err, model.ErrConfig)
	require.Nil(t, container)
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "Failed to initialize relay")

	t.Setenv("RELAYTUNNEL_MODE", "plain")
	container, err = setupRelay(context.Background(), filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	defer container.Close()
	require.NotNil(t, container.RelayService)
	require.Equal(t, "plain", container.Sealer.Mode())
}
