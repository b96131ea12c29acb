package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/haxorport/relay-tunnel/internal/domain/codec"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/crypto"
	"github.com/stretchr/testify/require"
)

// executorFunc is an Executor built from a function
type executorFunc func(ctx context.Context, req *model.RawRequest) (*model.RawResponse, error)

func (f executorFunc) Execute(ctx context.Context, req *model.RawRequest) (*model.RawResponse, error) {
	return f(ctx, req)
}

func okExecutor(t *testing.T) executorFunc {
	return func(ctx context.Context, req *model.RawRequest) (*model.RawResponse, error) {
		require.Equal(t, "GET", req.Method)
		require.Equal(t, "example.com", req.Headers.Get("Host"))
		return &model.RawResponse{
			StatusCode: 200,
			Reason:     "OK",
			Headers:    model.Headers{{Name: "Content-Type", Value: "text/plain"}},
			Body:       []byte("ok"),
		}, nil
	}
}

func sealedEnvelope(t *testing.T, sealer interface {
	Seal([]byte) (string, error)
}, raw []byte) []byte {
	t.Helper()
	payload, err := sealer.Seal(raw)
	require.NoError(t, err)
	env, err := model.NewEnvelope(payload)
	require.NoError(t, err)
	return env
}

func TestHandlePayload(t *testing.T) {
	sealer, err := crypto.NewSealer(testKey)
	require.NoError(t, err)
	svc := NewRelayService(sealer, okExecutor(t), testLogger(), true)

	payload, err := sealer.Seal(codec.SerializeRequest(getStatus()))
	require.NoError(t, err)

	out, err := svc.HandlePayload(context.Background(), payload)
	require.NoError(t, err)
	raw, err := sealer.Open(out)
	require.NoError(t, err)
	require.Equal(t, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 2\r\n\r\nok", string(raw))
}

func TestHandleBodyForms(t *testing.T) {
	sealer, err := crypto.NewSealer(testKey)
	require.NoError(t, err)
	svc := NewRelayService(sealer, okExecutor(t), testLogger(), false)

	env := sealedEnvelope(t, sealer, codec.SerializeRequest(getStatus()))
	quoted, err := json.Marshal(string(env))
	require.NoError(t, err)
	wrapped := []byte(base64.StdEncoding.EncodeToString(env))

	tests := []struct {
		name     string
		body     []byte
		isBase64 bool
	}{
		{name: "raw json", body: env},
		{name: "json string", body: quoted},
		{name: "flagged base64", body: wrapped, isBase64: true},
		{name: "unflagged base64", body: wrapped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := svc.HandleBody(context.Background(), tt.body, tt.isBase64)
			require.Equal(t, http.StatusOK, status, string(out))

			payload, err := model.ParseEnvelope(out)
			require.NoError(t, err)
			raw, err := sealer.Open(payload)
			require.NoError(t, err)
			resp, err := codec.ParseResponse(raw)
			require.NoError(t, err)
			require.Equal(t, "ok", string(resp.Body))
		})
	}
}

func TestHandleBodyErrors(t *testing.T) {
	sealer, err := crypto.NewSealer(testKey)
	require.NoError(t, err)

	failing := executorFunc(func(ctx context.Context, req *model.RawRequest) (*model.RawResponse, error) {
		return nil, model.NewError(model.ErrUpstream, "dial tcp", errors.New("connection refused"))
	})
	missingHost := executorFunc(func(ctx context.Context, req *model.RawRequest) (*model.RawResponse, error) {
		return nil, model.NewError(model.ErrConfig, "missing Host", nil)
	})

	tests := []struct {
		name     string
		executor executorFunc
		body     []byte
		isBase64 bool
		status   int
		kind     string
	}{
		{name: "empty body", executor: okExecutor(t), body: nil, status: 400, kind: model.KindParse},
		{name: "not json", executor: okExecutor(t), body: []byte("hello"), status: 400, kind: model.KindParse},
		{name: "missing payload", executor: okExecutor(t), body: []byte(`{"other":1}`), status: 400, kind: model.KindParse},
		{name: "bad base64 flag", executor: okExecutor(t), body: []byte("%%%"), isBase64: true, status: 400, kind: model.KindParse},
		{name: "undecryptable", executor: okExecutor(t), body: []byte(`{"payload":"AAAA"}`), status: 400, kind: model.KindDecrypt},
		{name: "unparseable request", executor: okExecutor(t), body: sealedEnvelope(t, sealer, []byte("nonsense")), status: 400, kind: model.KindParse},
		{name: "upstream failure", executor: failing, body: sealedEnvelope(t, sealer, codec.SerializeRequest(getStatus())), status: 500, kind: model.KindUpstream},
		{name: "config failure", executor: missingHost, body: sealedEnvelope(t, sealer, codec.SerializeRequest(getStatus())), status: 500, kind: model.KindConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRelayService(sealer, tt.executor, testLogger(), false)
			status, out := svc.HandleBody(context.Background(), tt.body, tt.isBase64)
			require.Equal(t, tt.status, status)

			var body model.RelayErrorBody
			require.NoError(t, json.Unmarshal(out, &body))
			require.NotEmpty(t, body.Error)
			require.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestPlainRelay(t *testing.T) {
	sealer := crypto.NewPlainSealer()
	svc := NewRelayService(sealer, okExecutor(t), testLogger(), false)

	env := sealedEnvelope(t, sealer, codec.SerializeRequest(getStatus()))
	status, out := svc.HandleBody(context.Background(), env, false)
	require.Equal(t, http.StatusOK, status)

	payload, err := model.ParseEnvelope(out)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	require.Contains(t, string(raw), "HTTP/1.1 200 OK\r\n")
}
