package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/voice-appointment-confirm/cmd/mainconfig"
	"github.com/wolfman30/voice-appointment-confirm/internal/app/bootstrap"
	appconfig "github.com/wolfman30/voice-appointment-confirm/internal/config"
	"github.com/wolfman30/voice-appointment-confirm/internal/conversation"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

// The lambda serves the stateless turn contract only; sessions, speech and
// websockets stay on the long-running API.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	ctx := context.Background()
	client, err := bootstrap.BuildLLMClient(ctx, cfg, logger, mainconfig.LoadAWSConfig)
	if err != nil {
		panic(err)
	}
	orchestrator := bootstrap.BuildOrchestrator(cfg, client, nil, conversation.NewEventLogger(logger), logger)

	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, orchestrator, client != nil, evt)
	})
}

func handle(ctx context.Context, orchestrator *conversation.Orchestrator, generative bool, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" || path == "/_health" {
		mode := "fallback-only"
		if generative {
			mode = "generative"
		}
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok", "mode": mode}), nil
	}

	switch path {
	case "/turns", "/v1/turns":
	default:
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}, nil
	}
	if method != http.MethodPost {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusMethodNotAllowed}, nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "invalid body"}), nil
	}
	req, err := conversation.DecodeTurnRequest(body)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": err.Error()}), nil
	}
	if req.ConversationID == "" {
		req.ConversationID = headerValue(evt.Headers, "x-conversation-id")
	}

	result := orchestrator.ProcessTurn(ctx, req)
	if ctx.Err() != nil {
		return events.APIGatewayV2HTTPResponse{}, ctx.Err()
	}
	return jsonResponse(http.StatusOK, result), nil
}

func jsonResponse(status int, payload any) events.APIGatewayV2HTTPResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError}
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"content-type": "application/json"},
	}
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Body)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
