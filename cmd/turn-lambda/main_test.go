package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/wolfman30/voice-appointment-confirm/internal/app/bootstrap"
	appconfig "github.com/wolfman30/voice-appointment-confirm/internal/config"
	"github.com/wolfman30/voice-appointment-confirm/internal/conversation"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

func testOrchestrator() *conversation.Orchestrator {
	cfg := &appconfig.Config{LLMProvider: appconfig.ProviderNone}
	return bootstrap.BuildOrchestrator(cfg, nil, nil, nil, logging.New("error"))
}

func request(method, path, body string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		Body:    body,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method: method,
				Path:   path,
			},
		},
	}
}

func TestHandleHealth(t *testing.T) {
	resp, err := handle(context.Background(), testOrchestrator(), false, request(http.MethodGet, "/health", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(resp.Body), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["mode"] != "fallback-only" {
		t.Fatalf("expected fallback-only mode, got %q", payload["mode"])
	}
}

func TestHandleRejectsNonPost(t *testing.T) {
	resp, err := handle(context.Background(), testOrchestrator(), false, request(http.MethodGet, "/turns", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
}

func TestHandleUnknownPath(t *testing.T) {
	resp, _ := handle(context.Background(), testOrchestrator(), false, request(http.MethodPost, "/nope", "{}"))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestHandleInvalidBody(t *testing.T) {
	resp, _ := handle(context.Background(), testOrchestrator(), false, request(http.MethodPost, "/turns", "not json"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHandleTurnBase64Body(t *testing.T) {
	body := `{"utterance":"Yes, that works","appointmentDetails":{"patientName":"Jane Doe"}}`
	evt := request(http.MethodPost, "/turns", base64.StdEncoding.EncodeToString([]byte(body)))
	evt.IsBase64Encoded = true

	resp, err := handle(context.Background(), testOrchestrator(), false, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.StatusCode, resp.Body)
	}

	var result conversation.TurnResult
	if err := json.Unmarshal([]byte(resp.Body), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Reply != conversation.ScriptedConfirmedReply {
		t.Fatalf("unexpected reply %q", result.Reply)
	}
	if result.Details.PatientName != "Jane Doe" || !result.Details.Confirmed {
		t.Fatalf("unexpected details %+v", result.Details)
	}
}

func TestHandleCancelledTurnReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handle(ctx, testOrchestrator(), false, request(http.MethodPost, "/turns", `{"utterance":"yes"}`))
	if err == nil {
		t.Fatalf("expected context error for abandoned turn")
	}
}
