package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/wolfman30/voice-appointment-confirm/internal/config"
	"github.com/wolfman30/voice-appointment-confirm/internal/conversation"
	"github.com/wolfman30/voice-appointment-confirm/internal/observability/metrics"
	"github.com/wolfman30/voice-appointment-confirm/internal/speech"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

// AWSConfigLoader resolves the SDK config used for Bedrock.
type AWSConfigLoader func(ctx context.Context, cfg *appconfig.Config) (aws.Config, error)

// Options carries the process-level collaborators.
type Options struct {
	// Registerer receives the turn metrics; nil uses the default registry.
	Registerer prometheus.Registerer
	// LoadAWSConfig defaults to the SDK's default chain in AWSRegion.
	LoadAWSConfig AWSConfigLoader
	// VerifyRedis pings Redis at startup and falls back to memory on failure.
	VerifyRedis bool
}

// Runtime is the fully wired conversation stack shared by every entry point.
type Runtime struct {
	Orchestrator      *conversation.Orchestrator
	Service           *conversation.SessionService
	Metrics           *metrics.TurnMetrics
	Events            *conversation.EventLogger
	Transcriber       speech.Transcriber
	Synthesizer       speech.Synthesizer
	GenerationEnabled bool

	closers []func() error
}

// Close releases the Redis and generation clients.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildRuntime wires the session store, generation backend, orchestrator and
// speech collaborators from config.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rt := &Runtime{
		Metrics: metrics.NewTurnMetrics(opts.Registerer),
		Events:  conversation.NewEventLogger(logger),
	}

	client, err := BuildLLMClient(ctx, cfg, logger, opts.LoadAWSConfig)
	if err != nil {
		return nil, err
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, closer.Close)
	}
	rt.GenerationEnabled = client != nil
	rt.Orchestrator = BuildOrchestrator(cfg, client, rt.Metrics, rt.Events, logger)

	redisClient := BuildRedisClient(ctx, cfg, logger, opts.VerifyRedis)
	if redisClient != nil {
		rt.closers = append(rt.closers, redisClient.Close)
	}
	store := BuildSessionStore(redisClient, cfg, logger)

	rt.Service = conversation.NewSessionService(store, rt.Orchestrator, logger,
		conversation.WithGreeting(cfg.Greeting),
		conversation.WithServiceEvents(rt.Events),
	)
	rt.Transcriber, rt.Synthesizer = BuildSpeech(cfg, logger)
	return rt, nil
}

// BuildLLMClient returns the generation backend for LLM_PROVIDER. A nil client
// with a nil error means every turn uses the scripted policy.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, loadAWS AWSConfigLoader) (conversation.LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	if cfg.LLMProvider == appconfig.ProviderNone {
		logger.Info("generation disabled; using scripted replies")
		return nil, nil
	}
	if missing := cfg.MissingCredentials(); missing != "" {
		logger.Warn("generation credentials missing; using scripted replies",
			"provider", cfg.LLMProvider,
			"missing", missing,
		)
		return nil, nil
	}

	switch cfg.LLMProvider {
	case appconfig.ProviderOpenAI:
		logger.Info("generation backend: openai", "model", cfg.OpenAIModel)
		return conversation.NewOpenAILLMClient(
			conversation.NewOpenAIClientFromKey(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
			cfg.OpenAIModel,
		), nil
	case appconfig.ProviderGemini:
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		logger.Info("generation backend: gemini", "model", cfg.GeminiModel)
		return client, nil
	case appconfig.ProviderBedrock:
		if loadAWS == nil {
			loadAWS = defaultAWSConfig
		}
		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		logger.Info("generation backend: bedrock", "model", cfg.BedrockModelID, "region", cfg.AWSRegion)
		return conversation.NewBedrockLLMClient(
			bedrockruntime.NewFromConfig(awsCfg, bedrockEndpoint(cfg.AWSEndpointOverride)),
			cfg.BedrockModelID,
		), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown llm provider %q", cfg.LLMProvider)
	}
}

// BuildOrchestrator wraps client (possibly nil) in the policy selector.
func BuildOrchestrator(cfg *appconfig.Config, client conversation.LLMClient, m *metrics.TurnMetrics, events *conversation.EventLogger, logger *logging.Logger) *conversation.Orchestrator {
	var primary conversation.Policy
	if client != nil {
		primary = conversation.NewGenerativePolicy(client, generationConfig(cfg))
	}
	selector := conversation.NewPolicySelector(primary, conversation.NewScriptedPolicy(), logger)
	return conversation.NewOrchestrator(selector, logger,
		conversation.WithTurnMetrics(m),
		conversation.WithEventLogger(events),
	)
}

func generationConfig(cfg *appconfig.Config) conversation.GenerationConfig {
	if cfg == nil {
		return conversation.GenerationConfig{}
	}
	temperature := float32(cfg.GenerationTemperature)
	gen := conversation.GenerationConfig{
		MaxTokens:   int32(cfg.GenerationMaxTokens),
		Temperature: &temperature,
		Timeout:     cfg.GenerationTimeout,
	}
	switch cfg.LLMProvider {
	case appconfig.ProviderOpenAI:
		gen.Model = cfg.OpenAIModel
	case appconfig.ProviderGemini:
		gen.Model = cfg.GeminiModel
	case appconfig.ProviderBedrock:
		gen.Model = cfg.BedrockModelID
	}
	return gen
}

func defaultAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// bedrockEndpoint points the runtime client at a local emulator or proxy.
func bedrockEndpoint(override string) func(*bedrockruntime.Options) {
	return func(o *bedrockruntime.Options) {
		if endpoint := strings.TrimSpace(override); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}
}

func defaultSessionTTL(cfg *appconfig.Config) time.Duration {
	if cfg == nil || cfg.SessionTTL <= 0 {
		return time.Hour
	}
	return cfg.SessionTTL
}
