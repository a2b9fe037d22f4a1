package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const (
	opComplete      = "gateway.complete"
	opGenerateImage = "gateway.generate_image"
	opPing          = "gateway.ping"

	pingPrompt = "ping"
)

// Tier names one capability level of the external model service. Tiers are
// tried in list order by callers that support fallback, so adding a third tier
// is a data change.
type Tier struct {
	Name  string
	Model string
}

// ClientConfig configures the model gateway.
type ClientConfig struct {
	// BaseURL overrides the service endpoint; empty uses the SDK default.
	BaseURL string
	// Timeout bounds a single request including the response body.
	Timeout time.Duration
	// PingModel is the cheap model used for credential validation.
	PingModel string
	Logger    *zap.Logger
}

// Client wraps the external generative model endpoint. It holds no credential:
// every call takes one explicitly so sessions cannot leak keys into each other.
type Client struct {
	baseURL   string
	timeout   time.Duration
	pingModel string
	logger    *zap.Logger
}

// NewClient constructs a gateway client.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		timeout:   timeout,
		pingModel: cfg.PingModel,
		logger:    logger,
	}
}

// CompletionRequest describes one text generation call.
type CompletionRequest struct {
	Model  string
	Prompt string
}

// ImageRequest describes one image generation call.
type ImageRequest struct {
	Model  string
	Prompt string
}

func (c *Client) api(cred Credential) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cred.String()),
		option.WithRequestTimeout(c.timeout),
		// Retry policy belongs to the callers; the SDK must not add its own.
		option.WithMaxRetries(0),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	return openai.NewClient(opts...)
}

// Complete issues one chat completion and returns the raw text of the first
// choice. A missing credential fails before any network traffic.
func (c *Client) Complete(ctx context.Context, cred Credential, req CompletionRequest) (string, error) {
	if cred.IsZero() {
		return "", NewConfigurationError(opComplete, ErrMissingCredential)
	}

	client := c.api(cred)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	})
	if err != nil {
		return "", c.classify(opComplete, req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return "", NewTransientError(opComplete, ErrEmptyCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage issues one image generation call and returns a self-contained
// data URI, so consumers never need a follow-up fetch to display the asset.
func (c *Client) GenerateImage(ctx context.Context, cred Credential, req ImageRequest) (string, error) {
	if cred.IsZero() {
		return "", NewConfigurationError(opGenerateImage, ErrMissingCredential)
	}

	client := c.api(cred)
	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(req.Model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		Size:           openai.ImageGenerateParamsSize1792x1024,
	})
	if err != nil {
		return "", c.classify(opGenerateImage, req.Model, err)
	}
	for _, image := range resp.Data {
		if image.B64JSON != "" {
			return "data:image/png;base64," + image.B64JSON, nil
		}
	}
	return "", NewTransientError(opGenerateImage, ErrNoImagePayload)
}

// Ping validates a credential with a minimal completion against the cheap tier.
func (c *Client) Ping(ctx context.Context, cred Credential) error {
	if cred.IsZero() {
		return NewConfigurationError(opPing, ErrMissingCredential)
	}
	_, err := c.Complete(ctx, cred, CompletionRequest{Model: c.pingModel, Prompt: pingPrompt})
	if err != nil {
		c.logger.Warn("credential validation failed", zap.Error(err))
	}
	return err
}

// classify maps SDK and transport failures onto the gateway error taxonomy.
// Authentication rejections are configuration errors: retrying cannot fix a bad
// key and the user must be told so.
func (c *Client) classify(op, model string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return NewConfigurationError(op, fmt.Errorf("credential rejected (%d): %w", apiErr.StatusCode, err))
		}
		c.logger.Warn("model call failed",
			zap.String("op", op),
			zap.String("model", model),
			zap.Int("status", apiErr.StatusCode))
	}
	return NewTransientError(op, err)
}
