package recap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client 生成回顾文本的模型后端 / Client is the model backend of a recap
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ClientConfig OpenAI 兼容服务的配置 / settings of an OpenAI-compatible endpoint
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	TimeoutMS  int
	MaxRetries int
}

// OpenAIClient 使用 go-openai SDK 的流式实现
// OpenAIClient streams completions through the go-openai SDK
type OpenAIClient struct {
	client  *openai.Client
	model   string
	retries int
	// OnChunk 收到文本增量时调用，可为 nil / called for every streamed delta
	OnChunk func(string)
}

func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	config := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		config.BaseURL = base
	}
	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	config.HTTPClient = httpClient

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		model:   cfg.Model,
		retries: retries,
	}
}

func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: strings.TrimSpace(system)},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Stream: true,
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(150*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
		text, err := c.stream(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
	}
	return "", fmt.Errorf("recap request failed after %d retries: %w", c.retries, lastErr)
}

func (c *OpenAIClient) stream(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create stream: %w", err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// 已收到部分内容时返回已有内容 / keep partial content
			if content.Len() > 0 {
				break
			}
			return "", fmt.Errorf("recv stream: %w", err)
		}
		for _, choice := range resp.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			content.WriteString(choice.Delta.Content)
			if c.OnChunk != nil {
				c.OnChunk(choice.Delta.Content)
			}
		}
	}
	text := strings.TrimSpace(content.String())
	if text == "" {
		return "", errors.New("recap response is empty")
	}
	return text, nil
}
