package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Generator 是叙事生成器的最小契约。重试与退避是调用方（编排器）的职责，
// 实现只负责一次生成调用。
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)
}

// ChatModelGenerator 基于 eino 聊天模型实现 Generator。
type ChatModelGenerator struct {
	chatModel model.ChatModel
}

// NewChatModelGenerator 包装一个已构建好的聊天模型。
func NewChatModelGenerator(chatModel model.ChatModel) *ChatModelGenerator {
	return &ChatModelGenerator{chatModel: chatModel}
}

// Generate 发起一次叙事生成调用，空回复视为失败。
func (g *ChatModelGenerator) Generate(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	messages := []*schema.Message{schema.UserMessage(prompt)}

	response, err := g.chatModel.Generate(ctx, messages,
		model.WithTemperature(temperature),
		model.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat model generate: %w", err)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return "", fmt.Errorf("chat model returned empty response")
	}

	log.Printf("[ai] generated narrative, length=%d", len(content))
	return content, nil
}
