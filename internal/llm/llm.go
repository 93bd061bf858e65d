package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client wraps the Anthropic API for conflict resolution.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildResolvePrompt constructs the system and user prompts for
// resolving one conflicted file.
func buildResolvePrompt(relPath, fileType, content string) (system string, user string) {
	system = `You are resolving a git merge conflict in a file.

Resolution strategy:
- Preserve ALL meaningful changes from both sides when possible
- For timestamps/dates: prefer the more recent one
- For additions: include both additions
- For contradictory edits: use judgment based on context
- Preserve file structure (frontmatter, formatting, headers)
- Never remove content unless it's clearly a deletion
- For Markdown: preserve frontmatter and heading structure

Return the COMPLETE resolved file content with NO conflict markers.
Return ONLY the file content, no explanations, no markdown code blocks.`

	var sb strings.Builder
	sb.WriteString("File: ")
	sb.WriteString(relPath)
	sb.WriteString("\nType: ")
	sb.WriteString(fileType)
	sb.WriteString("\n\nFile content with conflicts:\n\n")
	sb.WriteString(content)
	user = sb.String()
	return
}

// Resolve sends a conflicted file to the LLM and returns its proposed
// full-file resolution. The raw response text is returned; the caller
// post-processes it (fence stripping, empty check).
func (c *Client) Resolve(ctx context.Context, relPath, fileType, content string) (string, error) {
	systemPrompt, userPrompt := buildResolvePrompt(relPath, fileType, content)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 8192,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return "", fmt.Errorf("no text content in API response")
	}

	return text, nil
}
