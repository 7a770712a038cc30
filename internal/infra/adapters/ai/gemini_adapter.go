package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"trailroom-billing/internal/domain/ports/adapter"
)

var _ adapter.TryOnGenerator = (*GeminiGenerator)(nil)

// ErrNoImage is returned when the model answered without an image part.
var ErrNoImage = errors.New("gemini: no image generated")

const systemInstruction = "You are an expert virtual try-on AI assistant."

const promptTop = "You are a virtual try-on AI. Generate a realistic image showing the person " +
	"wearing the clothing item provided. The person's body, face, and pose should remain " +
	"the same, but they should be wearing the new top/clothing item naturally. " +
	"Ensure proper fit, lighting, shadows, and realistic fabric draping. " +
	"The background should remain similar to the original person image."

const promptFull = "You are a virtual try-on AI. Generate a realistic image showing the person " +
	"wearing both the top clothing item and bottom clothing item provided. " +
	"The person's body, face, and pose should remain the same, but they should be " +
	"wearing the complete outfit naturally. Ensure proper fit, lighting, shadows, " +
	"and realistic fabric draping for both pieces. The background should remain " +
	"similar to the original person image."

type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates an image generator using the official SDK.
func NewGeminiGenerator(ctx context.Context, apiKey, baseURL, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("gemini: empty model")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{client: c, model: model}, nil
}

func (g *GeminiGenerator) Model() string { return g.model }

func (g *GeminiGenerator) Generate(ctx context.Context, req adapter.TryOnRequest) (adapter.Image, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, buildContents(req), &genai.GenerateContentConfig{
		SystemInstruction:  &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return adapter.Image{}, fmt.Errorf("gemini generate: %w", err)
	}
	return firstImage(resp)
}

// --- internal ---

func promptFor(mode string) string {
	if mode == "full" {
		return promptFull
	}
	return promptTop
}

func buildContents(req adapter.TryOnRequest) []*genai.Content {
	parts := []*genai.Part{
		{Text: promptFor(req.Mode)},
		inline(req.Person),
		inline(req.Clothing),
	}
	if req.Bottom != nil {
		parts = append(parts, inline(*req.Bottom))
	}
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
}

func inline(img adapter.Image) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{Data: img.Data, MIMEType: img.MIMEType}}
}

func firstImage(resp *genai.GenerateContentResponse) (adapter.Image, error) {
	if resp == nil {
		return adapter.Image{}, ErrNoImage
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				mime := p.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return adapter.Image{Data: p.InlineData.Data, MIMEType: mime}, nil
			}
		}
	}
	return adapter.Image{}, ErrNoImage
}
