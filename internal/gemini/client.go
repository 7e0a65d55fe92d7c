package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mckhtech/wedding-plannera-ai/internal/config"
	"github.com/mckhtech/wedding-plannera-ai/internal/models"
	"github.com/mckhtech/wedding-plannera-ai/internal/storage"
	"github.com/mckhtech/wedding-plannera-ai/internal/watermark"
)

const defaultModel = "gemini-2.5-flash-image"

// Client renders pre-wedding images through the Gemini generateContent API.
// Reference photos go in as inline base64 parts and the generated image
// comes back the same way; the client persists both the raw artifact and,
// when asked, a watermarked variant.
type Client struct {
	apiKey        string
	baseURL       string
	model         string
	watermarkText string
	httpClient    *http.Client
	store         storage.Storage
	log           *slog.Logger
}

// Result carries the storage refs one render produced.
type Result struct {
	Path            string
	WatermarkedPath string
}

func NewClient(cfg config.Config, store storage.Storage, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	model := cfg.GeminiModel
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:        cfg.GeminiAPIKey,
		baseURL:       strings.TrimRight(cfg.GeminiBaseURL, "/"),
		model:         model,
		watermarkText: cfg.WatermarkText,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		store: store,
		log:   log,
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate renders one image for the template prompt and stores it. With
// watermark set, a second marked copy is stored alongside and a failure to
// produce it fails the whole render rather than leaking a clean image.
func (c *Client) Generate(ctx context.Context, prompt string, bundle models.InputBundle, mark bool) (*Result, error) {
	parts := []part{{Text: buildPrompt(prompt, bundle.Mode)}}
	for _, ref := range bundle.Refs() {
		data, err := c.store.Fetch(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("load reference image: %w", err)
		}
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: storage.ContentTypeForRef(ref),
			Data:     base64.StdEncoding.EncodeToString(data),
		}})
	}

	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &imageConfig{AspectRatio: "1:1"},
		},
	}

	mime, image, err := c.call(ctx, payload)
	if err != nil {
		return nil, err
	}

	ref, err := c.store.Save(ctx, "generated", image, mime)
	if err != nil {
		return nil, fmt.Errorf("store generated image: %w", err)
	}
	result := &Result{Path: ref}

	if mark {
		marked, err := watermark.Apply(image, c.watermarkText)
		if err != nil {
			return nil, fmt.Errorf("watermark image: %w", err)
		}
		wmRef, err := c.store.Save(ctx, "watermarked", marked, "image/jpeg")
		if err != nil {
			return nil, fmt.Errorf("store watermarked image: %w", err)
		}
		result.WatermarkedPath = wmRef
	}

	c.log.Info("image generated", "model", c.model, "ref", result.Path, "watermarked", mark)
	return result, nil
}

func (c *Client) call(ctx context.Context, payload generateRequest) (string, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("post gemini: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		c.log.Error("gemini request failed", "status", resp.StatusCode, "body", truncateBody(rawBody))
		return "", nil, fmt.Errorf("gemini error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	var decoded generateResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return "", nil, fmt.Errorf("decode response: %w (body=%s)", err, truncateBody(rawBody))
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return "", nil, fmt.Errorf("gemini blocked the prompt: %s", decoded.PromptFeedback.BlockReason)
	}
	for _, candidate := range decoded.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			image, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return "", nil, fmt.Errorf("decode image data: %w", err)
			}
			mime := p.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return mime, image, nil
		}
	}
	return "", nil, fmt.Errorf("no image in gemini response")
}

const promptHeader = "You are a professional wedding photographer. Create a stunning, " +
	"photorealistic pre-wedding photoshoot image."

const promptFooter = "\n\nQuality standards: natural flattering light, accurate facial " +
	"features and skin tones from the provided photos, professional composition with " +
	"proper depth of field, vibrant but realistic colors, a romantic and joyful mood, " +
	"subjects naturally posed."

func buildPrompt(templatePrompt string, mode models.GenerationMode) string {
	var people string
	switch mode {
	case models.ModeCouple:
		people = "The photo provided shows the couple together. Keep both people " +
			"recognizable, preserving their facial features and unique characteristics."
	default:
		people = "The photos provided show two people, first one partner and then the " +
			"other. Place both in the scene, preserving each person's facial features " +
			"and unique characteristics."
	}
	return promptHeader + "\n" + people + "\n\nScene requirements:\n" + templatePrompt + promptFooter
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
