// Package recognize extracts structured tables from a rendered
// message image using the Gemini vision API with a strict JSON
// response schema.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/dohanlee/gmail-table-extractor/internal/pipeline"
)

// TransientError marks a failure that a later run may not hit again:
// quota exhaustion, 5xx, network timeout. The pipeline does not retry,
// so the classification only informs the operator.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// RateLimitRPS throttles calls across a process. <=0 disables.
	RateLimitRPS float64
}

// Gemini implements pipeline.Recognizer.
type Gemini struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

func New(ctx context.Context, cfg Config) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	return &Gemini{
		client:  client,
		model:   strings.TrimSpace(cfg.Model),
		limiter: limiter,
	}, nil
}

var tablesSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"tables": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"headers": {
						Type:  genai.TypeArray,
						Items: &genai.Schema{Type: genai.TypeString},
					},
					"rows": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type:     genai.TypeString,
								Nullable: genai.Ptr(true),
							},
						},
					},
				},
				Required: []string{"headers", "rows"},
			},
		},
	},
	Required: []string{"tables"},
}

const extractionPrompt = `You are an expert at table extraction. ` +
	`Extract ALL tables from the provided image and return STRICT JSON only. ` +
	`Do not include any commentary. Schema: {"tables": [{"headers": [string, ...], ` +
	`"rows": [[string|null, ...], ...]}]}. Use null for empty cells.`

// Extract sends the image to the model and parses the structured
// response. The raw response text is kept in the result for audit.
func (g *Gemini) Extract(ctx context.Context, image []byte) (pipeline.TableSet, error) {
	if len(image) == 0 {
		return pipeline.TableSet{}, fmt.Errorf("empty image")
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return pipeline.TableSet{}, err
		}
	}

	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(extractionPrompt),
		genai.NewPartFromBytes(image, "image/png"),
	}, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			CandidateCount:   1,
			Temperature:      genai.Ptr[float32](0.2),
			ResponseMIMEType: "application/json",
			ResponseSchema:   tablesSchema,
		},
	)
	if err != nil {
		return pipeline.TableSet{}, fmt.Errorf("gemini generate content: %w", classifyErr(err))
	}

	return parseResponse(resp.Text())
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransientError{Err: err}
	}
	return err
}
