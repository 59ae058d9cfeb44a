package backend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mempirate/electionjobs/cache"
	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/job"
	"github.com/mempirate/electionjobs/log"
	"github.com/mempirate/electionjobs/prompt"
)

const DefaultModel = openai.ChatModelGPT4oMini

// Features are the fields a language model extracts from a posting description.
// Salary figures are as reported, in PayBasis units.
type Features struct {
	JobTitle   string   `json:"job_title"`
	Employer   string   `json:"employer"`
	State      string   `json:"state"`
	SalaryLow  *float64 `json:"salary_low_end"`
	SalaryHigh *float64 `json:"salary_high_end"`
	PayBasis   string   `json:"pay_basis"`
}

// Extractor extracts structured fields from a posting description.
type Extractor interface {
	Extract(ctx context.Context, description string) (*Features, error)
}

// Classifier labels the role a posting describes. Its output is experimental
// and advisory only.
type Classifier interface {
	Classify(ctx context.Context, description string) (job.Role, error)
}

type Options struct {
	APIKey string
	Model  openai.ChatModel
	// BaseURL overrides the API endpoint. Empty means the OpenAI default.
	BaseURL string
	// Timeout bounds a single request.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt, for
	// transient failures only.
	MaxRetries     uint64
	InitialBackoff time.Duration
	// Cache stores raw responses by posting key. Nil means an in-memory cache.
	Cache cache.Cache
}

// Backend implements Extractor and Classifier with OpenAI chat completions
// constrained by a strict JSON schema.
type Backend struct {
	log zerolog.Logger

	client *openai.Client
	model  openai.ChatModel
	cache  cache.Cache

	maxRetries     uint64
	initialBackoff time.Duration
}

func NewBackend(opts Options) *Backend {
	log := log.NewLogger("backend")

	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithRequestTimeout(opts.Timeout),
		// Retries are handled here, so that the budget covers every kind of
		// transient failure and is logged.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	log.Info().Str("model", string(opts.Model)).Msg("Initializing OpenAI client")

	return &Backend{
		log:            log,
		client:         openai.NewClient(clientOpts...),
		model:          opts.Model,
		cache:          opts.Cache,
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
	}
}

func (b *Backend) Extract(ctx context.Context, description string) (*Features, error) {
	raw, err := b.complete(ctx, "extract:"+job.Key(description), schemaRequest{
		name:         "job_posting",
		schema:       extractionSchema,
		instructions: prompt.EXTRACTION_INSTRUCTIONS,
		prompt:       prompt.CreateExtractionPrompt(description),
	})
	if err != nil {
		return nil, err
	}

	var features Features
	if err := json.Unmarshal([]byte(raw), &features); err != nil {
		return nil, failure.ExternalService("malformed extraction response", err)
	}

	return &features, nil
}

type classification struct {
	Classification job.Role `json:"classification"`
}

func (b *Backend) Classify(ctx context.Context, description string) (job.Role, error) {
	raw, err := b.complete(ctx, "classify:"+job.Key(description), schemaRequest{
		name:         "job_classification_experimental",
		schema:       classificationSchema,
		instructions: prompt.CLASSIFICATION_INSTRUCTIONS,
		prompt:       prompt.CreateClassificationPrompt(description),
	})
	if err != nil {
		return "", err
	}

	var c classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return "", failure.ExternalService("malformed classification response", err)
	}

	if !c.Classification.Valid() {
		return "", failure.ExternalService("unknown classification "+string(c.Classification), nil)
	}

	return c.Classification, nil
}

type schemaRequest struct {
	name         string
	schema       interface{}
	instructions string
	prompt       string
}

// complete returns the JSON content of a completion, from the cache if a
// response for cacheKey was stored before. Only valid JSON is cached.
func (b *Backend) complete(ctx context.Context, cacheKey string, req schemaRequest) (string, error) {
	if cached, ok := b.cache.Get(cacheKey); ok {
		b.log.Debug().Str("key", cacheKey).Msg("Using cached response")
		return cached, nil
	}

	params := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.instructions),
			openai.UserMessage(req.prompt),
		}),
		Model:       openai.F(b.model),
		Temperature: openai.Float(0),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONSchemaParam{
				Type: openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
				JSONSchema: openai.F(openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   openai.F(req.name),
					Schema: openai.F(req.schema),
					Strict: openai.Bool(true),
				}),
			},
		),
	}

	start := time.Now()
	var content string

	operation := func() error {
		completion, err := b.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if !isTransient(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}

		if len(completion.Choices) == 0 {
			return errors.New("completion has no choices")
		}

		content = completion.Choices[0].Message.Content
		if !json.Valid([]byte(content)) {
			return errors.New("completion content is not valid JSON")
		}

		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.initialBackoff
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		b.log.Warn().Err(err).Str("key", cacheKey).Dur("wait", wait).Msg("Model request failed, retrying")
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, b.maxRetries), ctx), notify)
	if err != nil {
		return "", failure.ExternalService("model request failed for "+cacheKey, err)
	}

	b.log.Debug().Str("key", cacheKey).Dur("duration", time.Since(start)).Msg("Model response received")

	if err := b.cache.Put(cacheKey, content); err != nil {
		b.log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache response")
	}

	return content, nil
}

// isTransient reports whether a failed request is worth retrying: rate
// limits, server errors and network failures are, anything else the API
// rejected is not.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 408 || apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return true
}
