// Package analyzer turns a form URL into a validated FormSchema: it
// renders the page, extracts the form structure from the DOM, and asks a
// language model to normalize it. The model's output is untrusted and is
// validated against the closed field-type enumeration before any
// FormField is constructed.
package analyzer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/entrhq/formpilot/pkg/browser"
	"github.com/entrhq/formpilot/pkg/llm"
	"github.com/entrhq/formpilot/pkg/logging"
	"github.com/entrhq/formpilot/pkg/types"
)

const (
	// DefaultNavigationTimeout bounds page acquisition.
	DefaultNavigationTimeout = 30 * time.Second

	// DefaultPromptTokenBudget bounds the outline portion of the mapping
	// prompt.
	DefaultPromptTokenBudget = 6000
)

// Analyzer implements the form-analysis stage of the pipeline.
type Analyzer struct {
	sessions    browser.Factory
	provider    llm.Provider
	logger      *logging.Logger
	navTimeout  time.Duration
	tokenBudget int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithNavigationTimeout overrides the page acquisition timeout.
func WithNavigationTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.navTimeout = d
		}
	}
}

// WithPromptTokenBudget overrides the outline token budget.
func WithPromptTokenBudget(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.tokenBudget = n
		}
	}
}

// New creates an Analyzer that acquires pages through sessions and maps
// them through provider.
func New(sessions browser.Factory, provider llm.Provider, logger *logging.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		sessions:    sessions,
		provider:    provider,
		logger:      logger,
		navTimeout:  DefaultNavigationTimeout,
		tokenBudget: DefaultPromptTokenBudget,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze produces a FormSchema for the form at url. Failures are typed:
// fetch_error for navigation problems, no_form_found when the page has no
// fillable elements, mapping_error when the model's output cannot be
// validated into a schema.
func (a *Analyzer) Analyze(ctx context.Context, url string) (*types.FormSchema, error) {
	driver, err := a.sessions.NewDriver()
	if err != nil {
		return nil, types.WrapFailure(types.FailFetch, "failed to open browser session", err)
	}
	defer driver.Close()

	if err := driver.Navigate(url, a.navTimeout); err != nil {
		return nil, types.WrapFailure(types.FailFetch, "failed to load "+url, err)
	}

	html, err := driver.Content()
	if err != nil {
		return nil, types.WrapFailure(types.FailFetch, "failed to read rendered page", err)
	}

	outline, err := extractFormOutline(html)
	if err != nil {
		return nil, types.WrapFailure(types.FailFetch, "failed to parse rendered page", err)
	}
	if len(outline.Elements) == 0 {
		return nil, types.NewFailure(types.FailNoFormFound, "no form-like elements on "+url)
	}
	a.logf("extracted %d form elements from %s", len(outline.Elements), url)

	prompt, err := buildMappingPrompt(url, outline, a.tokenBudget)
	if err != nil {
		return nil, types.WrapFailure(types.FailMapping, "failed to build mapping prompt", err)
	}

	response, err := a.provider.Complete(ctx, []*types.Message{
		types.NewSystemMessage(systemPrompt),
		types.NewUserMessage(prompt),
	})
	if err != nil {
		return nil, types.WrapFailure(types.FailMapping, "mapping model call failed", err)
	}

	schema, err := parseSchemaResponse(url, response.Content)
	if err != nil {
		return nil, err
	}
	a.logf("mapped %d fields for %s", len(schema.Fields), url)
	return schema, nil
}

func (a *Analyzer) logf(format string, v ...interface{}) {
	if a.logger != nil {
		a.logger.Infof(format, v...)
	}
}

// rawSchemaResponse is the untrusted shape the model replies with.
type rawSchemaResponse struct {
	FormTitle string     `json:"form_title"`
	Fields    []rawField `json:"fields"`
}

type rawField struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Selector    string   `json:"selector"`
	Required    bool     `json:"required"`
	Options     []string `json:"options"`
	ValueSource string   `json:"value_source"`
}

// parseSchemaResponse validates the model output into a FormSchema. Any
// malformed field rejects the whole response; partial or coerced schemas
// never leave this function.
func parseSchemaResponse(url, content string) (*types.FormSchema, error) {
	var raw rawSchemaResponse
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &raw); err != nil {
		return nil, types.WrapFailure(types.FailMapping, "model returned invalid JSON", err)
	}
	if len(raw.Fields) == 0 {
		return nil, types.NewFailure(types.FailMapping, "model returned no fields")
	}

	fields := make([]types.FormField, 0, len(raw.Fields))
	for i, rf := range raw.Fields {
		if rf.Name == "" {
			return nil, types.NewFailure(types.FailMapping, "field without a name at index "+strconv.Itoa(i))
		}
		if rf.Selector == "" {
			return nil, types.NewFailure(types.FailMapping, "field "+rf.Name+" has no selector")
		}
		ft, err := types.ParseFieldType(rf.Type)
		if err != nil {
			return nil, types.WrapFailure(types.FailMapping, "field "+rf.Name, err)
		}
		fields = append(fields, types.FormField{
			Name:        rf.Name,
			Label:       rf.Label,
			Type:        ft,
			Selector:    rf.Selector,
			Required:    rf.Required,
			Options:     rf.Options,
			ValueSource: rf.ValueSource,
		})
	}

	return &types.FormSchema{
		URL:        url,
		Title:      raw.FormTitle,
		Fields:     fields,
		CapturedAt: time.Now(),
	}, nil
}
