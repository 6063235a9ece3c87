// Package cloudvision recognises text in frames with Google Cloud Vision.
package cloudvision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/teslashibe/go-sightline/pkg/engine"
	"github.com/teslashibe/go-sightline/pkg/frame"
)

// Config holds Cloud Vision settings. With no APIKey, application default
// credentials are used.
type Config struct {
	APIKey        string
	Endpoint      string // override for tests and regional endpoints
	LanguageHints []string
	// Feature is TEXT_DETECTION for scene text or DOCUMENT_TEXT_DETECTION
	// for dense documents.
	Feature string
}

// DefaultConfig returns scene-text defaults.
func DefaultConfig() Config {
	return Config{
		LanguageHints: []string{"en"},
		Feature:       "TEXT_DETECTION",
	}
}

// Engine calls images:annotate for every frame.
type Engine struct {
	cfg Config

	mu     sync.Mutex
	svc    *vision.Service
	closed bool
}

// New creates an unloaded engine.
func New(cfg Config) *Engine {
	if cfg.Feature == "" {
		cfg.Feature = "TEXT_DETECTION"
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string { return "cloudvision" }

// Load builds the API client and resolves credentials.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.LoadError(e.Name(), engine.ErrClosed)
	}
	if e.svc != nil {
		return nil
	}

	var opts []option.ClientOption
	if e.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(e.cfg.Endpoint))
	}
	if e.cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(e.cfg.APIKey))
	} else {
		client, err := google.DefaultClient(ctx, vision.CloudVisionScope)
		if err != nil {
			return engine.LoadError(e.Name(), fmt.Errorf("default credentials: %w", err))
		}
		opts = append(opts, option.WithHTTPClient(client))
	}

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return engine.LoadError(e.Name(), err)
	}
	e.svc = svc
	return nil
}

// Run sends the frame's JPEG as-is; Cloud Vision finds text orientation
// itself, so Rotation is not applied.
func (e *Engine) Run(ctx context.Context, f *frame.Frame) (engine.Result, error) {
	e.mu.Lock()
	svc, closed := e.svc, e.closed
	e.mu.Unlock()
	switch {
	case closed:
		return nil, engine.RunError(e.Name(), engine.ErrClosed)
	case svc == nil:
		return nil, engine.RunError(e.Name(), engine.ErrNotLoaded)
	case f == nil || len(f.Data) == 0:
		return nil, engine.RunError(e.Name(), engine.ErrEmptyFrame)
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:        &vision.Image{Content: base64.StdEncoding.EncodeToString(f.Data)},
			Features:     []*vision.Feature{{Type: e.cfg.Feature, MaxResults: 1}},
			ImageContext: &vision.ImageContext{LanguageHints: e.cfg.LanguageHints},
		}},
	}
	resp, err := svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, engine.RunError(e.Name(), err)
	}
	if len(resp.Responses) == 0 {
		return engine.RecognizedText{}, nil
	}
	return parse(resp.Responses[0])
}

func parse(r *vision.AnnotateImageResponse) (engine.Result, error) {
	if r.Error != nil && r.Error.Code != 0 {
		return nil, engine.RunError("cloudvision", &APIError{Code: r.Error.Code, Message: r.Error.Message})
	}

	var text string
	switch {
	case r.FullTextAnnotation != nil:
		text = r.FullTextAnnotation.Text
	case len(r.TextAnnotations) > 0:
		// The first annotation is the whole-image text.
		text = r.TextAnnotations[0].Description
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return engine.RecognizedText{}, nil
	}

	var blocks []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			blocks = append(blocks, line)
		}
	}
	return engine.RecognizedText{Text: strings.Join(blocks, " "), Blocks: blocks}, nil
}

// Close drops the client. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.svc = nil
	return nil
}

// APIError is a per-image error reported inside a 200 response.
type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vision api error %d: %s", e.Code, e.Message)
}

var _ engine.Engine = (*Engine)(nil)
