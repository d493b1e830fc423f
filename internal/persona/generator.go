// Package persona runs the five-emotion generation batch against the engine:
// upload, bind and submit, poll, fetch and publish, one emotion at a time.
package persona

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"persona/internal/comfy"
	"persona/internal/domain"
	"persona/internal/infra"
	"persona/internal/lease"
	"persona/internal/metrics"
	"persona/internal/storage"
	"persona/internal/workflow"
)

// Engine is the part of the engine client the generator drives.
type Engine interface {
	UploadImage(ctx context.Context, img domain.InputImage) (domain.AssetHandle, error)
	QueuePrompt(ctx context.Context, tpl workflow.Template) (string, error)
	Poll(ctx context.Context, promptID string) (comfy.PollResult, error)
}

// TemplateLoader returns a private copy of the workflow at path.
type TemplateLoader interface {
	Load(path string) (workflow.Template, error)
	Bindings() workflow.Bindings
}

// Progress is reported to an Observer after each emotion finishes.
type Progress struct {
	Index  int // 1-based
	Total  int
	Result domain.GenerationResult
}

// Observer receives per-emotion progress. It runs on the worker goroutine
// and must not block for long.
type Observer func(Progress)

// Options wires a Generator. Loader, Engine, Source and Publisher are
// required.
type Options struct {
	Loader       TemplateLoader
	WorkflowPath string
	Engine       Engine
	Source       ArtifactSource
	Publisher    storage.Publisher
	Store        domain.PersonaRepository
	Lease        lease.Lease
	Prompts      map[domain.Emotion]string
	Cooldown     time.Duration
	BatchTimeout time.Duration
	Seed         func() uint32
	Logger       *infra.Logger
}

// Generator orchestrates persona batches.
type Generator struct {
	loader       TemplateLoader
	workflowPath string
	engine       Engine
	source       ArtifactSource
	publisher    storage.Publisher
	store        domain.PersonaRepository
	lease        lease.Lease
	prompts      map[domain.Emotion]string
	cooldown     time.Duration
	batchTimeout time.Duration
	seed         func() uint32
	logger       *infra.Logger
}

// New validates opts and fills defaults.
func New(opts Options) (*Generator, error) {
	switch {
	case opts.Loader == nil:
		return nil, errors.New("persona: template loader is required")
	case opts.Engine == nil:
		return nil, errors.New("persona: engine is required")
	case opts.Source == nil:
		return nil, errors.New("persona: artifact source is required")
	case opts.Publisher == nil:
		return nil, errors.New("persona: publisher is required")
	case strings.TrimSpace(opts.WorkflowPath) == "":
		return nil, errors.New("persona: workflow path is required")
	}
	g := &Generator{
		loader:       opts.Loader,
		workflowPath: opts.WorkflowPath,
		engine:       opts.Engine,
		source:       opts.Source,
		publisher:    opts.Publisher,
		store:        opts.Store,
		lease:        opts.Lease,
		prompts:      opts.Prompts,
		cooldown:     opts.Cooldown,
		batchTimeout: opts.BatchTimeout,
		seed:         opts.Seed,
		logger:       opts.Logger,
	}
	if g.lease == nil {
		g.lease = lease.NewLocal()
	}
	if g.prompts == nil {
		g.prompts = DefaultPrompts()
	}
	for _, e := range domain.Emotions {
		if strings.TrimSpace(g.prompts[e]) == "" {
			return nil, fmt.Errorf("persona: no prompt for emotion %s", e)
		}
	}
	if g.seed == nil {
		g.seed = rand.Uint32
	}
	if g.logger == nil {
		g.logger = infra.NopLogger()
	}
	return g, nil
}

// Generate runs every emotion for img and, when uid is set and a store is
// configured, persists the successful URLs under uid.
//
// Per-emotion failures never abort the batch; they are recorded in the
// result. The returned error is reserved for request-level problems: the
// template cannot be loaded, the image is empty, or persisting failed.
func (g *Generator) Generate(ctx context.Context, uid string, img domain.InputImage, observe Observer) (domain.PersonaResult, error) {
	tpl, err := g.prepare(img)
	if err != nil {
		return domain.PersonaResult{}, err
	}
	if g.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.batchTimeout)
		defer cancel()
	}

	queue := make(chan domain.Emotion, len(domain.Emotions))
	for _, e := range domain.Emotions {
		queue <- e
	}
	close(queue)

	start := time.Now()
	results := g.work(ctx, tpl, img, queue, observe)
	out := domain.NewPersonaResult(results)
	metrics.BatchesTotal.WithLabelValues(string(out.Status)).Inc()
	g.logger.Info().
		Str("uid", uid).
		Str("status", string(out.Status)).
		Int("succeeded", len(out.URLs())).
		Dur("took", time.Since(start)).
		Msg("persona: batch finished")

	if err := g.persist(ctx, uid, out.URLs()); err != nil {
		return out, err
	}
	return out, nil
}

// Regenerate runs a single emotion. With uid set, a success overwrites just
// that emotion's stored URL.
func (g *Generator) Regenerate(ctx context.Context, uid string, emotion domain.Emotion, img domain.InputImage) (domain.GenerationResult, error) {
	if _, err := domain.ParseEmotion(string(emotion)); err != nil {
		return domain.GenerationResult{}, err
	}
	tpl, err := g.prepare(img)
	if err != nil {
		return domain.GenerationResult{}, err
	}
	if g.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.batchTimeout)
		defer cancel()
	}
	res := g.runJob(ctx, tpl, emotion, img)
	if res.Succeeded() {
		if err := g.persist(ctx, uid, map[domain.Emotion]string{emotion: res.ImageURL}); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (g *Generator) prepare(img domain.InputImage) (workflow.Template, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	tpl, err := g.loader.Load(g.workflowPath)
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// work is the single consumer of the batch queue. Emotions are processed in
// queue order with a cooldown between them; once ctx ends, every remaining
// emotion is recorded as cancelled without touching the engine.
func (g *Generator) work(ctx context.Context, tpl workflow.Template, img domain.InputImage, queue <-chan domain.Emotion, observe Observer) []domain.GenerationResult {
	total := cap(queue)
	results := make([]domain.GenerationResult, 0, total)
	for emotion := range queue {
		if len(results) > 0 && g.cooldown > 0 && ctx.Err() == nil {
			timer := time.NewTimer(g.cooldown)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
			timer.Stop()
		}

		var res domain.GenerationResult
		if err := ctx.Err(); err != nil {
			res = domain.Failure(emotion, fmt.Errorf("%s: %w", emotion, err))
		} else {
			res = g.runJob(ctx, tpl, emotion, img)
		}
		results = append(results, res)
		if observe != nil {
			observe(Progress{Index: len(results), Total: total, Result: res})
		}
	}
	return results
}

func (g *Generator) persist(ctx context.Context, uid string, urls map[domain.Emotion]string) error {
	uid = strings.TrimSpace(uid)
	if uid == "" || g.store == nil || len(urls) == 0 {
		return nil
	}
	// A cancelled batch still keeps what it produced.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := g.store.SaveImages(ctx, uid, urls); err != nil {
		return fmt.Errorf("persona: save images for %s: %w", uid, err)
	}
	return nil
}
