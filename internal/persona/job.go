package persona

import (
	"context"
	"fmt"
	"path"
	"time"

	"persona/internal/domain"
	"persona/internal/metrics"
	"persona/internal/workflow"
)

// ArtifactKey is the object-storage key a generated image is published under.
func ArtifactKey(emotion domain.Emotion, filename string) string {
	return fmt.Sprintf("generate_images/%s_%s", emotion, path.Base(filename))
}

// runJob takes one emotion from upload to published URL. Every failure is
// turned into a tagged result; nothing here returns an error.
func (g *Generator) runJob(ctx context.Context, tpl workflow.Template, emotion domain.Emotion, img domain.InputImage) domain.GenerationResult {
	start := time.Now()
	log := g.logger.With().Str("emotion", string(emotion)).Logger()

	url, err := g.generate(ctx, tpl, emotion, img)
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	if err != nil {
		res := domain.Failure(emotion, fmt.Errorf("%s: %w", emotion, err))
		metrics.JobsTotal.WithLabelValues(string(emotion), string(res.Kind)).Inc()
		log.Warn().Err(err).Str("kind", string(res.Kind)).Dur("took", time.Since(start)).Msg("persona: emotion failed")
		return res
	}
	metrics.JobsTotal.WithLabelValues(string(emotion), "ok").Inc()
	metrics.JobDuration.WithLabelValues(string(emotion)).Observe(time.Since(start).Seconds())
	log.Info().Str("url", url).Dur("took", time.Since(start)).Msg("persona: emotion generated")
	return domain.Success(emotion, url)
}

func (g *Generator) generate(ctx context.Context, tpl workflow.Template, emotion domain.Emotion, img domain.InputImage) (string, error) {
	waitStart := time.Now()
	release, err := g.lease.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire engine: %w", err)
	}
	defer release()
	metrics.LeaseWait.Observe(time.Since(waitStart).Seconds())

	handle, err := g.engine.UploadImage(ctx, img)
	if err != nil {
		return "", err
	}

	bindings := g.loader.Bindings()
	seed := g.seed()
	job, err := workflow.Bind(tpl, bindings, workflow.Params{
		Prompt:   g.prompts[emotion],
		Negative: NegativePrompt,
		Seed:     seed,
		Image:    handle,
	})
	if err != nil {
		return "", err
	}

	promptID, err := g.engine.QueuePrompt(ctx, job)
	if err != nil {
		return "", err
	}
	g.logger.Debug().
		Str("emotion", string(emotion)).
		Str("prompt_id", promptID).
		Str("handle", string(handle)).
		Uint32("seed", seed).
		Msg("persona: job queued")

	polled, err := g.engine.Poll(ctx, promptID)
	if err != nil {
		return "", err
	}
	metrics.PollAttempts.Observe(float64(polled.Attempts))
	ref, err := polled.Output(bindings.Output)
	if err != nil {
		return "", err
	}

	art, err := g.source.Fetch(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %v", domain.ErrPublishFailed, ref.Filename, err)
	}
	release()

	return g.publisher.Publish(ctx, ArtifactKey(emotion, ref.Filename), art.Data, art.ContentType)
}
