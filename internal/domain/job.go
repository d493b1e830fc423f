package domain

import "time"

// ResultStatus tags the outcome of a single emotion or of a whole batch.
type ResultStatus string

const (
	StatusComplete ResultStatus = "complete"
	StatusPartial  ResultStatus = "partial"
	StatusFailed   ResultStatus = "failed"
	StatusError    ResultStatus = "error"
)

// GenerationResult is the outcome for one emotion: either an image URL or an
// error message, never both.
type GenerationResult struct {
	Emotion  Emotion      `json:"-"`
	Status   ResultStatus `json:"status"`
	ImageURL string       `json:"image_url,omitempty"`
	Message  string       `json:"message,omitempty"`
	Kind     ErrorKind    `json:"kind,omitempty"`
}

// Succeeded reports whether the result carries a published image.
func (r GenerationResult) Succeeded() bool {
	return r.Status == StatusComplete && r.ImageURL != ""
}

// Success builds a successful result.
func Success(emotion Emotion, url string) GenerationResult {
	return GenerationResult{Emotion: emotion, Status: StatusComplete, ImageURL: url}
}

// Failure builds a failed result from err.
func Failure(emotion Emotion, err error) GenerationResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return GenerationResult{Emotion: emotion, Status: StatusError, Message: msg, Kind: KindOf(err)}
}

// PersonaResult aggregates the five emotion results of one batch.
type PersonaResult struct {
	Status ResultStatus                 `json:"status"`
	Images map[Emotion]GenerationResult `json:"images"`
}

// NewPersonaResult derives the aggregate status from the per-emotion results:
// complete when all succeeded, failed when none did, partial otherwise.
func NewPersonaResult(results []GenerationResult) PersonaResult {
	images := make(map[Emotion]GenerationResult, len(results))
	succeeded := 0
	for _, r := range results {
		images[r.Emotion] = r
		if r.Succeeded() {
			succeeded++
		}
	}
	status := StatusPartial
	switch {
	case len(results) > 0 && succeeded == len(results):
		status = StatusComplete
	case succeeded == 0:
		status = StatusFailed
	}
	return PersonaResult{Status: status, Images: images}
}

// URLs returns the published URL of every successful emotion.
func (p PersonaResult) URLs() map[Emotion]string {
	out := make(map[Emotion]string, len(p.Images))
	for emotion, r := range p.Images {
		if r.Succeeded() {
			out[emotion] = r.ImageURL
		}
	}
	return out
}

// PersonaRecord is the document stored per user.
type PersonaRecord struct {
	UID       string             `json:"uid"`
	Images    map[Emotion]string `json:"images"`
	UpdatedAt time.Time          `json:"updated_at"`
}
