package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnknownEmotion = errors.New("unknown emotion")
	ErrInvalidImage   = errors.New("invalid image")

	ErrTemplateNotFound   = errors.New("workflow template not found")
	ErrMalformedTemplate  = errors.New("malformed workflow template")
	ErrUploadRejected     = errors.New("engine rejected image upload")
	ErrSubmissionRejected = errors.New("engine rejected job submission")
	ErrPollTimeout        = errors.New("timed out waiting for job result")
	ErrUnexpectedResult   = errors.New("unexpected job result structure")
	ErrPublishFailed      = errors.New("failed to publish generated image")
)

// ErrorKind names a failure category in API responses and metrics.
type ErrorKind string

const (
	KindTemplateNotFound   ErrorKind = "template_not_found"
	KindMalformedTemplate  ErrorKind = "malformed_template"
	KindUploadRejected     ErrorKind = "upload_rejected"
	KindSubmissionRejected ErrorKind = "submission_rejected"
	KindPollTimeout        ErrorKind = "poll_timeout"
	KindUnexpectedResult   ErrorKind = "unexpected_result"
	KindPublishFailed      ErrorKind = "publish_failed"
	KindCancelled          ErrorKind = "cancelled"
	KindInternal           ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrTemplateNotFound, KindTemplateNotFound},
	{ErrMalformedTemplate, KindMalformedTemplate},
	{ErrUploadRejected, KindUploadRejected},
	{ErrSubmissionRejected, KindSubmissionRejected},
	{ErrPollTimeout, KindPollTimeout},
	{ErrUnexpectedResult, KindUnexpectedResult},
	{ErrPublishFailed, KindPublishFailed},
	{context.Canceled, KindCancelled},
	{context.DeadlineExceeded, KindCancelled},
}

// KindOf maps an error onto the failure taxonomy. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, candidate := range errorKinds {
		if errors.Is(err, candidate.err) {
			return candidate.kind
		}
	}
	return KindInternal
}
