package domain

import (
	"fmt"
	"strings"
)

// Emotion is one of the fixed expression categories a persona is rendered in.
type Emotion string

const (
	EmotionJoy     Emotion = "joy"
	EmotionSadness Emotion = "sadness"
	EmotionAnger   Emotion = "anger"
	EmotionDisgust Emotion = "disgust"
	EmotionSerious Emotion = "serious"
)

// Emotions lists every emotion in processing order.
var Emotions = []Emotion{
	EmotionJoy,
	EmotionSadness,
	EmotionAnger,
	EmotionDisgust,
	EmotionSerious,
}

// ParseEmotion normalizes free-form input into a known emotion.
func ParseEmotion(raw string) (Emotion, error) {
	candidate := Emotion(strings.ToLower(strings.TrimSpace(raw)))
	for _, e := range Emotions {
		if e == candidate {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEmotion, raw)
}

func (e Emotion) String() string {
	return string(e)
}
