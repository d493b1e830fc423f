package persona

import "persona/internal/domain"

// NegativePrompt is written into every negative-prompt node of every job.
const NegativePrompt = "Avoid cross-eyed appearances, unnatural eye alignment, or any distortion in the direction of the gaze. " +
	"Ensure that the eyes are naturally aligned and symmetrical, with pupils centered and looking in the same direction. " +
	"Do not generate mismatched or asymmetrical eye positions, and avoid any overly exaggerated or distorted reflections in the eyes"

const portraitStyle = "head and shoulders portrait of the same person as the reference photo, keep identity, hairstyle and face shape, " +
	"soft studio lighting, plain pastel background, clean 3d animated character style, high detail"

// DefaultPrompts returns the positive prompt used for each emotion.
func DefaultPrompts() map[domain.Emotion]string {
	return map[domain.Emotion]string{
		domain.EmotionJoy:     "bright joyful expression, wide genuine smile showing teeth, raised cheeks, sparkling eyes, " + portraitStyle,
		domain.EmotionSadness: "sad expression, downturned mouth, glossy teary eyes, inner eyebrows raised, slightly lowered head, " + portraitStyle,
		domain.EmotionAnger:   "angry expression, furrowed brows pulled together, glaring eyes, tight pressed lips, flared nostrils, " + portraitStyle,
		domain.EmotionDisgust: "disgusted expression, wrinkled nose, raised upper lip, squinting eyes, head turned slightly away, " + portraitStyle,
		domain.EmotionSerious: "serious calm expression, neutral closed mouth, steady direct gaze, relaxed brows, " + portraitStyle,
	}
}
