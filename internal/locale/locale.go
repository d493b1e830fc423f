// Package locale holds the user-facing message catalog (Korean and English)
// and the language matching used by the i18n middleware.
package locale

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	Korean  = "ko"
	English = "en"
)

// Message keys.
const (
	NetworkCheckOK   = "network_check_ok"
	EchoReply        = "echo_reply"
	BatchComplete    = "batch_complete"
	BatchPartial     = "batch_partial"
	BatchFailed      = "batch_failed"
	EmotionDone      = "emotion_done"
	EmotionFailed    = "emotion_failed"
	RegenerateDone   = "regenerate_done"
	RegenerateFailed = "regenerate_failed"
	InvalidMessage   = "invalid_message"
	InvalidImage     = "invalid_image"
	UnknownEmotion   = "unknown_emotion"
	PersonaNotFound  = "persona_not_found"
	ServerError      = "server_error"
)

var supported = []language.Tag{language.Korean, language.English}

var matcher = language.NewMatcher(supported)

var entries = map[string][2]string{
	// key: {ko, en}
	NetworkCheckOK:   {"네트워크 확인 완료", "Network check successful"},
	EchoReply:        {"서버 수신: %s", "server received: %s"},
	BatchComplete:    {"모든 감정 이미지가 생성되었습니다", "All emotion images generated"},
	BatchPartial:     {"감정 이미지 %d/%d개 생성 완료", "%d of %d emotion images generated"},
	BatchFailed:      {"감정 이미지를 생성하지 못했습니다", "Failed to generate emotion images"},
	EmotionDone:      {"%s 이미지 생성 완료", "%s image generated"},
	EmotionFailed:    {"%s 이미지 생성 실패", "%s image failed"},
	RegenerateDone:   {"%s 이미지가 다시 생성되었습니다", "%s image regenerated"},
	RegenerateFailed: {"%s 이미지를 다시 생성하지 못했습니다", "Failed to regenerate %s image"},
	InvalidMessage:   {"잘못된 메시지 형식입니다", "Invalid message format"},
	InvalidImage:     {"이미지를 읽을 수 없습니다", "Image could not be read"},
	UnknownEmotion:   {"알 수 없는 감정입니다: %s", "Unknown emotion: %s"},
	PersonaNotFound:  {"페르소나를 찾을 수 없습니다", "Persona not found"},
	ServerError:      {"서버 오류가 발생했습니다", "Internal server error"},
}

var cat = buildCatalog()

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msgs := range entries {
		_ = b.SetString(language.Korean, key, msgs[0])
		_ = b.SetString(language.English, key, msgs[1])
	}
	return b
}

// Normalize maps any tag-like string onto a supported locale code, or "" when
// it matches neither.
func Normalize(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, Korean):
		return Korean
	case strings.HasPrefix(raw, English):
		return English
	}
	return ""
}

// Match picks the best supported locale for an Accept-Language header. ok is
// false when the header expresses no usable preference.
func Match(acceptLanguage string) (code string, ok bool) {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return "", false
	}
	if supported[idx] == language.Korean {
		return Korean, true
	}
	return English, true
}

// FromCountry maps an ISO country code to a locale.
func FromCountry(country string) string {
	if strings.EqualFold(strings.TrimSpace(country), "KR") {
		return Korean
	}
	return English
}

// Printer returns a printer for code; unknown codes fall back to English.
func Printer(code string) *message.Printer {
	tag := language.English
	if Normalize(code) == Korean {
		tag = language.Korean
	}
	return message.NewPrinter(tag, message.Catalog(cat))
}

// T formats the catalog entry key in the given locale.
func T(code, key string, args ...any) string {
	return Printer(code).Sprintf(key, args...)
}
