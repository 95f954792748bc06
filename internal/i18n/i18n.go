// Package i18n provides internationalization support for user-facing messages
package i18n

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

const (
	// DefaultLanguage is the fallback language when no translation is available
	DefaultLanguage = "en"
	// FrenchMessages is the language the original companion app shipped with
	FrenchMessages = "fr"
)

// Localizer provides translation functionality
type Localizer struct {
	language string
	messages map[string]string
}

// NewLocalizer creates a new localizer for the specified language
func NewLocalizer(language string) *Localizer {
	return &Localizer{
		language: language,
		messages: getMessages(language),
	}
}

// Language returns the language code the localizer was built for
func (l *Localizer) Language() string {
	return l.language
}

// T translates a message key, with optional parameters for formatting
func (l *Localizer) T(key string, args ...interface{}) string {
	if message, exists := l.messages[key]; exists {
		if len(args) > 0 {
			return fmt.Sprintf(message, args...)
		}
		return message
	}

	// Fallback to English if key not found in current language
	if l.language != DefaultLanguage {
		if fallbackMessage, exists := getMessages(DefaultLanguage)[key]; exists {
			if len(args) > 0 {
				return fmt.Sprintf(fallbackMessage, args...)
			}
			return fallbackMessage
		}
	}

	// Ultimate fallback: return the key itself
	return key
}

// Plural picks the singular key for n <= 1 and the plural key otherwise,
// passing n as the first formatting argument.
func (l *Localizer) Plural(key string, n int) string {
	if n > 1 {
		return l.T(key+"_plural", n)
	}
	return l.T(key, n)
}

// Ago renders an elapsed duration as "5 minutes ago", in whole minutes below
// an hour, whole hours below a day and whole days beyond.
func (l *Localizer) Ago(d time.Duration) string {
	switch {
	case d < time.Hour:
		return l.Plural("format.minutes_ago", int(max(d, 0)/time.Minute))
	case d < 24*time.Hour:
		return l.Plural("format.hours_ago", int(d/time.Hour))
	default:
		return l.Plural("format.days_ago", int(d/(24*time.Hour)))
	}
}

// Points renders a quiz score.
func (l *Localizer) Points(n int) string {
	return l.Plural("format.points", n)
}

// GetSupportedLanguages returns list of supported language codes
func GetSupportedLanguages() []string {
	return []string{DefaultLanguage, FrenchMessages}
}

// IsSupported reports whether a language code has a message table
func IsSupported(language string) bool {
	for _, lang := range GetSupportedLanguages() {
		if lang == language {
			return true
		}
	}
	return false
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.French})

// Negotiate picks the supported language that best fits an Accept-Language
// header, falling back to fallback when nothing matches.
func Negotiate(acceptLanguage, fallback string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	return GetSupportedLanguages()[index]
}

// getMessages returns the message map for a given language
func getMessages(language string) map[string]string {
	switch language {
	case DefaultLanguage:
		return englishMessages
	case FrenchMessages:
		return frenchMessages
	default:
		return englishMessages // Default to English
	}
}
