// Package locale maps the two-letter language codes used by vocabulary
// content to the BCP-47 locale tags understood by speech synthesis and
// speech recognition backends.
//
// The tables are fixed: content authors pick from a known set of languages,
// and unmapped codes fall back to [DefaultFallback] (or a configured
// override) rather than failing. Voice selection additionally needs the
// human-readable names a synthesis voice may carry for a language, both in
// English and in the language itself; [NameVariants] provides those.
package locale

import "strings"

// DefaultFallback is the locale used when a language code has no mapping.
const DefaultFallback = "sk-SK"

// synthesis maps two-letter codes to the locale requested from speech
// synthesis voices.
var synthesis = map[string]string{
	"en": "en-US",
	"sk": "sk-SK",
	"cs": "cs-CZ",
	"de": "de-DE",
	"es": "es-ES",
	"fr": "fr-FR",
	"it": "it-IT",
	"pl": "pl-PL",
	"hu": "hu-HU",
	"uk": "uk-UA",
	"ru": "ru-RU",
	"pt": "pt-PT",
	"nl": "nl-NL",
}

// recognition maps two-letter codes to the locale requested from speech
// recognition sessions. Kept separate from the synthesis table because some
// platforms expose recognition under different regional tags than synthesis.
var recognition = map[string]string{
	"en": "en-US",
	"sk": "sk-SK",
	"cs": "cs-CZ",
	"de": "de-DE",
	"es": "es-ES",
	"fr": "fr-FR",
	"it": "it-IT",
	"pl": "pl-PL",
	"hu": "hu-HU",
	"uk": "uk-UA",
	"ru": "ru-RU",
	"pt": "pt-PT",
	"nl": "nl-NL",
}

// aliases maps legacy or colloquial codes that appear in older content to
// their ISO 639-1 form.
var aliases = map[string]string{
	"cz": "cs",
	"ua": "uk",
}

// nameVariants lists lowercase substrings that identify a synthesis voice
// for a language by display name: the English language name plus the
// language's own name for itself.
var nameVariants = map[string][]string{
	"en": {"english"},
	"sk": {"slovak", "slovensk"},
	"cs": {"czech", "češt", "česk"},
	"de": {"german", "deutsch"},
	"es": {"spanish", "español"},
	"fr": {"french", "français"},
	"it": {"italian", "italiano"},
	"pl": {"polish", "polski"},
	"hu": {"hungarian", "magyar"},
	"uk": {"ukrainian", "україн"},
	"ru": {"russian", "русск"},
	"pt": {"portuguese", "português"},
	"nl": {"dutch", "nederlands"},
}

// Normalize lowercases and trims a language code and resolves known aliases
// ("cz" → "cs", "ua" → "uk"). A full locale tag is reduced to its language
// part ("en-GB" → "en").
func Normalize(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(c, "-_"); i >= 0 {
		c = c[:i]
	}
	if a, ok := aliases[c]; ok {
		return a
	}
	return c
}

// ForSynthesis returns the synthesis locale for a two-letter language code,
// or fallback when the code is unmapped. An empty fallback selects
// [DefaultFallback].
func ForSynthesis(code, fallback string) string {
	if l, ok := synthesis[Normalize(code)]; ok {
		return l
	}
	if fallback != "" {
		return fallback
	}
	return DefaultFallback
}

// ForRecognition returns the recognition locale for a two-letter language
// code, or fallback when the code is unmapped. An empty fallback selects
// [DefaultFallback].
func ForRecognition(code, fallback string) string {
	if l, ok := recognition[Normalize(code)]; ok {
		return l
	}
	if fallback != "" {
		return fallback
	}
	return DefaultFallback
}

// NameVariants returns lowercase display-name substrings that identify a
// voice for the given language, or nil when the language is unknown.
func NameVariants(code string) []string {
	return nameVariants[Normalize(code)]
}
