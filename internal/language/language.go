package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// aliasTable lists the ISO 639-2 codes (terminology and bibliographic) and
// English names editors send for the languages tmengine profiles.
var aliasTable = map[string][]string{
	"en": {"eng", "english"},
	"es": {"spa", "spanish", "castilian"},
	"fr": {"fra", "fre", "french"},
	"de": {"deu", "ger", "german"},
	"it": {"ita", "italian"},
	"pt": {"por", "portuguese"},
	"ja": {"jpn", "japanese"},
	"ko": {"kor", "korean"},
	"zh": {"zho", "chi", "chinese", "mandarin"},
	"ru": {"rus", "russian"},
	"ar": {"ara", "arabic"},
	"hi": {"hin", "hindi"},
	"nl": {"nld", "dut", "dutch", "flemish"},
	"pl": {"pol", "polish"},
	"sv": {"swe", "swedish"},
	"da": {"dan", "danish"},
	"no": {"nor", "nob", "norwegian"},
	"fi": {"fin", "finnish"},
}

var aliases = func() map[string]string {
	m := make(map[string]string, len(aliasTable)*4)
	for code, names := range aliasTable {
		m[code] = code
		for _, name := range names {
			m[name] = code
		}
	}
	return m
}()

var namer = display.English.Languages()

// ToISO2 reduces a code, English name, or BCP 47 tag to ISO 639-1. Unknown
// two-letter codes pass through; anything else unrecognized yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if iso, ok := aliases[code]; ok {
		return iso
	}
	if len(code) == 2 {
		return code
	}
	if !strings.ContainsAny(code, "-_") {
		return ""
	}
	tag, err := xlang.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return ToISO2(base.String())
}

// Normalize returns the ISO 639-1 form of code when one is known, otherwise
// the trimmed lowercase input.
func Normalize(code string) string {
	if iso := ToISO2(code); iso != "" {
		return iso
	}
	return strings.ToLower(strings.TrimSpace(code))
}

// Tag returns the x/text tag for code, or Und.
func Tag(code string) xlang.Tag {
	normalized := Normalize(code)
	if normalized == "" {
		return xlang.Und
	}
	tag, err := xlang.Parse(normalized)
	if err != nil {
		return xlang.Und
	}
	return tag
}

// SameLanguage reports whether two codes name the same language.
func SameLanguage(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// DisplayName returns the English name for code, "Unknown" for blank
// input, or the uppercased code when x/text has no name for it.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if tag := Tag(code); tag != xlang.Und {
		if name := namer.Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
