package alignment

import "tmengine/internal/language"

// Profile holds sentence statistics for one language.
type Profile struct {
	Language      string
	AvgChars      float64
	Variance      float64
	AvgWords      float64
	Abbreviations []string
}

var profiles = map[string]Profile{
	"en": {Language: "en", AvgChars: 85, Variance: 25, AvgWords: 15,
		Abbreviations: []string{"mr", "mrs", "ms", "dr", "prof", "inc", "ltd", "e.g", "i.e", "etc", "vs", "u.s"}},
	"es": {Language: "es", AvgChars: 95, Variance: 30, AvgWords: 18,
		Abbreviations: []string{"sr", "sra", "dr", "prof", "s.a", "etc", "p.ej", "ee.uu"}},
	"fr": {Language: "fr", AvgChars: 100, Variance: 35, AvgWords: 20,
		Abbreviations: []string{"m", "mme", "dr", "prof", "etc", "p.ex"}},
	"de": {Language: "de", AvgChars: 110, Variance: 40, AvgWords: 22,
		Abbreviations: []string{"dr", "prof", "etc", "z.b", "d.h", "usw"}},
}

// ProfileFor returns the profile for lang, falling back to English.
func ProfileFor(lang string) Profile {
	if p, ok := profiles[language.ToISO2(lang)]; ok {
		return p
	}
	return profiles["en"]
}

// expectedRatio is the typical target/source sentence length ratio.
func expectedRatio(langs Languages) float64 {
	return ProfileFor(langs.Target).AvgChars / ProfileFor(langs.Source).AvgChars
}
