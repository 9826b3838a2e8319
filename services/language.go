package services

import (
	"unicode"
)

// Language tags produced by DetectLanguage
const (
	LanguageEnglish  = "en"
	LanguageJapanese = "ja"
)

// DefaultLanguageSample is how many leading runes DetectLanguage inspects
const DefaultLanguageSample = 2000

const japaneseRatioThreshold = 0.3

// DetectLanguage classifies text as ja when CJK runes make up more than 30%
// of CJK plus Latin letters within the first sampleChars runes.
func DetectLanguage(text string, sampleChars int) string {
	if sampleChars <= 0 {
		sampleChars = DefaultLanguageSample
	}

	var cjk, latin, seen int
	for _, r := range text {
		if seen >= sampleChars {
			break
		}
		seen++

		switch {
		case isCJK(r):
			cjk++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}

	if cjk+latin == 0 {
		return LanguageEnglish
	}
	if float64(cjk)/float64(cjk+latin) > japaneseRatioThreshold {
		return LanguageJapanese
	}
	return LanguageEnglish
}

func isCJK(r rune) bool {
	switch {
	case unicode.Is(unicode.Han, r),
		unicode.Is(unicode.Hiragana, r),
		unicode.Is(unicode.Katakana, r):
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK symbols and punctuation
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // half and full-width forms
		return true
	}
	return false
}
