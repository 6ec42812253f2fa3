package usecases

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Fixed phrases of the deterministic synthesizer. It must always emit a
// passage that its own self-check accepts, with no external dependency.
const (
	insufficientContextPoint = "文脈情報が不足していますが、穏やかな一日だったと記録します"
	noNotesSentence          = "特記事項は記録されていません。"
	leadSentence             = "今日の出来事は提供された資料をもとに整理しました。"
	morningDefault           = "静かに過ごしました"
	afternoonDefault         = "落ち着いた時間が流れました"
	closingDefault           = "一日の終わりに簡単な振り返りを行い、記録を整えました"
	fillerSentence           = "全体として落ち着いた雰囲気で、記録の整理と次の準備に時間を充てました。"
)

// Padding targets for the concatenated body, in runes.
const (
	padFloor = 210
	padCeil  = 280
)

var (
	enumMarkerPattern    = regexp.MustCompile(`^[0-9]+[\.)、\-]\s*`)
	parentheticalPattern = regexp.MustCompile(`（.*?）`)
	timePrefixPattern    = regexp.MustCompile(`^(朝|午前|午前中|昼|午後|夕方|夜|終日)(から|には|にかけて|まで|は|に)?`)
	leadingParticle      = regexp.MustCompile(`^(?:には|に|は|で|を|と|が|へ|も)\s*`)
	leadingPunct         = regexp.MustCompile(`^[、。,.\s]+`)
)

// normalizePoint strips enumeration markers, parenthetical asides,
// time-of-day prefixes and leading particles so a context line reads as
// a bare event clause.
func normalizePoint(text string) string {
	cleaned := enumMarkerPattern.ReplaceAllString(text, "")
	cleaned = parentheticalPattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, "　", " "))
	cleaned = timePrefixPattern.ReplaceAllString(cleaned, "")
	cleaned = leadingParticle.ReplaceAllString(cleaned, "")
	cleaned = leadingPunct.ReplaceAllString(cleaned, "")
	return strings.Trim(cleaned, "。．.、,")
}

// ensureSentence glues a time-of-day prefix onto a fragment and closes
// it with a full-width period, substituting fallbackPhrase when the
// fragment normalizes to nothing.
func ensureSentence(prefix, fragment, fallbackPhrase string) string {
	normalized := strings.Trim(strings.TrimSpace(fragment), "。．. ")
	if normalized == "" {
		normalized = fallbackPhrase
	}
	return prefix + normalized + "。"
}

// FallbackGenerate is the deterministic synthesizer: a header line plus
// exactly three body paragraphs, padded into the 210..280 rune band.
func FallbackGenerate(date, contextText, hint string) string {
	dateHeader := date + " の記録"

	var contextLines []string
	for _, line := range strings.Split(contextText, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		contextLines = append(contextLines, strings.Trim(line, "・ "))
	}

	// Up to three key points survive normalization.
	var keyPoints []string
	for _, line := range contextLines {
		if normalized := normalizePoint(line); normalized != "" {
			keyPoints = append(keyPoints, normalized)
		}
		if len(keyPoints) >= 3 {
			break
		}
	}
	if len(keyPoints) == 0 {
		keyPoints = []string{insufficientContextPoint}
	}

	hintSentence := strings.TrimSpace(hint)
	if hintSentence == "" {
		hintSentence = noNotesSentence
	}

	lead := strings.TrimSpace(leadSentence + hintSentence)
	if !strings.HasSuffix(lead, "。") {
		lead += "。"
	}

	morning := keyPoints[0]
	afternoon := afternoonDefault
	if len(keyPoints) > 1 {
		afternoon = keyPoints[1]
	}
	body := ensureSentence("午前中は", morning, morningDefault) +
		ensureSentence("午後は", afternoon, afternoonDefault)

	closingCore := closingDefault
	if len(keyPoints) > 2 {
		closingCore = keyPoints[2]
	}
	summary := ensureSentence("一日の締めくくりとして", closingCore, "記録を整えました")

	paragraphs := []string{lead, body, summary}

	// Pad the closing paragraph until the body clears the floor, never
	// letting the filler push it past the ceiling.
	bodyText := strings.Join(paragraphs, "")
	fillerLen := utf8.RuneCountInString(fillerSentence)
	for utf8.RuneCountInString(bodyText) < padFloor &&
		utf8.RuneCountInString(bodyText)+fillerLen <= padCeil {
		paragraphs[2] = strings.TrimRight(paragraphs[2], "。") + "。" + fillerSentence
		bodyText = strings.Join(paragraphs, "")
	}

	return strings.Join(append([]string{dateHeader}, paragraphs...), "\n")
}
