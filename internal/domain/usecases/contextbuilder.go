package usecases

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
)

// NoSourcesSentinel is returned by BuildContext when nothing usable was
// retrieved. The generator treats it like any other context text.
const NoSourcesSentinel = "情報ソースが見つかりませんでした。"

// ContextItem is one retrieved fragment to be rendered into the prompt
// context. Only Text is required; the rest is appended parenthetically.
type ContextItem struct {
	Text   string
	Date   string
	Source string
	Score  *float64
}

// ContextItemsFromPassages adapts retrieved passages for BuildContext.
func ContextItemsFromPassages(passages []entities.Passage) []ContextItem {
	items := make([]ContextItem, len(passages))
	for i, p := range passages {
		score := p.Score
		items[i] = ContextItem{
			Text:   p.Text,
			Date:   p.Metadata.Date,
			Source: p.Metadata.Location,
			Score:  &score,
		}
	}
	return items
}

// BuildContext normalizes a heterogeneous list of retrieved fragments
// into a single numbered context string for prompting.
//
// Items whose text is empty after trimming are skipped entirely;
// numbering stays dense over the kept items. If everything is skipped
// the no-sources sentinel is returned.
func BuildContext(items []ContextItem) string {
	if len(items) == 0 {
		return NoSourcesSentinel
	}

	var lines []string
	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}

		var metaParts []string
		if v := strings.TrimSpace(item.Date); v != "" {
			metaParts = append(metaParts, v)
		}
		if v := strings.TrimSpace(item.Source); v != "" {
			metaParts = append(metaParts, v)
		}
		if item.Score != nil {
			metaParts = append(metaParts, strconv.FormatFloat(*item.Score, 'g', -1, 64))
		}

		numbered := fmt.Sprintf("%02d. %s", len(lines)+1, text)
		if len(metaParts) > 0 {
			numbered = fmt.Sprintf("%s（%s）", numbered, strings.Join(metaParts, " / "))
		}
		lines = append(lines, numbered)
	}

	if len(lines) == 0 {
		return NoSourcesSentinel
	}
	return strings.Join(lines, "\n")
}
