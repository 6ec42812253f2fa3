package usecases

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
)

func floatPtr(f float64) *float64 { return &f }

func TestBuildContextEmptyInput(t *testing.T) {
	assert.Equal(t, NoSourcesSentinel, BuildContext(nil))
	assert.Equal(t, NoSourcesSentinel, BuildContext([]ContextItem{}))
}

func TestBuildContextAllItemsBlank(t *testing.T) {
	items := []ContextItem{
		{Text: ""},
		{Text: "   "},
		{Text: "\n\t"},
	}
	assert.Equal(t, NoSourcesSentinel, BuildContext(items))
}

func TestBuildContextDenseNumberingSkipsBlanks(t *testing.T) {
	items := []ContextItem{
		{Text: "朝は散歩した。"},
		{Text: "  "},
		{Text: "夜は読書した。"},
	}
	got := BuildContext(items)
	lines := strings.Split(got, "\n")
	assert.Equal(t, []string{
		"01. 朝は散歩した。",
		"02. 夜は読書した。",
	}, lines)
}

func TestBuildContextMetadataRendering(t *testing.T) {
	tests := []struct {
		name string
		item ContextItem
		want string
	}{
		{
			name: "all fields",
			item: ContextItem{Text: "雨が降った。", Date: "2025-09-23", Source: "富山市", Score: floatPtr(0.5)},
			want: "01. 雨が降った。（2025-09-23 / 富山市 / 0.5）",
		},
		{
			name: "date only",
			item: ContextItem{Text: "雨が降った。", Date: "2025-09-23"},
			want: "01. 雨が降った。（2025-09-23）",
		},
		{
			name: "no metadata",
			item: ContextItem{Text: "雨が降った。"},
			want: "01. 雨が降った。",
		},
		{
			name: "blank date dropped",
			item: ContextItem{Text: "雨が降った。", Date: "  ", Source: "富山市"},
			want: "01. 雨が降った。（富山市）",
		},
		{
			name: "zero score still rendered",
			item: ContextItem{Text: "雨が降った。", Score: floatPtr(0)},
			want: "01. 雨が降った。（0）",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildContext([]ContextItem{tt.item}))
		})
	}
}

func TestBuildContextTwoDigitNumbering(t *testing.T) {
	items := make([]ContextItem, 11)
	for i := range items {
		items[i] = ContextItem{Text: "記録あり。"}
	}
	got := BuildContext(items)
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 11)
	assert.True(t, strings.HasPrefix(lines[0], "01. "))
	assert.True(t, strings.HasPrefix(lines[9], "10. "))
	assert.True(t, strings.HasPrefix(lines[10], "11. "))
}

func TestContextItemsFromPassages(t *testing.T) {
	passages := []entities.Passage{
		{
			Text:     "晴れていた。",
			Metadata: entities.PassageMeta{Date: "2025-09-22", Location: "富山市"},
			Score:    0.87,
		},
	}
	items := ContextItemsFromPassages(passages)
	assert.Len(t, items, 1)
	assert.Equal(t, "晴れていた。", items[0].Text)
	assert.Equal(t, "2025-09-22", items[0].Date)
	assert.Equal(t, "富山市", items[0].Source)
	assert.NotNil(t, items[0].Score)
	assert.Equal(t, 0.87, *items[0].Score)
}
