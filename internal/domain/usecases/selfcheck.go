package usecases

import (
	"fmt"
	"strings"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
)

// bannedWords is a fixed denylist of casual intensifiers a diary passage
// must never contain. Order is fixed so check details are deterministic.
var bannedWords = []string{"超", "マジ", "ヤバい", "ヤベー", "まじで"}

// Length band, in runes, for the concatenated body of a passage.
const (
	minBodyLen = 200
	maxBodyLen = 280
)

// Facts are the expected properties a generated passage is checked against.
type Facts struct {
	Date string // YYYY-MM-DD; empty skips date-dependent checks
}

// SelfCheck inspects generated text against the structural and content
// predicates and reports pass/fail with actionable repair instructions.
//
// The retry prompt names every failed check for a prospective
// re-generation call. The generator never issues that call: a failed
// primary check substitutes the deterministic fallback instead, keeping
// latency bounded.
func SelfCheck(text string, facts Facts) entities.SelfCheckReport {
	var checks []entities.CheckResult
	var issues []string

	expectedDate := strings.TrimSpace(facts.Date)
	if expectedDate != "" {
		dateNorm := strings.ReplaceAll(expectedDate, "-", "")
		textNorm := strings.ReplaceAll(text, "-", "")
		matched := strings.Contains(text, expectedDate) || strings.Contains(textNorm, dateNorm)
		detail := "本文に日付が含まれている"
		if !matched {
			detail = "本文に指定日付が含まれていない"
			issues = append(issues, "本文に日付を含める")
		}
		checks = append(checks, entities.CheckResult{Name: "date_presence", Passed: matched, Detail: detail})
	} else {
		checks = append(checks, entities.CheckResult{
			Name: "date_presence", Passed: true, Detail: "期待する日付が指定されていないためスキップ",
		})
	}

	var bannedHits []string
	for _, word := range bannedWords {
		if strings.Contains(text, word) {
			bannedHits = append(bannedHits, word)
		}
	}
	bannedPassed := len(bannedHits) == 0
	bannedDetail := "禁則語なし"
	if !bannedPassed {
		bannedDetail = fmt.Sprintf("禁則語 %s を削除", strings.Join(bannedHits, ", "))
		issues = append(issues, "禁則語を除去する")
	}
	checks = append(checks, entities.CheckResult{Name: "banned_words", Passed: bannedPassed, Detail: bannedDetail})

	lines := splitTrimmedLines(text)
	if len(lines) > 0 {
		header := strings.TrimSpace(lines[0])
		if expectedDate != "" {
			expectedHeader := expectedDate + " の記録"
			headerOK := header == expectedHeader
			headerDetail := "見出し行が規定形式"
			if !headerOK {
				headerDetail = fmt.Sprintf("見出しを『%s』に合わせる", expectedHeader)
				issues = append(issues, "見出し形式を修正する")
			}
			checks = append(checks, entities.CheckResult{Name: "header_format", Passed: headerOK, Detail: headerDetail})
		}

		bodyLines := lines[1:]
		blankFound := false
		nonEmpty := 0
		for _, line := range bodyLines {
			if strings.TrimSpace(line) == "" {
				blankFound = true
			} else {
				nonEmpty++
			}
		}
		structurePassed := !blankFound && nonEmpty == 3
		structureDetail := "本文3段落・空行なし"
		if !structurePassed {
			structureDetail = "本文の段落数・空行を見直す"
			issues = append(issues, "本文構成を整える")
		}
		checks = append(checks, entities.CheckResult{Name: "structure", Passed: structurePassed, Detail: structureDetail})

		if len(bodyLines) > 0 {
			bodyText := strings.Join(bodyLines, "")
			bodyLen := len([]rune(bodyText))
			lenPassed := minBodyLen <= bodyLen && bodyLen <= maxBodyLen
			lenDetail := "本文文字数が規定範囲"
			if !lenPassed {
				lenDetail = fmt.Sprintf("本文文字数を200〜280字に調整する (現在%d字)", bodyLen)
				issues = append(issues, "本文文字数を調整する")
			}
			checks = append(checks, entities.CheckResult{Name: "length", Passed: lenPassed, Detail: lenDetail})

			punctuationOK := !strings.ContainsAny(bodyText, "!?！？")
			punctuationDetail := "禁則記号なし"
			if !punctuationOK {
				punctuationDetail = "感嘆符・疑問符などを削除"
				issues = append(issues, "禁則記号を削除する")
			}
			checks = append(checks, entities.CheckResult{Name: "punctuation", Passed: punctuationOK, Detail: punctuationDetail})
		}
	}

	report := entities.SelfCheckReport{
		Passed: len(issues) == 0,
		Checks: checks,
	}
	if !report.Passed {
		report.RetryPrompt = buildRetryPrompt(issues, facts)
	}
	return report
}

// buildRetryPrompt composes one instruction string naming every failed
// check, for a prospective re-generation call.
func buildRetryPrompt(issues []string, facts Facts) string {
	focus := strings.TrimSpace(facts.Date)
	if focus == "" {
		focus = "日付未指定"
	}
	return fmt.Sprintf("次の点を修正して再生成: %s。対象日: %s", strings.Join(issues, "、"), focus)
}

// splitTrimmedLines splits text into lines with trailing whitespace
// removed. Empty text yields no lines.
func splitTrimmedLines(text string) []string {
	if text == "" {
		return nil
	}
	raw := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	lines := make([]string, len(raw))
	for i, line := range raw {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return lines
}
