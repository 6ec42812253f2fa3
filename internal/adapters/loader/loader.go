// Package loader reads diary entry files dropped into the watch
// directory or passed to the ingest command.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
)

const dateLayout = "2006-01-02"

// DiaryFileLoader parses diary entry files. Two formats are supported:
//   - .json: a single entry object or an array of entries
//   - .md / .txt: the file name (without extension) is the ISO date,
//     the content is the body
type DiaryFileLoader struct{}

// NewDiaryFileLoader creates a new loader.
func NewDiaryFileLoader() *DiaryFileLoader {
	return &DiaryFileLoader{}
}

// SupportedExtensions returns file extensions this loader handles.
func (l *DiaryFileLoader) SupportedExtensions() []string {
	return []string{".json", ".md", ".txt"}
}

// Load parses one diary file into entries.
func (l *DiaryFileLoader) Load(path string) ([]entities.DiaryEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".json":
		return parseJSON(path, data)
	case ".md", ".txt":
		return parseDated(path, data)
	default:
		return nil, fmt.Errorf("unsupported diary file type: %s", path)
	}
}

func parseJSON(path string, data []byte) ([]entities.DiaryEntry, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var entries []entities.DiaryEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return entries, nil
	}

	var entry entities.DiaryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return []entities.DiaryEntry{entry}, nil
}

func parseDated(path string, data []byte) ([]entities.DiaryEntry, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, err := time.Parse(dateLayout, name); err != nil {
		return nil, fmt.Errorf("file name %q is not an ISO date: %w", name, err)
	}
	body := strings.TrimSpace(string(data))
	if body == "" {
		return nil, fmt.Errorf("diary file %s is empty", path)
	}
	return []entities.DiaryEntry{{Date: name, Body: body}}, nil
}
