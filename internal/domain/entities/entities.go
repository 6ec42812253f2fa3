// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

// DiaryEntry is a raw diary record as written by the user.
// This is a core entity - no knowledge of storage or external systems.
type DiaryEntry struct {
	Date     string   `json:"date"` // YYYY-MM-DD
	Body     string   `json:"body"`
	Location string   `json:"location,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// PassageMeta carries the provenance of a retrieved passage.
type PassageMeta struct {
	Date     string `json:"date"`
	Location string `json:"location"`
}

// Passage is a retrieved diary fragment with a similarity score.
// Constructed fresh per search call, never persisted, never mutated after return.
type Passage struct {
	Text     string      `json:"text"`
	Metadata PassageMeta `json:"metadata"`
	Score    float64     `json:"score"`
}

// InterpolationRequest is the input to the interpolation pipeline.
type InterpolationRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
	Hint string `json:"hint,omitempty"`
}

// Citation points back at the past diary a generated passage was grounded on.
type Citation struct {
	Snippet string `json:"snippet"` // first 100 chars of the passage + ellipsis
	Date    string `json:"date"`
}

// InterpolationResponse is the final, always well-formed pipeline output.
// Citations preserve passage retrieval order.
type InterpolationResponse struct {
	Date      string     `json:"date"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// CheckResult is a single validator verdict.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// SelfCheckReport aggregates all validator verdicts.
// RetryPrompt is set only when Passed is false.
type SelfCheckReport struct {
	Passed      bool          `json:"passed"`
	Checks      []CheckResult `json:"checks"`
	RetryPrompt string        `json:"retry_prompt,omitempty"`
}

// Enrichment holds weather and daylight facts fetched for a diary date.
type Enrichment struct {
	Date        string  `json:"date"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	TmaxC       float64 `json:"tmax_c"`
	TminC       float64 `json:"tmin_c"`
	PrecipMM    float64 `json:"precip_mm"`
	WeatherCode int     `json:"weather_code"`
	WeatherText string  `json:"weather_text"`
	SunriseUTC  string  `json:"sunrise_utc"`
	SunsetUTC   string  `json:"sunset_utc"`
	Source      string  `json:"source"`
}

// IngestRequest is the body of POST /ingest.
type IngestRequest struct {
	Diaries []DiaryEntry `json:"diaries"`
}

// IngestResponse reports an ingestion result.
type IngestResponse struct {
	Status        string `json:"status"`
	IngestedCount int    `json:"ingested_count"`
}
