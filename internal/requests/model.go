package requests

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Submission is the raw article request as entered by the user.
type Submission struct {
	Title                  string   `json:"title" validate:"min=5"`
	Keyword                string   `json:"keyword" validate:"required"`
	SourceURLs             []string `json:"sourceUrls" validate:"max=2,dive,absurl"`
	WordCount              Count    `json:"wordCount" validate:"wholenum,gte=300,lte=5000"`
	AdditionalInstructions string   `json:"additionalInstructions"`
}

// GenerationRequest is a validated submission. It is immutable once a
// WorkItem has been created from it.
type GenerationRequest struct {
	UserID                 string    `json:"userId"`
	Title                  string    `json:"title"`
	Keyword                string    `json:"keyword"`
	SourceURLs             []string  `json:"sourceUrls"`
	WordCount              int       `json:"wordCount"`
	AdditionalInstructions string    `json:"additionalInstructions,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
}

// Count accepts a JSON number or a numeric string. A value that is not a
// whole number decodes to InvalidCount so the validator can report it
// alongside the other field errors.
type Count int

// InvalidCount marks a word count that could not be read as an integer.
const InvalidCount Count = math.MinInt32

func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*c = 0
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		*c = InvalidCount
		return nil
	}
	*c = Count(n)
	return nil
}
