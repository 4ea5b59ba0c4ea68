package dashboard

import (
	"sort"
	"time"

	"writer-backend/internal/pipeline"
)

// Badge is the display status shown next to an entry.
type Badge string

const (
	BadgeProcessing Badge = "processing"
	BadgeCompleted  Badge = "completed"
	BadgeFailed     Badge = "failed"
	BadgeDraft      Badge = "draft"
	BadgePublished  Badge = "published"
)

type Entry struct {
	ItemID    string         `json:"itemId"`
	Title     string         `json:"title"`
	Keyword   string         `json:"keyword"`
	Stage     pipeline.Stage `json:"stage"`
	Badge     Badge          `json:"badge"`
	Sections  int            `json:"sections,omitempty"`
	Thumbnail string         `json:"thumbnail,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Summary is a read-only projection of one user's work items.
type Summary struct {
	Total      int                    `json:"total"`
	Counts     map[pipeline.Stage]int `json:"counts"`
	Structures []Entry                `json:"structures"`
	Articles   []Entry                `json:"articles"`
}

// Summarize counts items per stage and splits them into outlines awaiting an
// article and finished articles, newest first.
func Summarize(items []pipeline.WorkItem) Summary {
	sum := Summary{
		Total:      len(items),
		Counts:     make(map[pipeline.Stage]int, len(pipeline.Stages)),
		Structures: []Entry{},
		Articles:   []Entry{},
	}
	for _, s := range pipeline.Stages {
		sum.Counts[s] = 0
	}

	for _, item := range items {
		sum.Counts[item.Stage]++
		switch {
		case item.Article != nil:
			e := entryFor(item)
			e.Title = item.Article.Title
			e.Thumbnail = item.Article.Thumbnail
			sum.Articles = append(sum.Articles, e)
		case item.Structure != nil:
			e := entryFor(item)
			e.Title = item.Structure.Title
			e.Sections = len(item.Structure.Sections)
			sum.Structures = append(sum.Structures, e)
		}
	}
	newestFirst(sum.Structures)
	newestFirst(sum.Articles)
	return sum
}

// BadgeFor maps a stage to its display badge.
func BadgeFor(stage pipeline.Stage) Badge {
	switch {
	case stage == pipeline.StageDraft:
		return BadgeDraft
	case stage == pipeline.StagePublished:
		return BadgePublished
	case pipeline.IsFailed(stage):
		return BadgeFailed
	case stage == pipeline.StageStructureReady || stage == pipeline.StageArticleReady:
		return BadgeCompleted
	default:
		return BadgeProcessing
	}
}

func entryFor(item pipeline.WorkItem) Entry {
	return Entry{
		ItemID:    item.ID,
		Title:     item.Request.Title,
		Keyword:   item.Request.Keyword,
		Stage:     item.Stage,
		Badge:     BadgeFor(item.Stage),
		UpdatedAt: item.UpdatedAt,
	}
}

func newestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
}
