package pipeline

import "fmt"

// Stage is the lifecycle position of a WorkItem.
type Stage string

const (
	StageRequested        Stage = "requested"
	StageStructurePending Stage = "structure_pending"
	StageStructureReady   Stage = "structure_ready"
	StageStructureFailed  Stage = "structure_failed"
	StageArticlePending   Stage = "article_pending"
	StageArticleReady     Stage = "article_ready"
	StageArticleFailed    Stage = "article_failed"
	StageDraft            Stage = "draft"
	StagePublished        Stage = "published"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{
	StageRequested,
	StageStructurePending,
	StageStructureReady,
	StageStructureFailed,
	StageArticlePending,
	StageArticleReady,
	StageArticleFailed,
	StageDraft,
	StagePublished,
}

// Event drives a stage transition.
type Event string

const (
	EventInvokeStructure    Event = "invoke_structure"
	EventStructureSucceeded Event = "structure_succeeded"
	EventStructureFailed    Event = "structure_failed"
	EventRetry              Event = "retry"
	EventSaveStructure      Event = "save_structure"
	EventApprove            Event = "approve"
	EventArticleSucceeded   Event = "article_succeeded"
	EventArticleFailed      Event = "article_failed"
	EventSave               Event = "save"
	EventPublish            Event = "publish"
)

type edge struct {
	from  Stage
	event Event
}

var transitions = map[edge]Stage{
	{StageRequested, EventInvokeStructure}:           StageStructurePending,
	{StageStructurePending, EventStructureSucceeded}: StageStructureReady,
	{StageStructurePending, EventStructureFailed}:    StageStructureFailed,
	{StageStructureFailed, EventRetry}:               StageStructurePending,
	{StageStructureReady, EventSaveStructure}:        StageStructureReady,
	{StageStructureReady, EventApprove}:              StageArticlePending,
	{StageArticlePending, EventArticleSucceeded}:     StageArticleReady,
	{StageArticlePending, EventArticleFailed}:        StageArticleFailed,
	{StageArticleFailed, EventRetry}:                 StageArticlePending,
	{StageArticleReady, EventSave}:                   StageDraft,
	{StageArticleReady, EventPublish}:                StagePublished,
	{StageDraft, EventSave}:                          StageDraft,
	{StageDraft, EventPublish}:                       StagePublished,
	{StagePublished, EventSave}:                      StageDraft,
	{StagePublished, EventPublish}:                   StagePublished,
}

// Next returns the stage reached by applying event in from, or
// ErrInvalidTransition.
func Next(from Stage, event Event) (Stage, error) {
	to, ok := transitions[edge{from, event}]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
	}
	return to, nil
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if st == s {
			return true
		}
	}
	return false
}

// HasStructure reports whether items in stage s carry a structure payload.
func HasStructure(s Stage) bool {
	switch s {
	case StageStructureReady, StageArticlePending, StageArticleReady, StageArticleFailed, StageDraft, StagePublished:
		return true
	}
	return false
}

// HasArticle reports whether items in stage s carry an article payload.
func HasArticle(s Stage) bool {
	switch s {
	case StageArticleReady, StageDraft, StagePublished:
		return true
	}
	return false
}

// IsPending reports whether a generation job is outstanding in stage s.
func IsPending(s Stage) bool {
	return s == StageStructurePending || s == StageArticlePending
}

// IsFailed reports whether s is a failure stage awaiting a retry.
func IsFailed(s Stage) bool {
	return s == StageStructureFailed || s == StageArticleFailed
}
