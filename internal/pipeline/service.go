package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"writer-backend/internal/content"
	"writer-backend/internal/credits"
	"writer-backend/internal/export"
	"writer-backend/internal/generation"
	"writer-backend/internal/queue"
	"writer-backend/internal/requests"
	"writer-backend/internal/shared/metrics"
	"writer-backend/internal/shared/telemetry"
)

// DefaultGenerationTimeout bounds one generation attempt.
const DefaultGenerationTimeout = 3 * time.Minute

const timedOutMessage = "generation timed out"

// Ledger is the credit capability needed at admission.
type Ledger interface {
	Reserve(ctx context.Context, userID string) (credits.Balance, error)
	Release(ctx context.Context, userID, reference string) error
}

// Service drives WorkItems through the stage table. Every mutation checks the
// stage transition and commits with a compare-and-swap on Revision.
type Service struct {
	Repo      Repo
	Ledger    Ledger
	Validator *requests.Validator
	Generator generation.Client
	// Jobs receives generation jobs. When nil, jobs run in a goroutine of
	// this process.
	Jobs    queue.Client
	Timeout time.Duration
	Now     func() time.Time
}

// Submit validates the submission, reserves one credit and records the item
// in stage requested. Validation failures reserve nothing; a failed reserve
// creates nothing.
func (s *Service) Submit(ctx context.Context, actor Actor, sub requests.Submission) (WorkItem, error) {
	if actor.UserID == "" {
		return WorkItem{}, ErrForbidden
	}
	req, err := s.Validator.Validate(actor.UserID, sub)
	if err != nil {
		return WorkItem{}, err
	}
	if _, err := s.Ledger.Reserve(ctx, actor.UserID); err != nil {
		return WorkItem{}, err
	}

	item := WorkItem{
		ID:        uuid.NewString(),
		UserID:    actor.UserID,
		Stage:     StageRequested,
		Request:   req,
		CreatedAt: s.now(),
	}
	created, err := s.Repo.Create(ctx, item)
	if err != nil {
		if relErr := s.Ledger.Release(ctx, actor.UserID, item.ID); relErr != nil {
			telemetry.Error("pipeline.admission_release_failed", map[string]any{
				"item_id": item.ID,
				"user_id": actor.UserID,
				"error":   relErr,
			})
		}
		return WorkItem{}, fmt.Errorf("create work item: %w", err)
	}
	telemetry.Info("pipeline.submitted", map[string]any{
		"item_id":    created.ID,
		"user_id":    actor.UserID,
		"request_id": RequestIDFromContext(ctx),
	})
	return created, nil
}

// StartStructure requests outline generation for a requested item.
func (s *Service) StartStructure(ctx context.Context, actor Actor, id string) (WorkItem, error) {
	item, err := s.loadForWrite(ctx, actor, id)
	if err != nil {
		return WorkItem{}, err
	}
	return s.beginGeneration(ctx, item, EventInvokeStructure, item.Revision)
}

// Retry restarts generation for an item in a failed stage. Retries are only
// ever user initiated.
func (s *Service) Retry(ctx context.Context, actor Actor, id string) (WorkItem, error) {
	item, err := s.loadForWrite(ctx, actor, id)
	if err != nil {
		return WorkItem{}, err
	}
	return s.beginGeneration(ctx, item, EventRetry, item.Revision)
}

// SaveStructure persists an edited outline without leaving structure_ready.
func (s *Service) SaveStructure(ctx context.Context, actor Actor, id string, payload content.StructurePayload, expectedRevision int64) (WorkItem, error) {
	item, err := s.loadForWrite(ctx, actor, id)
	if err != nil {
		return WorkItem{}, err
	}
	next, err := Next(item.Stage, EventSaveStructure)
	if err != nil {
		return WorkItem{}, err
	}
	if item.Revision != expectedRevision {
		return WorkItem{}, ErrStaleEdit
	}
	payload = payload.Clone()
	payload.Normalize()
	from := item.Stage
	item.Stage = next
	item.Structure = &payload
	return s.commit(ctx, item, expectedRevision, from)
}

// ApproveStructure freezes the edited outline and requests the article.
func (s *Service) ApproveStructure(ctx context.Context, actor Actor, id string, payload content.StructurePayload, expectedRevision int64) (WorkItem, error) {
	item, err := s.loadForWrite(ctx, actor, id)
	if err != nil {
		return WorkItem{}, err
	}
	if _, err := Next(item.Stage, EventApprove); err != nil {
		return WorkItem{}, err
	}
	if item.Revision != expectedRevision {
		return WorkItem{}, ErrStaleEdit
	}
	if err := payload.CheckApprovable(); err != nil {
		return WorkItem{}, err
	}
	payload = payload.Clone()
	payload.Normalize()
	item.Structure = &payload
	return s.beginGeneration(ctx, item, EventApprove, expectedRevision)
}

// SaveArticle stores an edited article as draft, or as published when
// publish is set. Re-publishing a published article re-saves it.
func (s *Service) SaveArticle(ctx context.Context, actor Actor, id string, payload content.ArticlePayload, expectedRevision int64, publish bool) (WorkItem, error) {
	item, err := s.loadForWrite(ctx, actor, id)
	if err != nil {
		return WorkItem{}, err
	}
	event, status := EventSave, content.ArticleDraft
	if publish {
		event, status = EventPublish, content.ArticlePublished
	}
	next, err := Next(item.Stage, event)
	if err != nil {
		return WorkItem{}, err
	}
	if item.Revision != expectedRevision {
		return WorkItem{}, ErrStaleEdit
	}
	payload.Status = status
	payload.HTML = s.renderHTML(item.ID, payload)
	from := item.Stage
	item.Stage = next
	item.Article = &payload
	return s.commit(ctx, item, expectedRevision, from)
}

// Get returns an item readable by actor. Items of other users are reported
// as not found unless actor is an admin.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (WorkItem, error) {
	item, err := s.Repo.Get(ctx, id)
	if err != nil {
		return WorkItem{}, err
	}
	if !actor.CanRead(item) {
		return WorkItem{}, ErrNotFound
	}
	return item, nil
}

// List returns ownerID's items, newest first. An empty ownerID means the
// actor's own items; other owners require the admin role.
func (s *Service) List(ctx context.Context, actor Actor, ownerID string) ([]WorkItem, error) {
	if actor.UserID == "" {
		return nil, ErrForbidden
	}
	if ownerID == "" {
		ownerID = actor.UserID
	}
	if ownerID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.Repo.ListByOwner(ctx, ownerID)
}

// ListAll returns the most recently updated items of every user.
func (s *Service) ListAll(ctx context.Context, actor Actor, limit int) ([]WorkItem, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.Repo.ListAll(ctx, limit)
}

// ProcessJob runs one generation attempt. Messages for an attempt that is no
// longer current are dropped.
func (s *Service) ProcessJob(ctx context.Context, msg queue.Message) error {
	item, err := s.Repo.Get(ctx, msg.WorkItemID)
	if err != nil {
		return err
	}
	if !jobIsCurrent(item, msg) {
		s.ignoreLate(item, msg, "job")
		return nil
	}

	kind := string(msg.Kind)
	metrics.IncGenerationStarted(kind)
	started := s.now()
	gctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	switch msg.Kind {
	case queue.KindStructure:
		payload, genErr := s.Generator.GenerateStructure(gctx, item.Request)
		metrics.ObserveGenerationDurationMs(float64(s.now().Sub(started).Milliseconds()))
		if genErr != nil {
			return s.FailGeneration(ctx, item.ID, msg.Attempt, genErr)
		}
		return s.CompleteStructure(ctx, item.ID, msg.Attempt, payload)
	case queue.KindArticle:
		if item.Structure == nil {
			return s.FailGeneration(ctx, item.ID, msg.Attempt, errors.New("approved structure missing"))
		}
		payload, genErr := s.Generator.GenerateArticle(gctx, *item.Structure, item.Request)
		metrics.ObserveGenerationDurationMs(float64(s.now().Sub(started).Milliseconds()))
		if genErr != nil {
			return s.FailGeneration(ctx, item.ID, msg.Attempt, genErr)
		}
		return s.CompleteArticle(ctx, item.ID, msg.Attempt, payload)
	default:
		return fmt.Errorf("unknown job kind %q", msg.Kind)
	}
}

// CompleteStructure stores a generated outline for the given attempt.
func (s *Service) CompleteStructure(ctx context.Context, id string, attempt int, payload content.StructurePayload) error {
	_, err := s.finish(ctx, id, attempt, StageStructurePending, EventStructureSucceeded, func(item *WorkItem) {
		payload = payload.Clone()
		payload.Normalize()
		item.Structure = &payload
		item.LastError = ""
	})
	return err
}

// CompleteArticle stores a generated article for the given attempt.
func (s *Service) CompleteArticle(ctx context.Context, id string, attempt int, payload content.ArticlePayload) error {
	_, err := s.finish(ctx, id, attempt, StageArticlePending, EventArticleSucceeded, func(item *WorkItem) {
		payload.Status = content.ArticleGenerated
		payload.HTML = s.renderHTML(item.ID, payload)
		item.Article = &payload
		item.LastError = ""
	})
	return err
}

// FailGeneration moves a pending item to its failed stage. No credit is
// returned.
func (s *Service) FailGeneration(ctx context.Context, id string, attempt int, cause error) error {
	item, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	event := EventStructureFailed
	if item.Stage == StageArticlePending {
		event = EventArticleFailed
	}
	message := failureMessage(cause)
	kind := jobKind(item.Stage)
	applied, err := s.finish(ctx, id, attempt, item.Stage, event, func(item *WorkItem) {
		item.LastError = message
	})
	if applied {
		metrics.IncGenerationFailed(string(kind))
	}
	return err
}

// SweepTimeouts fails pending items whose generation started before
// now minus the generation timeout.
func (s *Service) SweepTimeouts(ctx context.Context, now time.Time) (int, error) {
	items, err := s.Repo.ListPendingBefore(ctx, now.Add(-s.timeout()))
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, item := range items {
		cause := &generation.Error{Kind: generation.KindTimeout, Op: string(jobKind(item.Stage)), Err: context.DeadlineExceeded}
		if err := s.FailGeneration(ctx, item.ID, item.Attempt, cause); err != nil {
			telemetry.Warn("pipeline.sweep_failed", map[string]any{"item_id": item.ID, "error": err})
			continue
		}
		swept++
	}
	if swept > 0 {
		telemetry.Info("pipeline.sweep", map[string]any{"swept": swept})
	}
	return swept, nil
}

// finish applies a generation outcome if attempt is still the current one
// and the item is still in the expected pending stage. It reports whether the
// outcome was committed.
func (s *Service) finish(ctx context.Context, id string, attempt int, pending Stage, event Event, apply func(*WorkItem)) (bool, error) {
	item, err := s.Repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	msg := queue.Message{WorkItemID: id, Kind: jobKind(pending), Attempt: attempt}
	if item.Stage != pending || !jobIsCurrent(item, msg) {
		s.ignoreLate(item, msg, string(event))
		return false, nil
	}
	next, err := Next(item.Stage, event)
	if err != nil {
		return false, err
	}
	from := item.Stage
	item.Stage = next
	item.GenerationStartedAt = nil
	apply(&item)
	if _, err := s.commit(ctx, item, item.Revision, from); err != nil {
		if errors.Is(err, ErrStaleEdit) {
			s.ignoreLate(item, msg, string(event))
			return false, nil
		}
		return false, err
	}
	if event == EventStructureSucceeded || event == EventArticleSucceeded {
		metrics.IncGenerationCompleted(string(msg.Kind))
	}
	return true, nil
}

// beginGeneration moves item into a pending stage and dispatches the job.
func (s *Service) beginGeneration(ctx context.Context, item WorkItem, event Event, expectedRevision int64) (WorkItem, error) {
	next, err := Next(item.Stage, event)
	if err != nil {
		return WorkItem{}, err
	}
	from := item.Stage
	now := s.now()
	item.Stage = next
	item.Attempt++
	item.GenerationStartedAt = &now
	item.LastError = ""
	updated, err := s.commit(ctx, item, expectedRevision, from)
	if err != nil {
		return WorkItem{}, err
	}
	return s.dispatch(ctx, updated)
}

func (s *Service) dispatch(ctx context.Context, item WorkItem) (WorkItem, error) {
	msg := queue.Message{
		WorkItemID: item.ID,
		Kind:       jobKind(item.Stage),
		Attempt:    item.Attempt,
		RequestID:  RequestIDFromContext(ctx),
		EnqueuedAt: s.now().Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
	if s.Jobs == nil {
		go s.runJob(backgroundWithRequestID(ctx), msg)
		return item, nil
	}
	if err := s.Jobs.Send(ctx, msg); err != nil {
		telemetry.Error("pipeline.enqueue_failed", map[string]any{
			"item_id":    item.ID,
			"request_id": msg.RequestID,
			"error":      err,
		})
		if failErr := s.FailGeneration(ctx, item.ID, item.Attempt, fmt.Errorf("could not schedule generation: %w", err)); failErr != nil {
			return WorkItem{}, failErr
		}
		return s.Repo.Get(ctx, item.ID)
	}
	return item, nil
}

func (s *Service) runJob(ctx context.Context, msg queue.Message) {
	if err := s.ProcessJob(ctx, msg); err != nil {
		telemetry.Error("pipeline.job_failed", map[string]any{
			"item_id":    msg.WorkItemID,
			"kind":       string(msg.Kind),
			"request_id": msg.RequestID,
			"error":      err,
		})
	}
}

// commit writes item with a CAS on expectedRevision and logs the transition.
func (s *Service) commit(ctx context.Context, item WorkItem, expectedRevision int64, from Stage) (WorkItem, error) {
	updated, err := s.Repo.Update(ctx, item, expectedRevision)
	if err != nil {
		if errors.Is(err, ErrRevisionConflict) {
			return WorkItem{}, ErrStaleEdit
		}
		return WorkItem{}, err
	}
	telemetry.Info("pipeline.transition", map[string]any{
		"item_id":    updated.ID,
		"from":       string(from),
		"to":         string(updated.Stage),
		"revision":   updated.Revision,
		"attempt":    updated.Attempt,
		"request_id": RequestIDFromContext(ctx),
	})
	return updated, nil
}

func (s *Service) loadForWrite(ctx context.Context, actor Actor, id string) (WorkItem, error) {
	item, err := s.Repo.Get(ctx, id)
	if err != nil {
		return WorkItem{}, err
	}
	if !actor.CanWrite(item) {
		if actor.CanRead(item) {
			return WorkItem{}, ErrForbidden
		}
		return WorkItem{}, ErrNotFound
	}
	return item, nil
}

func (s *Service) ignoreLate(item WorkItem, msg queue.Message, what string) {
	metrics.IncLateResultIgnored()
	telemetry.Info("pipeline.late_result_ignored", map[string]any{
		"item_id":      item.ID,
		"what":         what,
		"stage":        string(item.Stage),
		"attempt":      item.Attempt,
		"message_kind": string(msg.Kind),
		"msg_attempt":  msg.Attempt,
	})
}

func (s *Service) renderHTML(itemID string, payload content.ArticlePayload) string {
	html, err := export.HTML(payload)
	if err != nil {
		telemetry.Warn("pipeline.render_html_failed", map[string]any{"item_id": itemID, "error": err})
		return ""
	}
	return html
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultGenerationTimeout
}

func jobKind(stage Stage) queue.Kind {
	switch stage {
	case StageArticlePending, StageArticleReady, StageArticleFailed:
		return queue.KindArticle
	default:
		return queue.KindStructure
	}
}

func jobIsCurrent(item WorkItem, msg queue.Message) bool {
	return IsPending(item.Stage) && jobKind(item.Stage) == msg.Kind && item.Attempt == msg.Attempt
}

func failureMessage(cause error) string {
	if cause == nil {
		return "generation failed"
	}
	if generation.KindOf(cause) == generation.KindTimeout || errors.Is(cause, context.DeadlineExceeded) {
		return timedOutMessage
	}
	return cause.Error()
}
