package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"writer-backend/internal/content"
	"writer-backend/internal/pipeline"
	"writer-backend/internal/shared/telemetry"
)

// DefaultSessionTTL is used when Service.TTL is unset.
const DefaultSessionTTL = 12 * time.Hour

// maxSwapAttempts bounds how often a session update is re-applied after a
// concurrent write to the same session.
const maxSwapAttempts = 5

// Pipeline is the subset of pipeline.Service the editors commit through.
type Pipeline interface {
	Get(ctx context.Context, actor pipeline.Actor, id string) (pipeline.WorkItem, error)
	SaveStructure(ctx context.Context, actor pipeline.Actor, id string, payload content.StructurePayload, expectedRevision int64) (pipeline.WorkItem, error)
	ApproveStructure(ctx context.Context, actor pipeline.Actor, id string, payload content.StructurePayload, expectedRevision int64) (pipeline.WorkItem, error)
	SaveArticle(ctx context.Context, actor pipeline.Actor, id string, payload content.ArticlePayload, expectedRevision int64, publish bool) (pipeline.WorkItem, error)
}

// Service opens, mutates and commits editor sessions.
type Service struct {
	Pipeline Pipeline
	Sessions SessionStore
	TTL      time.Duration
	Now      func() time.Time
}

func NewService(p Pipeline, sessions SessionStore, ttl time.Duration) *Service {
	return &Service{Pipeline: p, Sessions: sessions, TTL: ttl}
}

// OpenStructure starts editing the outline of an item in structure_ready.
func (s *Service) OpenStructure(ctx context.Context, actor pipeline.Actor, itemID string) (StructureSession, error) {
	item, err := s.Pipeline.Get(ctx, actor, itemID)
	if err != nil {
		return StructureSession{}, err
	}
	if item.UserID != actor.UserID {
		return StructureSession{}, pipeline.ErrForbidden
	}
	if item.Stage != pipeline.StageStructureReady || item.Structure == nil {
		return StructureSession{}, fmt.Errorf("%w: %s", ErrWrongStage, item.Stage)
	}
	sess := StructureSession{
		ID:       uuid.NewString(),
		ItemID:   item.ID,
		UserID:   actor.UserID,
		Revision: item.Revision,
		Payload:  item.Structure.Clone(),
	}
	if err := s.putStructure(ctx, &sess); err != nil {
		return StructureSession{}, err
	}
	telemetry.Info("editor.structure_opened", map[string]any{"session_id": sess.ID, "item_id": item.ID})
	return sess, nil
}

func (s *Service) GetStructure(ctx context.Context, actor pipeline.Actor, sessionID string) (StructureSession, error) {
	var sess StructureSession
	if err := s.load(ctx, structureKey(sessionID), &sess); err != nil {
		return StructureSession{}, err
	}
	if sess.UserID != actor.UserID {
		return StructureSession{}, ErrSessionNotFound
	}
	return sess, nil
}

// EditStructure applies edit to the stored session and stores the result.
// Nothing is stored when edit fails. A concurrent write to the session makes
// edit run again on the newer copy.
func (s *Service) EditStructure(ctx context.Context, actor pipeline.Actor, sessionID string, edit func(*StructureSession) error) (StructureSession, error) {
	return modify[StructureSession](ctx, s, actor, structureKey(sessionID), edit)
}

// SaveStructure persists the outline and keeps the session open at the new
// revision.
func (s *Service) SaveStructure(ctx context.Context, actor pipeline.Actor, sessionID string) (StructureSession, error) {
	sess, err := s.GetStructure(ctx, actor, sessionID)
	if err != nil {
		return StructureSession{}, err
	}
	item, err := s.Pipeline.SaveStructure(ctx, actor, sess.ItemID, sess.Payload, sess.Revision)
	if err != nil {
		return StructureSession{}, err
	}
	// Edits that landed while saving stay in the session as unsaved changes.
	return modify[StructureSession](ctx, s, actor, structureKey(sessionID), func(cur *StructureSession) error {
		cur.Revision = item.Revision
		if cur.Version == sess.Version && item.Structure != nil {
			cur.Payload = item.Structure.Clone()
		}
		return nil
	})
}

// ApproveStructure validates the outline, hands it to the pipeline and
// closes the session.
func (s *Service) ApproveStructure(ctx context.Context, actor pipeline.Actor, sessionID string) (pipeline.WorkItem, error) {
	sess, err := s.GetStructure(ctx, actor, sessionID)
	if err != nil {
		return pipeline.WorkItem{}, err
	}
	payload, err := sess.Approve()
	if err != nil {
		return pipeline.WorkItem{}, err
	}
	item, err := s.Pipeline.ApproveStructure(ctx, actor, sess.ItemID, payload, sess.Revision)
	if err != nil {
		return pipeline.WorkItem{}, err
	}
	s.discard(ctx, structureKey(sessionID))
	return item, nil
}

// OpenArticle starts editing an item that carries an article.
func (s *Service) OpenArticle(ctx context.Context, actor pipeline.Actor, itemID string) (ArticleSession, error) {
	item, err := s.Pipeline.Get(ctx, actor, itemID)
	if err != nil {
		return ArticleSession{}, err
	}
	if item.UserID != actor.UserID {
		return ArticleSession{}, pipeline.ErrForbidden
	}
	if !pipeline.HasArticle(item.Stage) || item.Article == nil {
		return ArticleSession{}, fmt.Errorf("%w: %s", ErrWrongStage, item.Stage)
	}
	sess := ArticleSession{
		ID:       uuid.NewString(),
		ItemID:   item.ID,
		UserID:   actor.UserID,
		Revision: item.Revision,
		Payload:  *item.Article,
	}
	if err := s.putArticle(ctx, &sess); err != nil {
		return ArticleSession{}, err
	}
	telemetry.Info("editor.article_opened", map[string]any{"session_id": sess.ID, "item_id": item.ID})
	return sess, nil
}

func (s *Service) GetArticle(ctx context.Context, actor pipeline.Actor, sessionID string) (ArticleSession, error) {
	var sess ArticleSession
	if err := s.load(ctx, articleKey(sessionID), &sess); err != nil {
		return ArticleSession{}, err
	}
	if sess.UserID != actor.UserID {
		return ArticleSession{}, ErrSessionNotFound
	}
	return sess, nil
}

// EditArticle sets each field in fields. Unknown fields reject the whole
// edit.
func (s *Service) EditArticle(ctx context.Context, actor pipeline.Actor, sessionID string, fields map[string]string) (ArticleSession, error) {
	return modify[ArticleSession](ctx, s, actor, articleKey(sessionID), func(sess *ArticleSession) error {
		for field, value := range fields {
			if err := sess.EditField(field, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveDraft stores the article as draft.
func (s *Service) SaveDraft(ctx context.Context, actor pipeline.Actor, sessionID string) (ArticleSession, error) {
	return s.commitArticle(ctx, actor, sessionID, false)
}

// Publish stores the article as published. Publishing again re-saves it.
func (s *Service) Publish(ctx context.Context, actor pipeline.Actor, sessionID string) (ArticleSession, error) {
	return s.commitArticle(ctx, actor, sessionID, true)
}

// commitArticle re-reads the item and refuses to write when its revision
// moved since the session was opened or last saved.
func (s *Service) commitArticle(ctx context.Context, actor pipeline.Actor, sessionID string, publish bool) (ArticleSession, error) {
	sess, err := s.GetArticle(ctx, actor, sessionID)
	if err != nil {
		return ArticleSession{}, err
	}
	current, err := s.Pipeline.Get(ctx, actor, sess.ItemID)
	if err != nil {
		return ArticleSession{}, err
	}
	if current.Revision != sess.Revision {
		telemetry.Info("editor.stale_edit", map[string]any{
			"session_id": sess.ID,
			"item_id":    sess.ItemID,
			"opened_at":  sess.Revision,
			"current":    current.Revision,
		})
		return ArticleSession{}, pipeline.ErrStaleEdit
	}
	item, err := s.Pipeline.SaveArticle(ctx, actor, sess.ItemID, sess.Payload, sess.Revision, publish)
	if err != nil {
		return ArticleSession{}, err
	}
	return modify[ArticleSession](ctx, s, actor, articleKey(sessionID), func(cur *ArticleSession) error {
		cur.Revision = item.Revision
		if cur.Version == sess.Version && item.Article != nil {
			cur.Payload = *item.Article
		}
		return nil
	})
}

// session is implemented by the pointer types of the editor sessions.
type session[T any] interface {
	*T
	owner() string
	touch(now time.Time)
}

func (s *StructureSession) owner() string { return s.UserID }
func (s *ArticleSession) owner() string   { return s.UserID }

func (s *StructureSession) touch(now time.Time) {
	s.Version++
	s.UpdatedAt = now
}

func (s *ArticleSession) touch(now time.Time) {
	s.Version++
	s.UpdatedAt = now
}

// modify reads the session at key, applies apply and writes it back with a
// compare-and-swap on the bytes it read.
func modify[T any, P session[T]](ctx context.Context, s *Service, actor pipeline.Actor, key string, apply func(P) error) (T, error) {
	var zero T
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		old, err := s.Sessions.Get(ctx, key)
		if err != nil {
			return zero, err
		}
		var sess T
		if err := json.Unmarshal(old, &sess); err != nil {
			return zero, fmt.Errorf("decode session: %w", err)
		}
		p := P(&sess)
		if p.owner() != actor.UserID {
			return zero, ErrSessionNotFound
		}
		if err := apply(p); err != nil {
			return zero, err
		}
		p.touch(s.now())
		data, err := json.Marshal(p)
		if err != nil {
			return zero, fmt.Errorf("encode session: %w", err)
		}
		err = s.Sessions.Swap(ctx, key, old, data, s.ttl())
		if errors.Is(err, ErrSessionConflict) {
			continue
		}
		if err != nil {
			return zero, err
		}
		return sess, nil
	}
	telemetry.Warn("editor.session_conflict", map[string]any{"key": key, "attempts": maxSwapAttempts})
	return zero, ErrSessionConflict
}

func (s *Service) putStructure(ctx context.Context, sess *StructureSession) error {
	sess.touch(s.now())
	return s.store(ctx, structureKey(sess.ID), sess)
}

func (s *Service) putArticle(ctx context.Context, sess *ArticleSession) error {
	sess.touch(s.now())
	return s.store(ctx, articleKey(sess.ID), sess)
}

func (s *Service) store(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.Sessions.Put(ctx, key, data, s.ttl())
}

func (s *Service) load(ctx context.Context, key string, v any) error {
	data, err := s.Sessions.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	return nil
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.Sessions.Delete(ctx, key); err != nil && !errors.Is(err, ErrSessionNotFound) {
		telemetry.Warn("editor.session_delete_failed", map[string]any{"key": key, "error": err})
	}
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultSessionTTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func structureKey(id string) string { return "structure:" + id }
func articleKey(id string) string   { return "article:" + id }
