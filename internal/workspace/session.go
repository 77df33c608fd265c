package workspace

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

const sessionsKey = "sessions"

func sessionKey(id string) string { return "session:" + id }

// Options tune how a Session is opened.
type Options struct {
	// SessionID selects an existing chat session. Empty picks the most
	// relevant existing session, or creates one if the project has none.
	SessionID string
	// AutosaveDelay overrides the trailing autosave quiet period.
	AutosaveDelay time.Duration
	// Events receives dispatcher and review callbacks.
	Events Events
}

// Session is one open chat session plus the engine state derived from it.
// It owns the authoritative in-memory copies of the project's artifacts,
// tasks, and chat sessions while open; switching sessions discards all
// derived state rather than carrying it across.
type Session struct {
	store      store.ProjectStore
	assistant  store.AssistantClient
	cache      *Cache
	dispatcher *Dispatcher
	autosave   *Autosaver
	projectID  string
	chatID     string
	events     Events

	// editMu guards editBase: the last server-confirmed artifact per
	// dirty edit cycle, restored when a debounced save fails.
	editMu   sync.Mutex
	editBase map[string]models.Artifact
}

// Open loads (or creates) a chat session for the project, seeds the cache
// with the project's current artifacts and tasks, and rehydrates derived
// state from the message history.
func Open(ctx context.Context, st store.ProjectStore, assistant store.AssistantClient, projectID string, opts Options) (*Session, error) {
	cache := NewCache()

	chatID := opts.SessionID
	if chatID == "" {
		sessions, err := st.ListSessions(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) > 0 {
			chatID = sessions[0].ID
		} else {
			created, err := st.CreateSession(ctx, models.ChatSession{ProjectID: projectID, Title: "New chat"})
			if err != nil {
				return nil, fmt.Errorf("create session: %w", err)
			}
			chatID = created.ID
		}
	}

	chat, err := st.GetSession(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	artifacts, err := st.ListArtifacts(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	for _, artifact := range artifacts {
		cache.Put(artifactKey(artifact.ID), artifact)
	}
	tasks, err := st.ListTasks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	cache.Put(tasksKey, tasks)

	sessions, err := st.ListSessions(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	cache.Put(sessionsKey, sessions)
	cache.Put(sessionKey(chatID), chat)

	s := &Session{
		store:     st,
		assistant: assistant,
		cache:     cache,
		projectID: projectID,
		chatID:    chatID,
		events:    opts.Events,
		editBase:  make(map[string]models.Artifact),
	}
	s.dispatcher = NewDispatcher(cache, st, assistant, projectID, opts.Events)
	s.dispatcher.Rehydrate(chat.Messages)
	s.autosave = NewAutosaver(opts.AutosaveDelay, s.saveArtifactContent, func(artifactID string, err error) {
		opts.Events.notify(fmt.Sprintf("autosave failed for %s: %v", artifactID, err))
	})
	return s, nil
}

func (s *Session) ID() string          { return s.chatID }
func (s *Session) ProjectID() string   { return s.projectID }
func (s *Session) Cache() *Cache       { return s.cache }
func (s *Session) Engine() *Dispatcher { return s.dispatcher }

// Messages returns the cached transcript.
func (s *Session) Messages() []models.Message {
	chat, ok := ReadAs[models.ChatSession](s.cache, sessionKey(s.chatID))
	if !ok {
		return nil
	}
	return chat.Clone().Messages
}

// SendMessage appends the user's text optimistically, awaits the assistant
// reply, and dispatches any tool calls the reply carries. The reply's
// index comes from the store's send result, never from predicting the
// local list length.
func (s *Session) SendMessage(ctx context.Context, req store.SendMessageRequest) (models.Message, error) {
	var reply models.Message
	var replyIndex int

	err := s.cache.Mutate(ctx, sessionKey(s.chatID),
		func(old any) any {
			chat, ok := old.(models.ChatSession)
			if !ok {
				return old
			}
			cp := chat.Clone()
			cp.Append(models.Message{
				ID:        "local-" + s.chatID,
				Role:      models.RoleUser,
				Content:   req.Text,
				CreatedAt: time.Now(),
			})
			return *cp
		},
		func(ctx context.Context) (any, error) {
			var err error
			reply, replyIndex, err = s.assistant.SendChatMessage(ctx, s.chatID, req)
			if err != nil {
				return nil, err
			}
			// Reconcile with the canonical transcript: the provisional
			// user message gets its server identity, the reply lands at
			// its definitive index.
			canonical, err := s.store.GetSession(ctx, s.chatID)
			if err != nil {
				return nil, err
			}
			return canonical, nil
		})
	if err != nil {
		return models.Message{}, err
	}

	s.dispatcher.Dispatch(ctx, reply, replyIndex)
	return reply, nil
}

// EditArtifact records new content for an artifact: the cache reflects it
// immediately, the write goes out after the autosave quiet period.
// Rejected while the artifact is under an open, unresolved review.
func (s *Session) EditArtifact(artifactID, content string) error {
	if id, open := s.dispatcher.OpenReview(); open {
		if review, ok := s.dispatcher.Review(id); ok && review.ArtifactID == artifactID {
			return fmt.Errorf("document %s is under review; accept or reject the proposal first", review.ArtifactName)
		}
	}

	if artifact, ok := ReadAs[models.Artifact](s.cache, artifactKey(artifactID)); ok {
		// The first keystroke of a dirty cycle pins the confirmed
		// content, so a failed save can restore it instead of the
		// optimistic copy.
		s.editMu.Lock()
		if _, dirty := s.editBase[artifactID]; !dirty {
			s.editBase[artifactID] = artifact
		}
		s.editMu.Unlock()

		artifact.Content = content
		s.cache.Put(artifactKey(artifactID), artifact)
	}
	s.autosave.Queue(artifactID, content)
	return nil
}

// FlushEdits forces the artifact's pending autosave out now, e.g. when the
// editor switches to a different artifact.
func (s *Session) FlushEdits(ctx context.Context, artifactID string) error {
	return s.autosave.Flush(ctx, artifactID)
}

// saveArtifactContent writes one debounced edit out. The cache already
// holds the optimistic content from EditArtifact, so settlement works
// against the confirmed base pinned at the start of the dirty cycle: a
// failure restores the base, success replaces it with the server's copy.
// Either way, keystrokes queued after this save fired are left alone;
// their own save settles them.
func (s *Session) saveArtifactContent(ctx context.Context, artifactID, content string) error {
	updated, err := s.store.UpdateArtifact(ctx, artifactID, artifactUpdateContent(content))
	newer := s.autosave.Pending(artifactID)

	s.editMu.Lock()
	defer s.editMu.Unlock()

	if err != nil {
		if base, dirty := s.editBase[artifactID]; dirty && !newer {
			delete(s.editBase, artifactID)
			s.cache.Put(artifactKey(artifactID), base)
		}
		return err
	}
	if newer {
		s.editBase[artifactID] = updated
		return nil
	}
	delete(s.editBase, artifactID)
	s.cache.Put(artifactKey(artifactID), updated)
	return nil
}

// SetPinned toggles the chat session's pin flag and re-sorts the cached
// session list by pinned-then-recency.
func (s *Session) SetPinned(ctx context.Context, pinned bool) error {
	return s.cache.Mutate(ctx, sessionsKey,
		func(old any) any {
			sessions, ok := old.([]models.ChatSession)
			if !ok {
				return old
			}
			out := make([]models.ChatSession, len(sessions))
			copy(out, sessions)
			for i := range out {
				if out[i].ID == s.chatID {
					out[i].Pinned = pinned
					out[i].UpdatedAt = time.Now()
				}
			}
			sortSessions(out)
			return out
		},
		func(ctx context.Context) (any, error) {
			if _, err := s.store.UpdateSession(ctx, s.chatID, store.SessionUpdate{Pinned: &pinned}); err != nil {
				return nil, err
			}
			sessions, err := s.store.ListSessions(ctx, s.projectID)
			if err != nil {
				return nil, err
			}
			return sessions, nil
		})
}

func sortSessions(sessions []models.ChatSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Pinned != sessions[j].Pinned {
			return sessions[i].Pinned
		}
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}

// Preview, Accept, and Reject resolve reviews through the engine using the
// transcript position shown to the user.
func (s *Session) PreviewAt(ctx context.Context, index int) (DiffReview, error) {
	id, ok := s.dispatcher.MessageIDAt(index)
	if !ok {
		return DiffReview{}, ErrNoReview
	}
	return s.dispatcher.Preview(ctx, id)
}

func (s *Session) AcceptAt(ctx context.Context, index int) error {
	id, ok := s.dispatcher.MessageIDAt(index)
	if !ok {
		return ErrNoReview
	}
	return s.dispatcher.Accept(ctx, id)
}

func (s *Session) RejectAt(index int) error {
	id, ok := s.dispatcher.MessageIDAt(index)
	if !ok {
		return ErrNoReview
	}
	return s.dispatcher.Reject(id)
}

// Close drains pending autosaves and discards all derived state. A session
// must be closed before another is opened for the same surface; review and
// dispatcher state never survives a switch.
func (s *Session) Close(ctx context.Context) error {
	err := s.autosave.Close(ctx)
	s.dispatcher.Discard()
	return err
}
