package linking

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"tmengine/internal/logging"
	"tmengine/internal/tmerr"
)

// SelectionMode describes how a session picks chunks.
type SelectionMode string

const (
	ModeIndividual SelectionMode = "individual"
	ModeRange      SelectionMode = "range"
	ModePattern    SelectionMode = "pattern"
)

// Valid reports whether m is a known mode.
func (m SelectionMode) Valid() bool {
	switch m {
	case ModeIndividual, ModeRange, ModePattern:
		return true
	default:
		return false
	}
}

// Selection is a snapshot of a session's selected chunks.
type Selection struct {
	SessionID string        `json:"session_id"`
	Mode      SelectionMode `json:"mode"`
	ChunkIDs  []string      `json:"chunk_ids"`
	CreatedAt time.Time     `json:"created_at"`
}

type session struct {
	mu        sync.Mutex
	id        string
	mode      SelectionMode
	chunkIDs  []string
	createdAt time.Time
}

func (s *session) add(ids ...string) int {
	added := 0
	for _, id := range ids {
		if id == "" || slices.Contains(s.chunkIDs, id) {
			continue
		}
		s.chunkIDs = append(s.chunkIDs, id)
		added++
	}
	return added
}

func (s *session) snapshot() Selection {
	return Selection{
		SessionID: s.id,
		Mode:      s.mode,
		ChunkIDs:  slices.Clone(s.chunkIDs),
		CreatedAt: s.createdAt,
	}
}

// StartSession opens a selection session and returns its id.
func (s *Service) StartSession(mode SelectionMode) (string, error) {
	if mode == "" {
		mode = ModeIndividual
	}
	if !mode.Valid() {
		return "", tmerr.Invalid("mode", "unknown selection mode %q", mode)
	}
	sess := &session{id: uuid.NewString(), mode: mode, createdAt: s.now()}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.logger.Debug("selection session started",
		logging.String(logging.FieldSessionID, sess.id),
		logging.String("mode", string(mode)),
	)
	return sess.id, nil
}

// EndSession discards a session and its selection.
func (s *Service) EndSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return sessionNotFound("end session", id)
	}
	delete(s.sessions, id)
	return nil
}

func (s *Service) session(op, id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, sessionNotFound(op, id)
	}
	return sess, nil
}

func sessionNotFound(op, id string) error {
	return tmerr.Wrap(tmerr.ErrNotFound, "linking", op, fmt.Sprintf("session %s", id), nil)
}

// SelectChunk adds one chunk id to the selection. Repeated ids are ignored.
func (s *Service) SelectChunk(sessionID, chunkID string) error {
	sess, err := s.session("select chunk", sessionID)
	if err != nil {
		return err
	}
	if chunkID == "" {
		return tmerr.Invalid("chunk_id", "must not be empty")
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.add(chunkID)
	return nil
}

// SelectRange selects a chapter's stored chunks whose position lies in
// [fromPos, toPos]. It returns the number of newly selected chunks.
func (s *Service) SelectRange(ctx context.Context, sessionID, chapterID string, fromPos, toPos int) (int, error) {
	if fromPos > toPos {
		return 0, tmerr.Invalid("range", "from %d is after to %d", fromPos, toPos)
	}
	sess, err := s.session("select range", sessionID)
	if err != nil {
		return 0, err
	}
	chunks, err := s.store.ChunksByChapter(ctx, chapterID)
	if err != nil {
		return 0, err
	}
	var ids []string
	for _, c := range chunks {
		if c.OriginalPosition >= fromPos && c.OriginalPosition <= toPos {
			ids = append(ids, c.ID)
		}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.add(ids...), nil
}

// SelectPattern selects a chapter's stored chunks whose text matches expr.
func (s *Service) SelectPattern(ctx context.Context, sessionID, chapterID, expr string) (int, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return 0, tmerr.Invalid("pattern", "%v", err)
	}
	sess, err := s.session("select pattern", sessionID)
	if err != nil {
		return 0, err
	}
	chunks, err := s.store.ChunksByChapter(ctx, chapterID)
	if err != nil {
		return 0, err
	}
	var ids []string
	for _, c := range chunks {
		if re.MatchString(c.Text) {
			ids = append(ids, c.ID)
		}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.add(ids...), nil
}

// Deselect removes a chunk id from the selection.
func (s *Service) Deselect(sessionID, chunkID string) error {
	sess, err := s.session("deselect", sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.chunkIDs = slices.DeleteFunc(sess.chunkIDs, func(id string) bool { return id == chunkID })
	return nil
}

// Selection returns a snapshot of the session's selection.
func (s *Service) Selection(sessionID string) (Selection, error) {
	sess, err := s.session("selection", sessionID)
	if err != nil {
		return Selection{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

// ClearSelection empties the selection but keeps the session open.
func (s *Service) ClearSelection(sessionID string) error {
	sess, err := s.session("clear selection", sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.chunkIDs = nil
	return nil
}
