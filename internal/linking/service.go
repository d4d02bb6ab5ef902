package linking

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/tmerr"
)

// ChunkMetadata is a persisted chunk.
type ChunkMetadata = store.Chunk

// PhraseGroup is a persisted phrase group.
type PhraseGroup = store.PhraseGroup

// PhraseMetadata describes a phrase group.
type PhraseMetadata = store.PhraseMetadata

const minGroupSize = 2

const msgTooFew = "at least 2 chunks must be selected for linking"

// ChunkStore is the persistence the linking service needs.
type ChunkStore interface {
	ChunksByID(ctx context.Context, ids []string) (map[string]*store.Chunk, error)
	ChunksByChapter(ctx context.Context, chapterID string) ([]*store.Chunk, error)
	GetChunk(ctx context.Context, id string) (*store.Chunk, error)
	InsertPhraseGroup(ctx context.Context, g *store.PhraseGroup, members []*store.Chunk, unit *store.TranslationUnit) error
	UpdatePhraseGroup(ctx context.Context, g *store.PhraseGroup) error
	DeletePhraseGroup(ctx context.Context, id string, members []*store.Chunk) (bool, error)
	GetPhraseGroup(ctx context.Context, id string) (*store.PhraseGroup, error)
	PhraseGroups(ctx context.Context, projectID string) ([]*store.PhraseGroup, error)
}

// Service manages selection sessions and phrase groups.
type Service struct {
	store  ChunkStore
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// New builds a linking Service.
func New(st ChunkStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:    st,
		logger:   logging.NewComponentLogger(logger, "linking"),
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*session),
	}
}

// LinkingResult reports the outcome of LinkSelectedChunks.
type LinkingResult struct {
	PhraseGroupID string   `json:"phrase_group_id"`
	LinkedChunks  []string `json:"linked_chunks"`
	MergedText    string   `json:"merged_text"`
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
}

// LinkSelectedChunks merges the session's selection into a phrase group.
// phraseText, when non-empty, replaces the merged member text. On success
// the selection is cleared.
func (s *Service) LinkSelectedChunks(ctx context.Context, sessionID, phraseText, lang string, opts MergeOptions) (LinkingResult, error) {
	sess, err := s.session("link", sessionID)
	if err != nil {
		return LinkingResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ids := slices.Clone(sess.chunkIDs)
	if len(ids) < minGroupSize {
		return LinkingResult{Message: msgTooFew},
			tmerr.Wrap(tmerr.ErrConflict, "linking", "link", msgTooFew, nil)
	}
	members, err := s.loadMembers(ctx, ids)
	if err != nil {
		return LinkingResult{Message: err.Error()}, err
	}

	merged, order, err := Merge(members, opts)
	if err != nil {
		return LinkingResult{Message: err.Error()}, err
	}
	if strings.TrimSpace(phraseText) != "" {
		merged = phraseText
	}

	meta := store.DefaultPhraseMetadata()
	meta.CreatedBy = opts.CreatedBy
	meta.Tags = slices.Clone(opts.Tags)
	group := &store.PhraseGroup{
		ProjectID:  members[0].ProjectID,
		ChunkIDs:   ids,
		MergeOrder: order,
		MergedText: merged,
		Language:   lang,
		Metadata:   meta,
	}
	// The id is needed before insert so members can reference it.
	group.ID = newGroupID()
	for _, c := range members {
		for _, other := range ids {
			if other == c.ID {
				continue
			}
			if err := c.LinkWith(other); err != nil {
				return LinkingResult{Message: err.Error()}, err
			}
		}
		gid := group.ID
		c.PhraseGroupID = &gid
		c.AddProcessingNote(fmt.Sprintf("linked into phrase group %s", group.ID))
	}

	var unit *store.TranslationUnit
	if opts.UpdateTranslationMemory && strings.TrimSpace(opts.TargetText) != "" && opts.TargetLanguage != "" {
		unit = &store.TranslationUnit{
			ProjectID:       group.ProjectID,
			ChapterID:       members[0].ChapterID,
			ChunkID:         members[0].ID,
			SourceLanguage:  lang,
			SourceText:      merged,
			TargetLanguage:  opts.TargetLanguage,
			TargetText:      opts.TargetText,
			ConfidenceScore: meta.Confidence,
		}
	}

	if err := s.store.InsertPhraseGroup(ctx, group, members, unit); err != nil {
		return LinkingResult{Message: err.Error()}, err
	}
	sess.chunkIDs = nil

	s.logger.Info("phrase group linked",
		logging.Project(group.ProjectID),
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("phrase_group_id", group.ID),
		logging.Int("chunks", len(ids)),
		logging.Bool("translation_unit", unit != nil),
	)
	return LinkingResult{
		PhraseGroupID: group.ID,
		LinkedChunks:  ids,
		MergedText:    merged,
		Success:       true,
		Message:       "chunks linked into phrase group",
	}, nil
}

// loadMembers fetches the selected chunks in selection order and checks that
// they can form one group.
func (s *Service) loadMembers(ctx context.Context, ids []string) ([]*store.Chunk, error) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, tmerr.Wrap(tmerr.ErrConflict, "linking", "link", fmt.Sprintf("duplicate chunk %s in selection", id), nil)
		}
		seen[id] = struct{}{}
	}
	found, err := s.store.ChunksByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	members := make([]*store.Chunk, 0, len(ids))
	for _, id := range ids {
		c, ok := found[id]
		if !ok {
			return nil, tmerr.Wrap(tmerr.ErrNotFound, "linking", "link", fmt.Sprintf("chunk %s", id), nil)
		}
		if c.PhraseGroupID != nil {
			return nil, tmerr.Wrap(tmerr.ErrConflict, "linking", "link",
				fmt.Sprintf("chunk %s already belongs to phrase group %s", id, *c.PhraseGroupID), nil)
		}
		if len(members) > 0 && c.ProjectID != members[0].ProjectID {
			return nil, tmerr.Wrap(tmerr.ErrConflict, "linking", "link", "chunks belong to different projects", nil)
		}
		members = append(members, c)
	}
	return members, nil
}

// UnlinkPhraseGroup restores the group's member chunks and deletes it.
func (s *Service) UnlinkPhraseGroup(ctx context.Context, id string) error {
	group, err := s.store.GetPhraseGroup(ctx, id)
	if err != nil {
		return err
	}
	if group == nil {
		return groupNotFound("unlink", id)
	}
	found, err := s.store.ChunksByID(ctx, group.ChunkIDs)
	if err != nil {
		return err
	}
	members := make([]*store.Chunk, 0, len(found))
	for _, cid := range group.ChunkIDs {
		c, ok := found[cid]
		if !ok {
			continue
		}
		for _, other := range group.ChunkIDs {
			c.Unlink(other)
		}
		c.PhraseGroupID = nil
		c.AddProcessingNote(fmt.Sprintf("unlinked from phrase group %s", id))
		members = append(members, c)
	}
	deleted, err := s.store.DeletePhraseGroup(ctx, id, members)
	if err != nil {
		return err
	}
	if !deleted {
		return groupNotFound("unlink", id)
	}
	s.logger.Info("phrase group unlinked",
		logging.Project(group.ProjectID),
		logging.String("phrase_group_id", id),
		logging.Int("chunks", len(members)),
	)
	return nil
}

func groupNotFound(op, id string) error {
	return tmerr.Wrap(tmerr.ErrNotFound, "linking", op, fmt.Sprintf("phrase group %s", id), nil)
}

// PhraseGroup returns a group by id.
func (s *Service) PhraseGroup(ctx context.Context, id string) (*store.PhraseGroup, error) {
	group, err := s.store.GetPhraseGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, groupNotFound("get", id)
	}
	return group, nil
}

// LinkedChunks returns the chunks linked to chunkID in link order.
func (s *Service) LinkedChunks(ctx context.Context, chunkID string) ([]*store.Chunk, error) {
	c, err := s.store.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, tmerr.Wrap(tmerr.ErrNotFound, "linking", "linked chunks", fmt.Sprintf("chunk %s", chunkID), nil)
	}
	found, err := s.store.ChunksByID(ctx, c.LinkedChunks)
	if err != nil {
		return nil, err
	}
	out := make([]*store.Chunk, 0, len(found))
	for _, id := range c.LinkedChunks {
		if linked, ok := found[id]; ok {
			out = append(out, linked)
		}
	}
	return out, nil
}

// UpdatePhraseMetadata applies fn to a group's metadata and persists it.
func (s *Service) UpdatePhraseMetadata(ctx context.Context, id string, fn func(*store.PhraseMetadata)) (*store.PhraseGroup, error) {
	group, err := s.PhraseGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(&group.Metadata)
	if err := s.store.UpdatePhraseGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}
