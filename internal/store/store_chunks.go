package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"tmengine/internal/tmerr"
)

const (
	chunkTable  = "chunks"
	groupTable  = "phrase_groups"
	chunkUpsert = "ON CONFLICT(id) DO UPDATE SET project_id = excluded.project_id, chapter_id = excluded.chapter_id, " +
		"original_position = excluded.original_position, chunk_type = excluded.chunk_type, text = excluded.text, " +
		"sentence_boundaries_json = excluded.sentence_boundaries_json, linked_chunks_json = excluded.linked_chunks_json, " +
		"processing_notes_json = excluded.processing_notes_json, phrase_group_id = excluded.phrase_group_id, " +
		"updated_at = excluded.updated_at"
)

var chunkColumns = []string{
	"id", "project_id", "chapter_id", "original_position", "chunk_type", "text",
	"sentence_boundaries_json", "linked_chunks_json", "processing_notes_json", "phrase_group_id",
	"created_at", "updated_at",
}

var groupColumns = []string{
	"id", "project_id", "chunk_ids_json", "merge_order_json", "merged_text", "language",
	"created_by", "description", "tags_json", "confidence", "usage_count",
	"created_at", "updated_at",
}

func scanChunk(scanner rowScanner) (*Chunk, error) {
	var (
		c          Chunk
		chunkType  string
		boundaries sql.NullString
		linked     sql.NullString
		notes      sql.NullString
		group      sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&c.ID, &c.ProjectID, &c.ChapterID, &c.OriginalPosition, &chunkType, &c.Text,
		&boundaries, &linked, &notes, &group, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	c.ChunkType = ChunkType(chunkType)
	c.SentenceBoundaries = decodeInts(boundaries)
	c.LinkedChunks = decodeStrings(linked)
	c.ProcessingNotes = decodeStrings(notes)
	c.PhraseGroupID = stringPtr(group)
	c.CreatedAt = parseTime(createdRaw)
	c.UpdatedAt = parseTime(updatedRaw)
	return &c, nil
}

func scanGroup(scanner rowScanner) (*PhraseGroup, error) {
	var (
		g          PhraseGroup
		chunkIDs   sql.NullString
		order      sql.NullString
		tags       sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&g.ID, &g.ProjectID, &chunkIDs, &order, &g.MergedText, &g.Language,
		&g.Metadata.CreatedBy, &g.Metadata.Description, &tags, &g.Metadata.Confidence, &g.Metadata.UsageCount,
		&createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	g.ChunkIDs = decodeStrings(chunkIDs)
	g.MergeOrder = decodeInts(order)
	g.Metadata.Tags = decodeStrings(tags)
	g.CreatedAt = parseTime(createdRaw)
	g.UpdatedAt = parseTime(updatedRaw)
	return &g, nil
}

func upsertChunkTx(ctx context.Context, tx *sql.Tx, sb sq.StatementBuilderType, c *Chunk) error {
	_, err := execBuilder(ctx, tx, sb.Insert(chunkTable).
		Columns(chunkColumns...).
		Values(c.ID, c.ProjectID, c.ChapterID, c.OriginalPosition, string(c.ChunkType), c.Text,
			encodeJSON(nonNilInts(c.SentenceBoundaries)), encodeJSON(nonNilStrings(c.LinkedChunks)),
			encodeJSON(nonNilStrings(c.ProcessingNotes)), nullString(c.PhraseGroupID),
			formatTime(c.CreatedAt), formatTime(c.UpdatedAt)).
		Suffix(chunkUpsert))
	return err
}

func prepareChunk(c *Chunk) error {
	if c == nil {
		return tmerr.Invalid("chunk", "must not be nil")
	}
	stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	c.UpdatedAt = nowUTC()
	if c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}
	return c.Validate()
}

// UpsertChunk inserts or replaces a chunk.
func (s *Store) UpsertChunk(ctx context.Context, c *Chunk) error {
	return s.UpsertChunks(ctx, []*Chunk{c})
}

// UpsertChunks inserts or replaces chunks in one transaction.
func (s *Store) UpsertChunks(ctx context.Context, chunks []*Chunk) error {
	for i, c := range chunks {
		if err := prepareChunk(c); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	return s.write(ctx, "upsert chunks", func(tx *sql.Tx) ([]WriteEvent, error) {
		for _, c := range chunks {
			if err := upsertChunkTx(ctx, tx, s.sb, c); err != nil {
				return nil, err
			}
		}
		return projectEvents(EntityChunk, chunks, func(c *Chunk) string { return c.ProjectID }), nil
	})
}

// GetChunk fetches a chunk by id. It returns (nil, nil) when none exists.
func (s *Store) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	return selectOne(ctx, s, "get chunk", s.sb.Select(chunkColumns...).From(chunkTable).Where(sq.Eq{"id": id}), scanChunk)
}

// ChunksByID fetches chunks keyed by id. Missing ids are absent from the map.
func (s *Store) ChunksByID(ctx context.Context, ids []string) (map[string]*Chunk, error) {
	out := make(map[string]*Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	chunks, err := selectMany(ctx, s, "get chunks", s.sb.Select(chunkColumns...).From(chunkTable).Where(sq.Eq{"id": ids}), scanChunk)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		out[c.ID] = c
	}
	return out, nil
}

// ChunksByChapter lists a chapter's chunks in document order.
func (s *Store) ChunksByChapter(ctx context.Context, chapterID string) ([]*Chunk, error) {
	return selectMany(ctx, s, "list chunks", s.sb.Select(chunkColumns...).From(chunkTable).
		Where(sq.Eq{"chapter_id": chapterID}).
		OrderBy("original_position", "id"), scanChunk)
}

func insertGroupTx(ctx context.Context, tx *sql.Tx, sb sq.StatementBuilderType, g *PhraseGroup) error {
	_, err := execBuilder(ctx, tx, sb.Insert(groupTable).
		Columns(groupColumns...).
		Values(g.ID, g.ProjectID, encodeJSON(nonNilStrings(g.ChunkIDs)), encodeJSON(nonNilInts(g.MergeOrder)),
			g.MergedText, g.Language, g.Metadata.CreatedBy, g.Metadata.Description,
			encodeJSON(nonNilStrings(g.Metadata.Tags)), g.Metadata.Confidence, g.Metadata.UsageCount,
			formatTime(g.CreatedAt), formatTime(g.UpdatedAt)))
	return err
}

// claimChunkTx points an ungrouped chunk at groupID. A chunk that already
// belongs to a group is a Conflict.
func claimChunkTx(ctx context.Context, tx *sql.Tx, sb sq.StatementBuilderType, chunkID, groupID string) error {
	res, err := execBuilder(ctx, tx, sb.Update(chunkTable).
		Set("phrase_group_id", groupID).
		Where(sq.Eq{"id": chunkID, "phrase_group_id": nil}))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tmerr.Wrap(tmerr.ErrConflict, component, "insert phrase group",
			fmt.Sprintf("chunk %s is missing or already belongs to a phrase group", chunkID), nil)
	}
	return nil
}

// InsertPhraseGroup stores a group together with its updated member chunks
// and, when unit is non-nil, a translation unit for the merged phrase. All
// rows commit in one transaction. Members are claimed inside it, so a chunk
// grouped concurrently fails the whole insert with a Conflict.
func (s *Store) InsertPhraseGroup(ctx context.Context, g *PhraseGroup, members []*Chunk, unit *TranslationUnit) error {
	if g == nil {
		return tmerr.Invalid("phrase_group", "must not be nil")
	}
	stamp(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err := g.Validate(); err != nil {
		return err
	}
	for i, c := range members {
		if err := prepareChunk(c); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	if unit != nil {
		if err := s.prepareUnit(unit); err != nil {
			return err
		}
	}
	return s.write(ctx, "insert phrase group", func(tx *sql.Tx) ([]WriteEvent, error) {
		if err := insertGroupTx(ctx, tx, s.sb, g); err != nil {
			return nil, err
		}
		for _, c := range members {
			if err := claimChunkTx(ctx, tx, s.sb, c.ID, g.ID); err != nil {
				return nil, err
			}
			if err := upsertChunkTx(ctx, tx, s.sb, c); err != nil {
				return nil, err
			}
		}
		events := []WriteEvent{{ProjectID: g.ProjectID, Entity: EntityPhraseGroup}}
		if unit != nil {
			if err := insertUnitTx(ctx, tx, s.sb, unit); err != nil {
				return nil, err
			}
			events = append(events, WriteEvent{ProjectID: unit.ProjectID, Entity: EntityUnit})
		}
		return events, nil
	})
}

// UpdatePhraseGroup rewrites a group's text and metadata.
func (s *Store) UpdatePhraseGroup(ctx context.Context, g *PhraseGroup) error {
	if g == nil || strings.TrimSpace(g.ID) == "" {
		return tmerr.Invalid("id", "must not be empty")
	}
	if err := g.Validate(); err != nil {
		return err
	}
	g.UpdatedAt = nowUTC()
	return s.write(ctx, "update phrase group", func(tx *sql.Tx) ([]WriteEvent, error) {
		res, err := execBuilder(ctx, tx, s.sb.Update(groupTable).
			SetMap(map[string]any{
				"merged_text": g.MergedText,
				"language":    g.Language,
				"created_by":  g.Metadata.CreatedBy,
				"description": g.Metadata.Description,
				"tags_json":   encodeJSON(nonNilStrings(g.Metadata.Tags)),
				"confidence":  g.Metadata.Confidence,
				"usage_count": g.Metadata.UsageCount,
				"updated_at":  formatTime(g.UpdatedAt),
			}).
			Where(sq.Eq{"id": g.ID}))
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, tmerr.Wrap(tmerr.ErrNotFound, component, "update phrase group", fmt.Sprintf("phrase group %s", g.ID), nil)
		}
		return []WriteEvent{{ProjectID: g.ProjectID, Entity: EntityPhraseGroup}}, nil
	})
}

// DeletePhraseGroup removes a group and writes back its restored member
// chunks in one transaction. It reports whether the group existed.
func (s *Store) DeletePhraseGroup(ctx context.Context, id string, members []*Chunk) (bool, error) {
	for i, c := range members {
		if err := prepareChunk(c); err != nil {
			return false, fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	var deleted bool
	err := s.write(ctx, "delete phrase group", func(tx *sql.Tx) ([]WriteEvent, error) {
		deleted = false
		var project string
		err := tx.QueryRowContext(ctx, "SELECT project_id FROM phrase_groups WHERE id = ?", id).Scan(&project)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if _, err := execBuilder(ctx, tx, s.sb.Delete(groupTable).Where(sq.Eq{"id": id})); err != nil {
			return nil, err
		}
		for _, c := range members {
			if err := upsertChunkTx(ctx, tx, s.sb, c); err != nil {
				return nil, err
			}
		}
		deleted = true
		return []WriteEvent{{ProjectID: project, Entity: EntityPhraseGroup}}, nil
	})
	return deleted, err
}

// GetPhraseGroup fetches a group by id. It returns (nil, nil) when none exists.
func (s *Store) GetPhraseGroup(ctx context.Context, id string) (*PhraseGroup, error) {
	return selectOne(ctx, s, "get phrase group", s.sb.Select(groupColumns...).From(groupTable).Where(sq.Eq{"id": id}), scanGroup)
}

// PhraseGroups lists groups, newest first. An empty projectID lists all.
func (s *Store) PhraseGroups(ctx context.Context, projectID string) ([]*PhraseGroup, error) {
	b := s.sb.Select(groupColumns...).From(groupTable)
	if projectID != "" {
		b = b.Where(sq.Eq{"project_id": projectID})
	}
	return selectMany(ctx, s, "list phrase groups", b.OrderBy("created_at DESC", "id"), scanGroup)
}

func projectEvents[T any](entity Entity, items []T, project func(T) string) []WriteEvent {
	seen := make(map[string]struct{}, len(items))
	var events []WriteEvent
	for _, item := range items {
		p := project(item)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		events = append(events, WriteEvent{ProjectID: p, Entity: entity})
	}
	return events
}
