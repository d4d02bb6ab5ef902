package linking

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"tmengine/internal/store"
)

func newGroupID() string { return uuid.NewString() }

// SearchPhraseGroups returns groups whose merged text or tags contain query,
// case-insensitively. An empty project searches every project.
func (s *Service) SearchPhraseGroups(ctx context.Context, project, query string) ([]*store.PhraseGroup, error) {
	groups, err := s.store.PhraseGroups(ctx, project)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	out := []*store.PhraseGroup{}
	for _, g := range groups {
		if strings.Contains(strings.ToLower(g.MergedText), needle) ||
			slices.ContainsFunc(g.Metadata.Tags, func(tag string) bool {
				return strings.Contains(strings.ToLower(tag), needle)
			}) {
			out = append(out, g)
		}
	}
	return out, nil
}

// TagCount is a tag and the number of groups carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Statistics summarizes phrase groups.
type Statistics struct {
	TotalGroups       int        `json:"total_groups"`
	TotalLinkedChunks int        `json:"total_linked_chunks"`
	UniqueLanguages   int        `json:"unique_languages"`
	AverageGroupSize  float64    `json:"average_group_size"`
	TopTags           []TagCount `json:"top_tags"`
}

const topTagLimit = 10

// Statistics reports group counts, average size, and the most used tags.
func (s *Service) Statistics(ctx context.Context, project string) (Statistics, error) {
	groups, err := s.store.PhraseGroups(ctx, project)
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{TotalGroups: len(groups), TopTags: []TagCount{}}
	languages := make(map[string]struct{})
	tags := make(map[string]int)
	for _, g := range groups {
		stats.TotalLinkedChunks += len(g.ChunkIDs)
		languages[g.Language] = struct{}{}
		for _, tag := range g.Metadata.Tags {
			tags[tag]++
		}
	}
	stats.UniqueLanguages = len(languages)
	if stats.TotalGroups > 0 {
		stats.AverageGroupSize = float64(stats.TotalLinkedChunks) / float64(stats.TotalGroups)
	}
	for tag, n := range tags {
		stats.TopTags = append(stats.TopTags, TagCount{Tag: tag, Count: n})
	}
	slices.SortFunc(stats.TopTags, func(a, b TagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Tag, b.Tag)
	})
	if len(stats.TopTags) > topTagLimit {
		stats.TopTags = stats.TopTags[:topTagLimit]
	}
	return stats, nil
}
