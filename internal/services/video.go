package services

import (
	"context"

	"github.com/coursepilot/backend/internal/clients/youtube"
	"github.com/coursepilot/backend/internal/platform/logger"
)

const maxVideosPerChapter = 3

// VideoService resolves chapter videos best-effort. Enrichment never fails a
// generation run; any lookup problem yields an empty list.
type VideoService interface {
	ResolveChapterVideos(ctx context.Context, courseName, chapterName string) []string
}

type videoService struct {
	log          *logger.Logger
	searchClient youtube.SearchClient
}

// NewVideoService accepts a nil searchClient; the service then resolves every
// chapter to no videos.
func NewVideoService(log *logger.Logger, searchClient youtube.SearchClient) VideoService {
	return &videoService{
		log:          log.With("service", "VideoService"),
		searchClient: searchClient,
	}
}

func (s *videoService) ResolveChapterVideos(ctx context.Context, courseName, chapterName string) []string {
	if s.searchClient == nil {
		return []string{}
	}

	query := courseName + ":" + chapterName
	ids, err := s.searchClient.SearchVideoIDs(ctx, query, maxVideosPerChapter)
	if err != nil {
		s.log.Warn("Video lookup failed; continuing without videos",
			"query", query,
			"error", err,
		)
		return []string{}
	}
	if ids == nil {
		return []string{}
	}
	if len(ids) > maxVideosPerChapter {
		ids = ids[:maxVideosPerChapter]
	}
	return ids
}
