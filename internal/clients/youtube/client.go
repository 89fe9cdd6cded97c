package youtube

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/coursepilot/backend/internal/platform/logger"
)

const maxResultsCap = 3

// SearchClient finds embeddable video ids for a query. Results come back in
// relevance order; ids of non-video matches are dropped.
type SearchClient interface {
	SearchVideoIDs(ctx context.Context, query string, maxResults int64) ([]string, error)
}

type searchClient struct {
	log    *logger.Logger
	apiKey string
}

func NewSearchClient(log *logger.Logger) (SearchClient, error) {
	apiKey := strings.TrimSpace(os.Getenv("YOUTUBE_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing YOUTUBE_API_KEY")
	}
	return &searchClient{
		log:    log.With("client", "YouTubeSearchClient"),
		apiKey: apiKey,
	}, nil
}

func (c *searchClient) SearchVideoIDs(ctx context.Context, query string, maxResults int64) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return []string{}, nil
	}
	if maxResults <= 0 || maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	svc, err := yt.NewService(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}

	call := svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		VideoEmbeddable("true").
		RelevanceLanguage("en").
		MaxResults(maxResults).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		ids = append(ids, item.Id.VideoId)
		if int64(len(ids)) >= maxResults {
			break
		}
	}
	return ids, nil
}
