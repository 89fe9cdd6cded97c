package services

import (
	"context"
	"fmt"

	types "github.com/coursepilot/backend/internal/domain"
)

// fakeTextClient returns scripted completions in order. A nil entry in errs
// means that call succeeds.
type fakeTextClient struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeTextClient) GenerateText(_ context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", fmt.Errorf("unexpected call %d", i)
}

type fakeSearchClient struct {
	ids     []string
	err     error
	queries []string
}

func (f *fakeSearchClient) SearchVideoIDs(_ context.Context, query string, _ int64) ([]string, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

// fakeContentService scripts per-chapter outcomes for orchestrator tests.
type fakeContentService struct {
	failAt  int // chapter index that errors, -1 for none
	failErr error
	calls   int
}

func (f *fakeContentService) GenerateChapter(_ context.Context, _ string, chapter types.LayoutChapter) (*types.ChapterContent, error) {
	i := f.calls
	f.calls++
	if f.failAt >= 0 && i == f.failAt {
		return nil, f.failErr
	}
	return &types.ChapterContent{
		Title: chapter.ChapterName,
		Sections: []types.ChapterSection{
			{Title: "Overview", Explanation: "Explanation for " + chapter.ChapterName, CodeExample: ""},
		},
	}, nil
}

type fakeVideoService struct {
	ids   []string
	calls int
}

func (f *fakeVideoService) ResolveChapterVideos(_ context.Context, _, _ string) []string {
	f.calls++
	if f.ids == nil {
		return []string{}
	}
	return f.ids
}
