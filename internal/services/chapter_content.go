package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coursepilot/backend/internal/clients/openai"
	types "github.com/coursepilot/backend/internal/domain"
	"github.com/coursepilot/backend/internal/platform/apierr"
	"github.com/coursepilot/backend/internal/platform/logger"
)

type ChapterContentService interface {
	// GenerateChapter produces the content document for one chapter of the
	// named course.
	GenerateChapter(ctx context.Context, courseName string, chapter types.LayoutChapter) (*types.ChapterContent, error)
}

type chapterContentService struct {
	log        *logger.Logger
	textClient openai.TextClient
}

func NewChapterContentService(log *logger.Logger, textClient openai.TextClient) ChapterContentService {
	return &chapterContentService{
		log:        log.With("service", "ChapterContentService"),
		textClient: textClient,
	}
}

func buildChapterPrompt(courseName string, chapter types.LayoutChapter) string {
	return fmt.Sprintf(`Generate detailed content for the following topic in strict JSON format:
- Topic: %s
- Chapter: %s

The response must be a valid JSON object containing an array of objects with the following fields:
1. "title": A short and descriptive title for the subtopic.
2. "explanation": A detailed explanation of the subtopic.
3. "codeExample": A code example (if applicable) wrapped in <precode> tags, or an empty string if no code example is available.

Ensure:
- The JSON is valid and follows the specified format.
- Proper escaping of special characters.
- No trailing commas or malformed syntax.
- The response can be parsed directly using JSON.parse().

Format example:
{
  "title": "Topic Title",
  "chapters": [
    {
      "title": "Subtopic Title",
      "explanation": "Detailed explanation here.",
      "codeExample": "<precode>Code example here</precode>"
    }
  ]
}`, courseName, chapter.ChapterName)
}

func (s *chapterContentService) GenerateChapter(ctx context.Context, courseName string, chapter types.LayoutChapter) (*types.ChapterContent, error) {
	raw, err := s.textClient.GenerateText(ctx, buildChapterPrompt(courseName, chapter))
	if err != nil {
		return nil, apierr.Generation(fmt.Errorf("chapter content generation for %q: %w", chapter.ChapterName, err))
	}
	content, err := parseChapterContent(raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content.Title) == "" {
		content.Title = chapter.ChapterName
	}
	return content, nil
}

func parseChapterContent(raw string) (*types.ChapterContent, error) {
	cleaned := stripJSONFence(raw)

	var content types.ChapterContent
	if err := json.Unmarshal([]byte(cleaned), &content); err == nil && len(content.Sections) > 0 {
		return validateChapterContent(raw, &content)
	}

	// Some completions come back as a bare section array despite the
	// requested envelope.
	var sections []types.ChapterSection
	if err := json.Unmarshal([]byte(cleaned), &sections); err != nil {
		return nil, apierr.Malformed(raw, fmt.Errorf("decode chapter content: %w", err))
	}
	return validateChapterContent(raw, &types.ChapterContent{Sections: sections})
}

func validateChapterContent(raw string, content *types.ChapterContent) (*types.ChapterContent, error) {
	if len(content.Sections) == 0 {
		return nil, apierr.Malformed(raw, fmt.Errorf("chapter content has no sections"))
	}
	for i, sec := range content.Sections {
		if strings.TrimSpace(sec.Title) == "" && strings.TrimSpace(sec.Explanation) == "" {
			return nil, apierr.Malformed(raw, fmt.Errorf("chapter content section %d is empty", i))
		}
	}
	return content, nil
}
