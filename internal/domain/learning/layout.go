package learning

// CourseLayout is the layout document produced by the model. The PascalCase
// JSON keys are part of the stored contract; clients read them verbatim.
type CourseLayout struct {
	CourseName  string          `json:"CourseName"`
	Description string          `json:"Description"`
	Category    string          `json:"Category,omitempty"`
	Level       string          `json:"Level,omitempty"`
	Duration    string          `json:"Duration,omitempty"`
	Chapters    []LayoutChapter `json:"Chapters"`
}

type LayoutChapter struct {
	ChapterName string `json:"ChapterName"`
	About       string `json:"About"`
	Duration    string `json:"Duration"`
}

// ChapterContent is the per-chapter document. "chapters" here are the
// subtopic sections of one course chapter.
type ChapterContent struct {
	Title    string           `json:"title"`
	Sections []ChapterSection `json:"chapters"`
}

type ChapterSection struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	CodeExample string `json:"codeExample"`
}
