package domain

import (
	"github.com/coursepilot/backend/internal/domain/auth"
	"github.com/coursepilot/backend/internal/domain/jobs"
	"github.com/coursepilot/backend/internal/domain/learning"
	"github.com/coursepilot/backend/internal/domain/user"
)

type (
	User      = user.User
	UserToken = auth.UserToken

	Course         = learning.Course
	Chapter        = learning.Chapter
	CourseLayout   = learning.CourseLayout
	LayoutChapter  = learning.LayoutChapter
	ChapterContent = learning.ChapterContent
	ChapterSection = learning.ChapterSection

	GenerationRun = jobs.GenerationRun
)

const (
	IncludeVideoYes = learning.IncludeVideoYes
	IncludeVideoNo  = learning.IncludeVideoNo
	DefaultBanner   = learning.DefaultBanner

	RunStatusQueued     = jobs.RunStatusQueued
	RunStatusRunning    = jobs.RunStatusRunning
	RunStatusSucceeded  = jobs.RunStatusSucceeded
	RunStatusFailed     = jobs.RunStatusFailed
	RunStatusSuperseded = jobs.RunStatusSuperseded

	RunStageCleanup  = jobs.RunStageCleanup
	RunStageChapters = jobs.RunStageChapters
	RunStagePublish  = jobs.RunStagePublish
	RunStageDone     = jobs.RunStageDone
)
