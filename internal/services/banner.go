package services

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image/color"
	"os"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/coursepilot/backend/internal/clients/gcs"
	types "github.com/coursepilot/backend/internal/domain"
	"github.com/coursepilot/backend/internal/platform/logger"
)

// BannerService draws a course banner and uploads it. Banner generation is
// cosmetic; callers fall back to the placeholder on any error.
type BannerService interface {
	CreateCourseBanner(ctx context.Context, course *types.Course) (string, error)
}

type bannerService struct {
	log           *logger.Logger
	bucketService gcs.BucketService

	titleFace    font.Face
	subtitleFace font.Face
}

var bannerPalette = []color.NRGBA{
	{R: 0x1E, G: 0x3A, B: 0x8A, A: 0xFF},
	{R: 0x0F, G: 0x76, B: 0x6E, A: 0xFF},
	{R: 0x7C, G: 0x2D, B: 0x92, A: 0xFF},
	{R: 0x9A, G: 0x34, B: 0x12, A: 0xFF},
	{R: 0x37, G: 0x41, B: 0x51, A: 0xFF},
	{R: 0x16, G: 0x65, B: 0x34, A: 0xFF},
}

// NewBannerService accepts a nil bucketService; CreateCourseBanner then always
// returns the placeholder.
func NewBannerService(log *logger.Logger, bucketService gcs.BucketService) (BannerService, error) {
	serviceLog := log.With("service", "BannerService")

	svc := &bannerService{
		log:           serviceLog,
		bucketService: bucketService,
	}

	fontPath := strings.TrimSpace(os.Getenv("BANNER_FONT"))
	if fontPath != "" {
		titleFace, err := loadBannerFace(fontPath, 64)
		if err != nil {
			return nil, fmt.Errorf("could not load banner font: %w", err)
		}
		subtitleFace, err := loadBannerFace(fontPath, 32)
		if err != nil {
			return nil, fmt.Errorf("could not load banner font: %w", err)
		}
		svc.titleFace = titleFace
		svc.subtitleFace = subtitleFace
	} else {
		serviceLog.Warn("BANNER_FONT not set; course banners fall back to the placeholder")
	}

	return svc, nil
}

func (s *bannerService) CreateCourseBanner(ctx context.Context, course *types.Course) (string, error) {
	if s.bucketService == nil || s.titleFace == nil {
		return types.DefaultBanner, nil
	}

	buf, err := s.renderBanner(course)
	if err != nil {
		return types.DefaultBanner, err
	}

	key := fmt.Sprintf("course_banner/%s/%d.png", course.ID.String(), time.Now().UnixNano())
	if err := s.bucketService.UploadFile(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
		return types.DefaultBanner, fmt.Errorf("failed to upload course banner: %w", err)
	}
	return s.bucketService.GetPublicURL(key), nil
}

func (s *bannerService) renderBanner(course *types.Course) (bytes.Buffer, error) {
	const width, height = 1200, 630

	dc := gg.NewContext(width, height)

	base := bannerColorFor(course.Category)
	dc.SetColor(base)
	dc.DrawRectangle(0, 0, width, height)
	dc.Fill()

	// Offset circle in the corner breaks up the flat fill.
	dc.SetRGBA(1, 1, 1, 0.08)
	dc.DrawCircle(width-120, 120, 280)
	dc.Fill()

	dc.SetColor(color.White)
	dc.SetFontFace(s.titleFace)
	dc.DrawStringWrapped(course.Name, 80, float64(height)/2-60, 0, 0.5, width-220, 1.3, gg.AlignLeft)

	subtitle := strings.TrimSpace(course.Category)
	if course.Level != "" {
		if subtitle != "" {
			subtitle += " / "
		}
		subtitle += course.Level
	}
	if subtitle != "" {
		dc.SetRGBA(1, 1, 1, 0.75)
		dc.SetFontFace(s.subtitleFace)
		dc.DrawString(strings.ToUpper(subtitle), 80, height-90)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

func bannerColorFor(category string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(category))))
	return bannerPalette[int(h.Sum32())%len(bannerPalette)]
}

func loadBannerFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
