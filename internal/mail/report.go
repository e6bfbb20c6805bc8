package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/lepinkainen/registry-preview/pkg/linkpreview"
)

// CacheReportData feeds the cache_report template.
type CacheReportData struct {
	GeneratedAt time.Time
	Stats       *linkpreview.CacheStats
	Recent      []*linkpreview.Record
}

// SendCacheReport mails a summary of the preview cache.
func (s *Service) SendCacheReport(ctx context.Context, to string, data CacheReportData) error {
	subject := fmt.Sprintf("Link preview cache: %d cached, %d valid", data.Stats.TotalCached, data.Stats.ValidCached)
	return s.SendTemplatedEmail(ctx, to, subject, "cache_report", data)
}
