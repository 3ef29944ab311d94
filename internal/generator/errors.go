package generator

import (
	"errors"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// Generation errors.
var (
	// ErrNoRun is returned when an operation needs an in-flight run and there is none.
	ErrNoRun = errors.New("no generation run in progress")
	// ErrRunLocked is returned when another invocation holds the run lock.
	ErrRunLocked = errors.New("another generation invocation is running")
	// ErrStoreUnavailable wraps content and menu store failures. The invocation is
	// aborted with progress saved, so the next invocation retries the same page.
	ErrStoreUnavailable = errors.New("content store unavailable")
	// ErrFlushFailed wraps delta store failures. Buffers are kept for the next invocation.
	ErrFlushFailed = errors.New("sitemap flush failed")
	// ErrStateCorrupt is returned when persisted run state cannot be decoded.
	ErrStateCorrupt = domain.ErrStateCorrupt
	// ErrSitemapNotFound is returned when a context has no published sitemap.
	ErrSitemapNotFound = errors.New("sitemap not found")
)
