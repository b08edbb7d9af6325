package config

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3LoaderConfig holds configuration for S3-backed document loaders, used
// for the hosted pricing catalog.
type S3LoaderConfig struct {
	S3Client     *s3.Client
	Bucket       string
	Key          string
	CacheTTL     time.Duration // How often to check for updates (default: 5 min)
	ErrorBackoff time.Duration // How long to wait after an error (default: 1 min)
	Logger       *slog.Logger
}

// S3LoadResult contains the result of an S3 document fetch.
type S3LoadResult struct {
	Data       []byte    // Raw JSON data from S3
	Etag       string    // New ETag
	FetchTime  time.Time // When the data was fetched
	NotChanged bool      // True if data hasn't changed (304)
}

// S3Loader fetches a JSON document from S3 with ETag caching, so the hot
// path never blocks on S3 and unchanged documents cost a conditional GET.
type S3Loader struct {
	s3Client *s3.Client
	bucket   string
	key      string

	mu           sync.RWMutex
	etag         string
	lastFetch    time.Time
	lastCheck    time.Time
	lastError    time.Time
	initialized  bool
	fetching     bool // true while a fetch is in progress
	cacheTTL     time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger
}

// NewS3Loader creates a new S3 loader with the given config.
func NewS3Loader(cfg S3LoaderConfig) *S3Loader {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = 1 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &S3Loader{
		s3Client:     cfg.S3Client,
		bucket:       cfg.Bucket,
		key:          cfg.Key,
		cacheTTL:     cfg.CacheTTL,
		errorBackoff: cfg.ErrorBackoff,
		logger:       cfg.Logger,
	}
}

// IsEnabled returns true if S3 is configured.
func (l *S3Loader) IsEnabled() bool {
	return l.s3Client != nil
}

// NeedsRefresh returns true if the document should be refreshed.
func (l *S3Loader) NeedsRefresh() bool {
	l.mu.RLock()
	needsRefresh := !l.initialized || time.Since(l.lastCheck) > l.cacheTTL
	inErrorBackoff := !l.lastError.IsZero() && time.Since(l.lastError) < l.errorBackoff
	alreadyFetching := l.fetching
	l.mu.RUnlock()

	return needsRefresh && !inErrorBackoff && !alreadyFetching
}

// Fetch retrieves the document from S3 with ETag caching.
// Returns (result, nil) on success, (nil, nil) if not modified or not
// configured, (nil, err) on error.
func (l *S3Loader) Fetch(ctx context.Context) (*S3LoadResult, error) {
	if l.s3Client == nil {
		return nil, nil
	}

	l.mu.Lock()
	// Double-check after acquiring the lock; another goroutine may already
	// be fetching or may have refreshed the cache.
	if l.fetching || (l.initialized && time.Since(l.lastCheck) < l.cacheTTL) {
		l.mu.Unlock()
		return nil, nil
	}
	l.fetching = true
	currentEtag := l.etag
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.fetching = false
		l.mu.Unlock()
	}()

	input := &s3.GetObjectInput{
		Bucket: &l.bucket,
		Key:    &l.key,
	}
	if currentEtag != "" {
		// Add quotes for HTTP If-None-Match header
		quotedEtag := "\"" + currentEtag + "\""
		input.IfNoneMatch = &quotedEtag
	}

	resp, err := l.s3Client.GetObject(ctx, input)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			l.mu.Lock()
			wasInitialized := l.initialized
			l.initialized = true
			l.lastCheck = time.Now()
			l.lastError = time.Now()
			l.mu.Unlock()
			// Only log on first check, not every poll
			if !wasInitialized {
				l.logger.Debug("S3 document not found (using defaults)",
					"bucket", l.bucket,
					"key", l.key,
				)
			}
			return nil, nil
		}

		var notModified interface{ ErrorCode() string }
		if errors.As(err, &notModified) && notModified.ErrorCode() == "NotModified" {
			l.mu.Lock()
			l.lastCheck = time.Now()
			l.mu.Unlock()
			return &S3LoadResult{NotChanged: true}, nil
		}

		l.mu.Lock()
		l.lastError = time.Now()
		l.initialized = true
		l.mu.Unlock()
		l.logger.Error("failed to fetch S3 document",
			"error", err,
			"bucket", l.bucket,
			"key", l.key,
			"next_retry", time.Now().Add(l.errorBackoff).Format(time.RFC3339),
		)
		return nil, err
	}
	defer resp.Body.Close()

	// Decode as raw JSON so a syntactically broken document never replaces
	// a good cached one.
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		l.mu.Lock()
		l.lastError = time.Now()
		l.initialized = true
		l.mu.Unlock()
		l.logger.Error("failed to parse S3 document JSON", "error", err)
		return nil, err
	}

	now := time.Now()
	newEtag := ""
	if resp.ETag != nil {
		newEtag = strings.Trim(*resp.ETag, "\"")
	}

	l.mu.Lock()
	l.initialized = true
	l.lastFetch = now
	l.lastCheck = now
	l.lastError = time.Time{}
	l.etag = newEtag
	l.mu.Unlock()

	return &S3LoadResult{
		Data:      raw,
		Etag:      newEtag,
		FetchTime: now,
	}, nil
}
