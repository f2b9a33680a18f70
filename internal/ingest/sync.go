package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"zapzap/internal/config"
	"zapzap/internal/logging"
	"zapzap/internal/records"
	"zapzap/internal/services"
	"zapzap/internal/services/heygen"
)

const defaultVideoType = "TRANSLATED"

// Source is the metadata API the syncer reads from.
type Source interface {
	ListVideos(ctx context.Context, token string) (heygen.Page, error)
	GetTranslation(ctx context.Context, videoID string) (heygen.Translation, error)
}

// SourceFactory returns the source to use for a sync; apiKey overrides the
// configured credential when non-empty.
type SourceFactory func(apiKey string) Source

// Options controls a single sync run.
type Options struct {
	// Cutoff skips videos created before this unix timestamp. Zero keeps all.
	Cutoff int64
	// APIKey overrides the configured HeyGen key for this run.
	APIKey string
}

// Syncer imports source videos.
type Syncer struct {
	store     *records.Store
	source    SourceFactory
	videoType string
	language  string
	logger    *slog.Logger
}

// NewSyncer constructs a syncer around an explicit source factory.
func NewSyncer(store *records.Store, source SourceFactory, videoType string, logger *slog.Logger) *Syncer {
	videoType = strings.TrimSpace(videoType)
	if videoType == "" {
		videoType = defaultVideoType
	}
	return &Syncer{
		store:     store,
		source:    source,
		videoType: videoType,
		language:  "Unknown",
		logger:    logging.NewComponentLogger(logger, "ingest"),
	}
}

// NewFromConfig builds a syncer backed by the HeyGen client.
func NewFromConfig(cfg *config.Config, store *records.Store, logger *slog.Logger) *Syncer {
	client := heygen.NewClient(heygen.Config{
		APIKey:         cfg.HeyGen.APIKey,
		BaseURL:        cfg.HeyGen.BaseURL,
		TimeoutSeconds: cfg.HeyGen.TimeoutSeconds,
		PageSize:       cfg.HeyGen.PageSize,
	})
	syncer := NewSyncer(store, func(apiKey string) Source {
		return client.WithAPIKey(apiKey)
	}, cfg.HeyGen.VideoType, logger)
	if fallback := strings.TrimSpace(cfg.Dropbox.LanguageFallback); fallback != "" {
		syncer.language = fallback
	}
	return syncer
}

// Sync imports every matching video and returns how many were upserted.
// Translation lookups that fail are logged and skipped; list and store
// failures abort the run.
func (s *Syncer) Sync(ctx context.Context, opts Options) (int, error) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, s.logger)
	source := s.source(opts.APIKey)

	imported, skipped := 0, 0
	token := ""
	for {
		page, err := source.ListVideos(ctx, token)
		if err != nil {
			return imported, fmt.Errorf("sync: %w", err)
		}
		for _, video := range page.Videos {
			if !s.accept(video, opts.Cutoff) {
				continue
			}
			ok, err := s.importVideo(ctx, logger, source, video)
			if err != nil {
				return imported, fmt.Errorf("sync: %w", err)
			}
			if ok {
				imported++
			} else {
				skipped++
			}
		}
		if page.NextToken == "" || page.NextToken == token {
			break
		}
		token = page.NextToken
	}

	logger.Info("sync complete",
		logging.String(logging.FieldEventType, "sync_complete"),
		logging.Int("imported", imported),
		logging.Int("skipped", skipped),
		logging.Int64("cutoff", opts.Cutoff),
	)
	return imported, nil
}

func (s *Syncer) accept(video heygen.Video, cutoff int64) bool {
	if strings.TrimSpace(video.ID) == "" || video.Type != s.videoType {
		return false
	}
	return cutoff == 0 || video.CreatedAt >= cutoff
}

func (s *Syncer) importVideo(ctx context.Context, logger *slog.Logger, source Source, video heygen.Video) (bool, error) {
	tr, err := source.GetTranslation(ctx, video.ID)
	if err != nil {
		logging.WarnWithContext(logger, "translation lookup failed", "translation_lookup_failed",
			logging.String(logging.FieldVideoID, video.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "video imported on next sync"),
		)
		return false, nil
	}
	language := tr.OutputLanguage
	if language == "" {
		language = s.language
	}
	err = s.store.UpsertSource(ctx, records.SourceVideo{
		ID:        video.ID,
		Title:     video.Title,
		CreatedAt: video.CreatedAt,
		Status:    video.Status,
		Language:  language,
		SourceURL: tr.URL,
	})
	if err != nil {
		return false, err
	}
	logger.Debug("video imported",
		logging.String(logging.FieldVideoID, video.ID),
		logging.String("language", language),
	)
	return true, nil
}
