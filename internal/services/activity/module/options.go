package module

import (
	"time"

	"murmur/internal/platform/config"
	"murmur/internal/services/activity/service"
)

// Options controls the activity service and its bootstrap
type Options struct {
	Service service.Config

	// AutoMigrate applies the Postgres schema at startup
	AutoMigrate bool
}

// FromConfig reads ACTIVITY_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	ac := cfg.Prefix("ACTIVITY_")
	return Options{
		Service: service.Config{
			ErrorMode:       ac.MayEnum("ERROR_MODE", service.ErrorModeStructured, service.ErrorModeStructured, service.ErrorModeBool),
			FeedTTL:         ac.MayDuration("FEED_TTL", time.Hour),
			LatestTTL:       ac.MayDuration("LATEST_TTL", time.Minute),
			ItemTTL:         ac.MayDuration("ITEM_TTL", time.Hour),
			TreeTTL:         ac.MayDuration("TREE_TTL", time.Hour),
			MaxPerPage:      ac.MayInt("MAX_PER_PAGE", 100),
			ContentRequired: ac.MayCSV("CONTENT_REQUIRED_TYPES", nil),
		},
		AutoMigrate: ac.MayBool("AUTO_MIGRATE", false),
	}
}
