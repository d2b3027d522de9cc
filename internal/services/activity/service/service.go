// Package service implements activity listings, materialization, comment trees and mutations
package service

import (
	"context"
	"strconv"
	"time"

	"murmur/internal/core/query"
	"murmur/internal/modkit/repokit"
	"murmur/internal/platform/cache"
	"murmur/internal/platform/logger"
	"murmur/internal/services/activity/domain"
)

// Cache groups beyond the two listing groups
const (
	GroupItem = "activity_item"
	GroupTree = "activity_comments"
)

// Error modes for Save and the other writes
const (
	ErrorModeStructured = "structured"
	ErrorModeBool       = "bool"
)

// Config tunes the service
type Config struct {
	ErrorMode string

	FeedTTL   time.Duration
	LatestTTL time.Duration
	ItemTTL   time.Duration
	TreeTTL   time.Duration

	// MaxPerPage caps per_page whatever the query asks for
	MaxPerPage int
	// ContentRequired lists types that cannot be saved without content
	ContentRequired []string
}

// Deps are the collaborators of a Service, only DB and Binder are required
type Deps struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.Store]

	Cache     cache.Cache
	Scopes    query.ScopeResolver
	Users     domain.UserDirectory
	FullNames domain.FullNameSource
	Prefetch  []domain.Prefetcher
	Actions   *Actions
	Visible   domain.VisibilityFunc
	Archive   domain.Archiver
}

// Service implements domain.ReadPort, domain.WritePort and domain.Rebuilder
type Service struct {
	db       repokit.TxRunner
	bind     repokit.Binder[domain.Store]
	cache    cache.Cache
	composer query.Composer
	users    domain.UserDirectory
	names    domain.FullNameSource
	prefetch []domain.Prefetcher
	actions  *Actions
	visible  domain.VisibilityFunc
	archive  domain.Archiver

	cfg      Config
	required map[string]struct{}
	now      func() time.Time
}

// New constructs a Service, a nil cache falls back to a process local one
func New(d Deps, cfg Config) *Service {
	if d.DB == nil || d.Binder == nil {
		panic("activity service: DB and Binder are required")
	}
	if cfg.ErrorMode != ErrorModeBool {
		cfg.ErrorMode = ErrorModeStructured
	}
	if cfg.FeedTTL <= 0 {
		cfg.FeedTTL = time.Hour
	}
	if cfg.LatestTTL <= 0 {
		cfg.LatestTTL = time.Minute
	}
	if cfg.ItemTTL <= 0 {
		cfg.ItemTTL = time.Hour
	}
	if cfg.TreeTTL <= 0 {
		cfg.TreeTTL = time.Hour
	}
	if cfg.MaxPerPage <= 0 {
		cfg.MaxPerPage = 100
	}
	if cfg.ContentRequired == nil {
		cfg.ContentRequired = []string{domain.TypeUpdate, domain.TypeComment}
	}
	if d.Cache == nil {
		d.Cache = cache.Observed(cache.NewMemory())
	}
	if d.Actions == nil {
		d.Actions = NewActions()
	}

	req := make(map[string]struct{}, len(cfg.ContentRequired))
	for _, t := range cfg.ContentRequired {
		req[t] = struct{}{}
	}

	return &Service{
		db:       d.DB,
		bind:     d.Binder,
		cache:    d.Cache,
		composer: query.NewComposer(d.Scopes),
		users:    d.Users,
		names:    d.FullNames,
		prefetch: d.Prefetch,
		actions:  d.Actions,
		visible:  d.Visible,
		archive:  d.Archive,
		cfg:      cfg,
		required: req,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// store binds the record store to the pool
func (s *Service) store() domain.Store { return repokit.MustBind(s.bind, s.db) }

func (s *Service) ttl(group string) time.Duration {
	switch group {
	case query.GroupFeed:
		return s.cfg.FeedTTL
	case query.GroupLatest:
		return s.cfg.LatestTTL
	case GroupTree:
		return s.cfg.TreeTTL
	default:
		return s.cfg.ItemTTL
	}
}

func itemKey(id int64) string { return strconv.FormatInt(id, 10) }

// treeKey names one cached forest under the tree's epoch
func treeKey(top int64, spam query.SpamPolicy, epoch int64) string {
	return strconv.FormatInt(top, 10) + ":" + strconv.FormatInt(epoch, 10) + ":" + string(spam.Normalize())
}

// treeEpochGroup holds the epoch of one tree, bumped by every write that reshapes it
func treeEpochGroup(top int64) string { return GroupTree + ":" + strconv.FormatInt(top, 10) }

// logc returns the request logger tagged with the service component
func (s *Service) logc(ctx context.Context) *logger.Logger {
	l := logger.C(ctx).With().Str("component", "activity").Logger()
	return &l
}
