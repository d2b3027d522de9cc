// Package modkit holds the shared wiring types modules are built from
package modkit

import (
	"murmur/internal/modkit/repokit"
	"murmur/internal/platform/cache"
	"murmur/internal/platform/config"
	"murmur/internal/platform/logger"
	"murmur/internal/platform/store"
)

// Deps is what main hands to every module
// PG is required by modules that persist, CH and Cache may be nil
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	PG    repokit.TxRunner
	CH    store.Archive
	Cache cache.Cache
}
