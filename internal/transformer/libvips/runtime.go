package libvips

import (
	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"
)

// RuntimeConfig sizes the libvips runtime.
type RuntimeConfig struct {
	MaxCacheMB  int
	Concurrency int
}

// Startup initializes libvips and routes its warnings and errors to log.
// Call Shutdown when done.
func Startup(cfg RuntimeConfig, log *zap.Logger) {
	vipsConfig := &vips.Config{
		ConcurrencyLevel: cfg.Concurrency,
		MaxCacheMem:      cfg.MaxCacheMB * 1024 * 1024, // Convert MB to bytes
		MaxCacheFiles:    0,                            // Derived images are cached by the store
		MaxCacheSize:     0,
		ReportLeaks:      false,
		CacheTrace:       false,
		VectorEnabled:    true,
	}

	// Map vips log levels to zap levels
	vips.SetLogging(func(domain string, level vips.LogLevel, message string) {
		if level >= vips.LogLevelError {
			log.Error("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		} else if level >= vips.LogLevelWarning {
			log.Warn("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		}
	}, vips.LogLevelError)

	vips.Startup(vipsConfig)

	log.Info("VIPS initialized",
		zap.Int("max_cache_mb", cfg.MaxCacheMB),
		zap.Int("concurrency", cfg.Concurrency),
	)
}

// Shutdown releases libvips.
func Shutdown() {
	vips.Shutdown()
}
