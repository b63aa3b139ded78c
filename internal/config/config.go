package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Port                  int
	DataDir               string
	WarmupPresets         []string
	WarmupWorkers         int
	CacheType             string
	CacheMemoryEntries    int
	CacheFileDir          string
	VipsMaxCacheMB        int
	VipsConcurrency       int
	EncodeQuality         int
	LogLevel              string
	AllowedOrigin         string
	MimeTypesFile         string
	DedupeMaterialization bool
}

func Load() *Config {
	dataDir := getEnv("DATA_DIR", "/data")
	cacheType := getEnv("CACHE", "memory")

	cfg := &Config{
		Port:                  getEnvInt("PORT", 8080),
		DataDir:               dataDir,
		WarmupPresets:         getEnvList("WARMUP_PRESETS"),
		WarmupWorkers:         getEnvInt("WARMUP_WORKERS", 1),
		CacheType:             cacheType,
		CacheMemoryEntries:    getEnvInt("CACHE_MEMORY_ENTRIES", 2000),
		CacheFileDir:          getEnv("CACHE_FILE_DIR", filepath.Join(dataDir, ".cache")),
		VipsMaxCacheMB:        getEnvInt("VIPS_MAX_CACHE_MB", 256),
		VipsConcurrency:       getEnvInt("VIPS_CONCURRENCY", 1),
		EncodeQuality:         getEnvInt("ENCODE_QUALITY", 82),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", ""),
		MimeTypesFile:         getEnv("MIME_TYPES_FILE", ""),
		DedupeMaterialization: getEnvBool("DEDUPE_MATERIALIZATION", true),
	}

	return cfg
}

// CacheDirInDataDir returns the cache directory relative to the data
// directory, or false when the cache lives elsewhere.
func (c *Config) CacheDirInDataDir() (string, bool) {
	if c.CacheType != "file" {
		return "", false
	}
	rel, err := filepath.Rel(c.DataDir, c.CacheFileDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank items.
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
