package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeArchive()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = defaultArchiveDir
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeArchive() {
	c.Archive.Compression = strings.ToLower(strings.TrimSpace(c.Archive.Compression))
	if c.Archive.Compression == "" {
		c.Archive.Compression = defaultArchiveCompression
	}
	c.Archive.S3Bucket = strings.TrimSpace(c.Archive.S3Bucket)
	c.Archive.S3Prefix = strings.Trim(strings.TrimSpace(c.Archive.S3Prefix), "/")
	c.Archive.S3Region = strings.TrimSpace(c.Archive.S3Region)
	if c.Archive.S3Region == "" {
		c.Archive.S3Region = defaultS3Region
	}
	if c.Archive.S3AccessKey == "" {
		if value, ok := os.LookupEnv("TMENGINE_S3_ACCESS_KEY"); ok {
			c.Archive.S3AccessKey = strings.TrimSpace(value)
		}
	}
	if c.Archive.S3SecretKey == "" {
		if value, ok := os.LookupEnv("TMENGINE_S3_SECRET_KEY"); ok {
			c.Archive.S3SecretKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("TMENGINE_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.FileLevel = strings.ToLower(strings.TrimSpace(c.Logging.FileLevel))
	if c.Logging.FileLevel == "" {
		c.Logging.FileLevel = c.Logging.Level
	}
}
