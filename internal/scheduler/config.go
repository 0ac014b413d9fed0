package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/identity/internal/config"
)

const (
	JobPurgeCodes    = "purge_codes"
	JobPurgeSessions = "purge_sessions"
)

// Config controls scheduler intervals and retention.
type Config struct {
	RunInterval      time.Duration
	JobTimeout       time.Duration
	SessionRetention time.Duration
	EnabledJobs      []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:      time.Minute,
		JobTimeout:       30 * time.Second,
		SessionRetention: 24 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:      cfg.Scheduler.RunInterval,
		JobTimeout:       cfg.Scheduler.JobTimeout,
		SessionRetention: cfg.Scheduler.SessionRetention,
		EnabledJobs:      cfg.Scheduler.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.SessionRetention < 0 {
		c.SessionRetention = defaults.SessionRetention
	}
	jobs := make([]string, 0, len(c.EnabledJobs))
	for _, job := range c.EnabledJobs {
		if job = strings.TrimSpace(job); job != "" {
			jobs = append(jobs, job)
		}
	}
	c.EnabledJobs = jobs
	return c
}
