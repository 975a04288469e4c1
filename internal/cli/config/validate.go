package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	logFormats  = []string{"text", "json"}
	synchronous = []string{"OFF", "NORMAL", "FULL", "EXTRA"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		errs = append(errs, fmt.Errorf("unknown log format %q (expected one of %s)", c.LogFormat, strings.Join(logFormats, ", ")))
	}
	if c.Fetch.ChannelCapacity < 1 {
		errs = append(errs, fmt.Errorf("fetch.channel_capacity must be at least 1, got %d", c.Fetch.ChannelCapacity))
	}
	if c.API.Password != "" && c.API.Username == "" {
		errs = append(errs, errors.New("api.password is set but api.username is not"))
	}
	if c.API.PageSize < 0 {
		errs = append(errs, fmt.Errorf("api.page_size must not be negative, got %d", c.API.PageSize))
	}
	if !slices.Contains(synchronous, strings.ToUpper(c.Tuning.Synchronous)) {
		errs = append(errs, fmt.Errorf("unknown tuning.synchronous %q", c.Tuning.Synchronous))
	}
	return errors.Join(errs...)
}
