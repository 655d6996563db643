// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package reassembly

import "time"

const (
	defaultMaxBufferTime   = 24 * time.Hour
	defaultHistoryTTL      = 24 * time.Hour
	defaultCleanupInterval = 5 * time.Minute
	defaultLockTimeout     = 100 * time.Millisecond
)

// Config of a Buffer. Zero values are replaced by their defaults.
type Config struct {
	// MaxBufferTime until an incomplete payload is dropped.
	MaxBufferTime time.Duration

	// HistoryTTL until a seen fragment is forgotten.
	HistoryTTL time.Duration

	// CleanupInterval between two evictions of expired entries.
	CleanupInterval time.Duration

	// LockTimeout is the maximum wait for the Buffer's locks.
	LockTimeout time.Duration
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() Config {
	return Config{
		MaxBufferTime:   defaultMaxBufferTime,
		HistoryTTL:      defaultHistoryTTL,
		CleanupInterval: defaultCleanupInterval,
		LockTimeout:     defaultLockTimeout,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()

	for _, f := range []struct {
		value *time.Duration
		def   time.Duration
	}{
		{&c.MaxBufferTime, def.MaxBufferTime},
		{&c.HistoryTTL, def.HistoryTTL},
		{&c.CleanupInterval, def.CleanupInterval},
		{&c.LockTimeout, def.LockTimeout},
	} {
		if *f.value <= 0 {
			*f.value = f.def
		}
	}
	return c
}
