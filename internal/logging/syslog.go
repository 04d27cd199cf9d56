// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"log/syslog"
)

// SyslogConfig controls forwarding of log output to a syslog collector.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // "udp" or "tcp"
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns syslog forwarding disabled, with the
// conventional port/protocol/tag/facility defaults applied.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "adamfw",
		Facility: 1,
	}
}

// NewSyslogWriter dials a syslog collector per cfg, applying defaults for
// any zero-valued Port/Protocol/Tag. Host is required when Enabled.
func NewSyslogWriter(cfg SyslogConfig) (*syslog.Writer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog forwarding enabled but Host is empty")
	}

	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "adamfw"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return syslog.Dial(cfg.Protocol, addr, syslog.Priority(cfg.Facility)<<3|syslog.LOG_INFO, cfg.Tag)
}
