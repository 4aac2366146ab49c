// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package config loads the serial, master, slave and logging settings
// shared by the cmd/ binaries from a YAML file and environment variables,
// via viper. Command-line flags are not consulted here; each binary parses
// its own.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for either binary; a master
// process reads Master and a slave process reads Slave, but both always
// carry Serial and Log.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Serial SerialConfig `mapstructure:"serial"`
	Master MasterConfig `mapstructure:"master"`
	Slave  SlaveConfig  `mapstructure:"slave"`
}

// LogConfig controls the slog handler cmd/ sets up.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // empty means stderr
}

// SerialConfig describes the UART and, optionally, a software-toggled
// DE/RE direction pin for half-duplex RS-485.
type SerialConfig struct {
	Device   string `mapstructure:"device"`
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	Parity   string `mapstructure:"parity"`
	StopBits int    `mapstructure:"stop_bits"`

	// IdleTimeout is the Modbus t3.5 inter-character gap that ends a
	// frame; the field name follows grid-x/serial's Timeout for the
	// underlying read-call bound.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// UseHardwareRS485, DEREPin and DEREActiveHigh describe the direction
	// control mode: the UART peripheral itself driving direction, or a
	// software-toggled DE/RE pin. The cmd/ binaries do not read these three
	// fields; they always use rtu.HardwareDirection(), and no software
	// toggling is set up from DEREPin.
	UseHardwareRS485 bool          `mapstructure:"use_hardware_rs485"`
	DEREPin          string        `mapstructure:"de_re_pin"`
	DEREActiveHigh   bool          `mapstructure:"de_re_active_high"`
	TurnaroundDelay  time.Duration `mapstructure:"turnaround_delay"`
}

// MasterConfig governs a master.Engine.
type MasterConfig struct {
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	StrictUnitID    bool          `mapstructure:"strict_unit_id"`
	StrictFunction  bool          `mapstructure:"strict_function"`
}

// SlaveConfig governs a slave.Engine.
type SlaveConfig struct {
	UnitID      byte          `mapstructure:"unit_id"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// Load reads configuration from configFile (or the conventional search
// path if empty), applies defaults, and returns the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbus-rtu/")
		v.AddConfigPath("$HOME/.modbus-rtu")
		v.AddConfigPath(".")
	}

	v.SetDefault("log.level", "info")
	v.SetEnvPrefix("MODBUS_RTU")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	fixupSerial(&cfg.Serial)
	fixupMaster(&cfg.Master)
	fixupSlave(&cfg.Slave)

	return &cfg, nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.DataBits == 0 {
		s.DataBits = 8
	}
	if s.StopBits == 0 {
		s.StopBits = 1
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = 2 * time.Millisecond
	}
}

func fixupMaster(m *MasterConfig) {
	if m.ResponseTimeout == 0 {
		m.ResponseTimeout = 200 * time.Millisecond
	}
	if m.LockTimeout == 0 {
		m.LockTimeout = time.Second
	}
}

func fixupSlave(s *SlaveConfig) {
	if s.PollTimeout == 0 {
		s.PollTimeout = time.Second
	}
}
