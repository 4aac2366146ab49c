// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command modbus-rtu-slave runs a Modbus RTU slave backed by an in-memory
// register store, answering whichever master is on the bus until
// interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ffutop/modbus-rtu-engine/internal/config"
	"github.com/ffutop/modbus-rtu-engine/internal/memstore"
	"github.com/ffutop/modbus-rtu-engine/slave"
	"github.com/ffutop/modbus-rtu-engine/transport/rtu"
	"github.com/grid-x/serial"
	flag "github.com/spf13/pflag"
)

func main() {
	configFile := flag.StringP("config", "c", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	if cfg.Slave.UnitID == 0 {
		fmt.Fprintln(os.Stderr, "slave.unit_id must be set to a non-zero unit id")
		os.Exit(1)
	}

	port := rtu.NewSerialPort(serial.Config{
		Address:  cfg.Serial.Device,
		BaudRate: cfg.Serial.BaudRate,
		DataBits: cfg.Serial.DataBits,
		Parity:   cfg.Serial.Parity,
		StopBits: cfg.Serial.StopBits,
	}, rtu.HardwareDirection())
	port.IdleTimeoutUS = int(cfg.Serial.IdleTimeout.Microseconds())
	port.TurnaroundUS = int(cfg.Serial.TurnaroundDelay.Microseconds())

	store := memstore.New()
	eng := slave.New(port, store, slave.Config{
		UnitID:      cfg.Slave.UnitID,
		PollTimeout: cfg.Slave.PollTimeout,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		slog.Error("modbus-rtu-slave: failed to start", "err", err)
		os.Exit(1)
	}
	slog.Info("modbus-rtu-slave: serving", "device", cfg.Serial.Device, "unit", cfg.Slave.UnitID)

	<-ctx.Done()
	slog.Info("modbus-rtu-slave: shutting down")
	_ = eng.Stop()
	_ = port.Close()
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
