// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesFixupDefaults(t *testing.T) {
	path := writeTempConfig(t, `
serial:
  device: /dev/ttyUSB0
  baud_rate: 9600
  parity: n
master:
  strict_unit_id: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Serial.Parity != "N" {
		t.Fatalf("Parity = %q, want uppercased N", cfg.Serial.Parity)
	}
	if cfg.Serial.DataBits != 8 || cfg.Serial.StopBits != 1 {
		t.Fatalf("DataBits/StopBits = %d/%d, want 8/1 defaults", cfg.Serial.DataBits, cfg.Serial.StopBits)
	}
	if cfg.Serial.IdleTimeout != 2*time.Millisecond {
		t.Fatalf("IdleTimeout = %v, want 2ms default", cfg.Serial.IdleTimeout)
	}
	if cfg.Master.ResponseTimeout != 200*time.Millisecond {
		t.Fatalf("ResponseTimeout = %v, want 200ms default", cfg.Master.ResponseTimeout)
	}
	if cfg.Master.LockTimeout != time.Second {
		t.Fatalf("LockTimeout = %v, want 1s default", cfg.Master.LockTimeout)
	}
	if !cfg.Master.StrictUnitID {
		t.Fatal("expected strict_unit_id to survive unmarshal")
	}
	if cfg.Slave.PollTimeout != time.Second {
		t.Fatalf("PollTimeout = %v, want 1s default", cfg.Slave.PollTimeout)
	}
}

func TestLoadExplicitValuesAreNotOverwritten(t *testing.T) {
	path := writeTempConfig(t, `
serial:
  idle_timeout: 5ms
master:
  response_timeout: 500ms
  lock_timeout: 2s
slave:
  unit_id: 17
  poll_timeout: 250ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Serial.IdleTimeout != 5*time.Millisecond {
		t.Fatalf("IdleTimeout = %v, want 5ms", cfg.Serial.IdleTimeout)
	}
	if cfg.Master.ResponseTimeout != 500*time.Millisecond {
		t.Fatalf("ResponseTimeout = %v, want 500ms", cfg.Master.ResponseTimeout)
	}
	if cfg.Slave.UnitID != 17 {
		t.Fatalf("UnitID = %d, want 17", cfg.Slave.UnitID)
	}
	if cfg.Slave.PollTimeout != 250*time.Millisecond {
		t.Fatalf("PollTimeout = %v, want 250ms", cfg.Slave.PollTimeout)
	}
}
