package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"uartbridge/internal/transport"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "bridge: {}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Transport.Kind != "bridged" {
		t.Fatalf("kind=%q want bridged", cfg.Transport.Kind)
	}
	if cfg.Bus.Device != "/dev/i2c-1" {
		t.Fatalf("bus.device=%q", cfg.Bus.Device)
	}
	if cfg.Bridge.Addr != 0x48 || cfg.Bridge.Baud != 9600 || cfg.Bridge.TriggerLevel != 4 {
		t.Fatalf("bridge=%+v", cfg.Bridge)
	}
	if cfg.Bridge.CrystalHz != 14745600 {
		t.Fatalf("crystal=%d", cfg.Bridge.CrystalHz)
	}
	if cfg.Bridge.MaxSentence != 256 {
		t.Fatalf("max_sentence=%d want 256", cfg.Bridge.MaxSentence)
	}
	if cfg.Bridge.PollInterval != 10*time.Millisecond {
		t.Fatalf("poll_interval=%s want 10ms", cfg.Bridge.PollInterval)
	}
	if cfg.GPS.Role != RoleGPS || cfg.GPS.UpdateRate != 1 || cfg.GPS.OutputSet != "RMCONLY" {
		t.Fatalf("gps=%+v", cfg.GPS)
	}
}

func TestLoad_ClampsPollInterval(t *testing.T) {
	// 9600 baud fills half the FIFO in about 33ms.
	path := writeTempConfig(t, "bridge:\n  poll_interval: 1s\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Bridge.PollInterval >= 40*time.Millisecond || cfg.Bridge.PollInterval < 30*time.Millisecond {
		t.Fatalf("poll_interval=%s want ~33ms", cfg.Bridge.PollInterval)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		want     string
	}{
		{
			name:     "UnknownKind",
			contents: "transport:\n  kind: spi\n",
			want:     "transport.kind must be 'bridged' or 'direct'",
		},
		{
			name:     "UnknownRole",
			contents: "gps:\n  role: radar\n",
			want:     "gps.role must be 'gps' or 'rs485'",
		},
		{
			name:     "DirectNeedsDevice",
			contents: "transport:\n  kind: direct\n",
			want:     "serial.device is required when transport.kind is 'direct'",
		},
		{
			name:     "WideAddr",
			contents: "bridge:\n  addr: 0x148\n",
			want:     "bridge.addr must be a 7-bit i2c address",
		},
		{
			name:     "BadRate",
			contents: "gps:\n  update_rate: 2\n",
			want:     "gps.update_rate must be 1, 5, or 10",
		},
		{
			name:     "CaptureNeedsPath",
			contents: "capture:\n  enable: true\n",
			want:     "capture.path is required when capture.enable is true",
		},
		{
			name:     "CaptureFormat",
			contents: "capture:\n  enable: true\n  path: /tmp/x\n  format: json\n",
			want:     "capture.format must be 'text' or 'cbor'",
		},
		{
			name:     "TinySentence",
			contents: "bridge:\n  max_sentence: 2\n",
			want:     "bridge.max_sentence must be >= 3",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.contents))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_BridgeRejectsBadUART(t *testing.T) {
	for _, contents := range []string{
		"bridge:\n  baud: 10\n",
		"bridge:\n  trigger_level: 6\n",
	} {
		if _, err := Load(writeTempConfig(t, contents)); err == nil {
			t.Fatalf("expected error for %q", contents)
		}
	}
}

func TestLoad_DirectRS485(t *testing.T) {
	path := writeTempConfig(t, "transport:\n  kind: serial\nserial:\n  device: /dev/ttyAMA0\ngps:\n  role: RS485\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Transport.Kind != "direct" || cfg.Serial.Baud != 4800 || cfg.GPS.Role != RoleRS485 {
		t.Fatalf("cfg=%+v", cfg)
	}
	// The handshake settings are not defaulted for a listen-only role.
	if cfg.GPS.OutputSet != "" {
		t.Fatalf("output_set=%q want empty", cfg.GPS.OutputSet)
	}

	opts := cfg.TransportOptions()
	if opts.Kind != transport.Direct || opts.Device != "/dev/ttyAMA0" || opts.Baud != 4800 {
		t.Fatalf("opts=%+v", opts)
	}
}

func TestLoad_OutputSetNormalized(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  update_rate: 10\n  output_set: rmc+gga\ncapture:\n  enable: true\n  path: /tmp/c.log\n  format: CBOR\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.OutputSet != "RMCGGA" {
		t.Fatalf("output_set=%q want RMCGGA", cfg.GPS.OutputSet)
	}
	if cfg.Capture.Format != "cbor" {
		t.Fatalf("capture.format=%q want cbor", cfg.Capture.Format)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !os.IsNotExist(err) {
		t.Fatalf("err=%v want not-exist", err)
	}
}

func TestUART(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "bridge:\n  baud: 115200\n  trigger_level: 8\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	u := cfg.UART()
	if u.Baud != 115200 || u.TriggerLevel != 8 || u.CrystalHz != 14745600 || u.RxInterrupt {
		t.Fatalf("uart=%+v", u)
	}
}
