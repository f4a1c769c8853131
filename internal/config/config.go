package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"uartbridge/internal/capture"
	"uartbridge/internal/gps"
	"uartbridge/internal/nmea"
	"uartbridge/internal/sc16is750"
	"uartbridge/internal/transport"
)

type Config struct {
	Bus       BusConfig       `yaml:"bus"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Transport TransportConfig `yaml:"transport"`
	Serial    SerialConfig    `yaml:"serial"`
	GPS       GPSConfig       `yaml:"gps"`
	Capture   CaptureConfig   `yaml:"capture"`
	Forward   ForwardConfig   `yaml:"forward"`
}

type BusConfig struct {
	Device string `yaml:"device"`
}

type BridgeConfig struct {
	Addr         uint16        `yaml:"addr"`
	CrystalHz    int           `yaml:"crystal_hz"`
	Baud         int           `yaml:"baud"`
	TriggerLevel int           `yaml:"trigger_level"`
	IRQGPIO      int           `yaml:"irq_gpio"`
	ResetGPIO    int           `yaml:"reset_gpio"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxSentence  int           `yaml:"max_sentence"`
	Verbose      bool          `yaml:"verbose"`
}

type TransportConfig struct {
	Kind string `yaml:"kind"`
}

type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type GPSConfig struct {
	// Role is "gps" (run the PMTK handshake) or "rs485" (listen only).
	Role       string `yaml:"role"`
	UpdateRate int    `yaml:"update_rate"`
	OutputSet  string `yaml:"output_set"`
}

type CaptureConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

type ForwardConfig struct {
	Dest string `yaml:"dest"`
}

const (
	RoleGPS   = "gps"
	RoleRS485 = "rs485"
)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() error {
	kind, err := transport.ParseKind(cfg.Transport.Kind)
	if err != nil {
		return fmt.Errorf("transport.kind must be 'bridged' or 'direct'")
	}
	cfg.Transport.Kind = kind.String()

	role := strings.ToLower(strings.TrimSpace(cfg.GPS.Role))
	switch role {
	case "":
		role = RoleGPS
	case RoleGPS, RoleRS485:
	default:
		return fmt.Errorf("gps.role must be 'gps' or 'rs485'")
	}
	cfg.GPS.Role = role

	if cfg.Bridge.MaxSentence == 0 {
		cfg.Bridge.MaxSentence = nmea.DefaultMaxLen
	}
	if cfg.Bridge.MaxSentence < 3 {
		return fmt.Errorf("bridge.max_sentence must be >= 3")
	}

	var baud int
	switch kind {
	case transport.Bridged:
		if cfg.Bus.Device == "" {
			cfg.Bus.Device = "/dev/i2c-1"
		}
		if cfg.Bridge.Addr == 0 {
			cfg.Bridge.Addr = sc16is750.AddrGPS
		}
		if cfg.Bridge.Addr > 0x7F {
			return fmt.Errorf("bridge.addr must be a 7-bit i2c address")
		}
		if cfg.Bridge.CrystalHz == 0 {
			cfg.Bridge.CrystalHz = sc16is750.DefaultCrystalHz
		}
		if cfg.Bridge.Baud == 0 {
			cfg.Bridge.Baud = 9600
		}
		if cfg.Bridge.TriggerLevel == 0 {
			cfg.Bridge.TriggerLevel = 4
		}
		if _, err := sc16is750.Divisor(cfg.Bridge.CrystalHz, cfg.Bridge.Baud); err != nil {
			return fmt.Errorf("bridge.baud: %w", err)
		}
		if _, err := sc16is750.TriggerLevelValue(cfg.Bridge.TriggerLevel); err != nil {
			return fmt.Errorf("bridge.trigger_level: %w", err)
		}
		if cfg.Bridge.IRQGPIO < 0 || cfg.Bridge.ResetGPIO < 0 {
			return fmt.Errorf("bridge gpio pins must be >= 0")
		}
		baud = cfg.Bridge.Baud
	case transport.Direct:
		if cfg.Serial.Device == "" {
			return fmt.Errorf("serial.device is required when transport.kind is 'direct'")
		}
		if cfg.Serial.Baud == 0 {
			cfg.Serial.Baud = 4800
		}
		if cfg.Serial.Baud < 0 {
			return fmt.Errorf("serial.baud must be > 0")
		}
		baud = cfg.Serial.Baud
	}

	// Polling slower than half a FIFO fill time loses bytes.
	maxPoll := sc16is750.MaxPollInterval(baud)
	if cfg.Bridge.PollInterval <= 0 {
		cfg.Bridge.PollInterval = 10 * time.Millisecond
	}
	if cfg.Bridge.PollInterval > maxPoll {
		cfg.Bridge.PollInterval = maxPoll
	}

	if cfg.GPS.Role == RoleGPS {
		if cfg.GPS.UpdateRate == 0 {
			cfg.GPS.UpdateRate = int(gps.Rate1Hz)
		}
		switch gps.UpdateRate(cfg.GPS.UpdateRate) {
		case gps.Rate1Hz, gps.Rate5Hz, gps.Rate10Hz:
		default:
			return fmt.Errorf("gps.update_rate must be 1, 5, or 10")
		}
		if cfg.GPS.OutputSet == "" {
			cfg.GPS.OutputSet = string(gps.OutputRMCOnly)
		}
		set, err := gps.ParseOutputSet(cfg.GPS.OutputSet)
		if err != nil {
			return fmt.Errorf("gps.output_set: %w", err)
		}
		cfg.GPS.OutputSet = string(set)
	}

	if cfg.Capture.Enable {
		if cfg.Capture.Path == "" {
			return fmt.Errorf("capture.path is required when capture.enable is true")
		}
		format, err := capture.ParseFormat(cfg.Capture.Format)
		if err != nil {
			return fmt.Errorf("capture.format must be 'text' or 'cbor'")
		}
		cfg.Capture.Format = string(format)
	}

	cfg.Forward.Dest = strings.TrimSpace(cfg.Forward.Dest)
	return nil
}

// UART returns the controller settings for the bridged transport.
func (cfg Config) UART() sc16is750.UARTConfig {
	return sc16is750.UARTConfig{
		CrystalHz:    cfg.Bridge.CrystalHz,
		Baud:         cfg.Bridge.Baud,
		TriggerLevel: cfg.Bridge.TriggerLevel,
	}
}

// TransportOptions maps the loaded config onto transport.Open.
func (cfg Config) TransportOptions() transport.Options {
	kind, _ := transport.ParseKind(cfg.Transport.Kind)
	return transport.Options{
		Kind:     kind,
		BusPath:  cfg.Bus.Device,
		Addr:     cfg.Bridge.Addr,
		UART:     cfg.UART(),
		IRQPin:   cfg.Bridge.IRQGPIO,
		ResetPin: cfg.Bridge.ResetGPIO,
		Device:   cfg.Serial.Device,
		Baud:     cfg.Serial.Baud,
	}
}
