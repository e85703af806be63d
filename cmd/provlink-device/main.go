// Command provlink-device runs a simulated headless device through the
// onboarding flow.
//
// The device derives its name from the project name and hardware ID,
// restores any persisted station configuration, and either reconnects
// directly or opens a provisioning session advertised over mDNS. Use
// provlink-provision on the same network to deliver credentials.
//
// Usage:
//
//	provlink-device [flags]
//
// Flags:
//
//	-config string       Configuration file path (YAML)
//	-project string      Project name for the derived device name (default "provlink")
//	-hardware-id uint    Hardware-unique identifier (auto-generated if 0)
//	-timeout duration    Provisioning session deadline (default 2m0s)
//	-security string     Exchange security: none, encrypted (default "encrypted")
//	-setup-key string    Shared setup key for the encrypted exchange
//	-listen string       Provisioning TCP listen address (default ":0")
//	-state-dir string    Directory for persistent state
//	-force               Force reprovisioning even with stored credentials
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-trace-file string   Write a CBOR exchange trace to this file
//
// Examples:
//
//	# First boot: opens a provisioning session
//	provlink-device -project sensor -setup-key abc123 -state-dir /tmp/sensor
//
//	# Later boots reconnect with the stored credentials
//	provlink-device -project sensor -setup-key abc123 -state-dir /tmp/sensor
//
//	# Discard stored credentials and reprovision
//	provlink-device -project sensor -setup-key abc123 -state-dir /tmp/sensor -force
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	tracelog "github.com/provlink/provlink-go/pkg/log"
	"github.com/provlink/provlink-go/pkg/netif"
	"github.com/provlink/provlink-go/pkg/provisioning"
	"github.com/provlink/provlink-go/pkg/reconnect"
	"github.com/provlink/provlink-go/pkg/setup"
)

// Config holds the device configuration, from flags and the optional
// configuration file.
type Config struct {
	ConfigFile string

	Project    string        `yaml:"project"`
	HardwareID uint64        `yaml:"hardware_id"`
	Timeout    time.Duration `yaml:"timeout"`
	Security   string        `yaml:"security"`
	SetupKey   string        `yaml:"setup_key"`
	Listen     string        `yaml:"listen"`
	StateDir   string        `yaml:"state_dir"`
	Force      bool          `yaml:"-"`
	LogLevel   string        `yaml:"log_level"`
	TraceFile  string        `yaml:"trace_file"`

	// Networks reachable in the simulated radio environment.
	Networks []NetworkEntry `yaml:"networks"`
}

// NetworkEntry is one reachable network in the simulated environment.
type NetworkEntry struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&config.Project, "project", "provlink", "Project name for the derived device name")
	flag.Uint64Var(&config.HardwareID, "hardware-id", 0, "Hardware-unique identifier (auto-generated if 0)")
	flag.DurationVar(&config.Timeout, "timeout", setup.DefaultSessionTimeout, "Provisioning session deadline")
	flag.StringVar(&config.Security, "security", "encrypted", "Exchange security: none, encrypted")
	flag.StringVar(&config.SetupKey, "setup-key", "", "Shared setup key for the encrypted exchange")
	flag.StringVar(&config.Listen, "listen", ":0", "Provisioning TCP listen address")
	flag.StringVar(&config.StateDir, "state-dir", "", "Directory for persistent state")
	flag.BoolVar(&config.Force, "force", false, "Force reprovisioning even with stored credentials")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.TraceFile, "trace-file", "", "Write a CBOR exchange trace to this file")
}

func main() {
	flag.Parse()

	if config.ConfigFile != "" {
		if err := loadConfigFile(config.ConfigFile, &config); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}
	applyDefaults()

	logger, err := newLogger(config.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}

	security, err := parseSecurity(config.Security)
	if err != nil {
		log.Fatalf("Invalid security level: %v", err)
	}

	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Println("ProvLink Reference Device")
	log.Println("=========================")
	log.Printf("Project: %s", config.Project)
	log.Printf("Hardware ID: %012x", config.HardwareID)
	log.Printf("Security: %s", security)

	// Simulated network stack, persistent when a state dir is given.
	var store *netif.ConfigStore
	if config.StateDir != "" {
		store = netif.NewConfigStore(filepath.Join(config.StateDir, "station.json"))
		log.Printf("State directory: %s", config.StateDir)
	}
	network := netif.NewSimNetwork(store)
	for _, entry := range config.Networks {
		network.AddNetwork(entry.SSID, entry.Passphrase)
		log.Printf("Simulated network reachable: %s", entry.SSID)
	}
	network.OnConnectionChange(func(connected bool) {
		if connected {
			cfg, _ := network.GetStationConfig()
			log.Printf("[EVENT] Connected to %s", cfg.SSID)
		} else {
			log.Println("[EVENT] Disconnected")
		}
	})

	engine := reconnect.NewEngine(network, reconnect.Config{
		Backoff: reconnect.DefaultBackoffConfig(),
		Logger:  logger,
	})
	defer engine.Stop()

	var trace tracelog.Logger = tracelog.NoopLogger{}
	if config.TraceFile != "" {
		fileTrace, err := tracelog.NewFileLogger(config.TraceFile)
		if err != nil {
			log.Fatalf("Failed to open trace file: %v", err)
		}
		defer fileTrace.Close()
		trace = tracelog.NewMultiLogger(fileTrace, tracelog.NewSlogAdapter(logger))
		log.Printf("Exchange trace: %s", config.TraceFile)
	}

	setupCfg := setup.DefaultConfig()
	setupCfg.ProjectName = config.Project
	setupCfg.HardwareID = config.HardwareID
	setupCfg.SessionTimeout = config.Timeout
	setupCfg.Security = security
	setupCfg.SetupKey = config.SetupKey
	setupCfg.ListenAddress = config.Listen
	setupCfg.Logger = logger
	setupCfg.Trace = trace

	server := provisioning.NewServer()
	bootstrapper, err := setup.New(network, server, engine, setupCfg)
	if err != nil {
		log.Fatalf("Failed to create bootstrapper: %v", err)
	}

	bootstrapper.OnOutcome(func(outcome setup.Outcome) {
		log.Printf("[EVENT] Provisioning outcome: %s", outcome)
	})

	if err := bootstrapper.SetupConnectivity(config.Force); err != nil {
		log.Fatalf("Connectivity setup failed: %v", err)
	}

	identity := bootstrapper.Identity()
	log.Printf("Device name: %s", identity.Name)

	if bootstrapper.SessionState() == setup.SessionActive {
		printProvisioningInfo(identity.Name, server.Port())
	} else {
		log.Println("Already provisioned, reconnecting")
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Printf("Received signal: %v", sig)
	log.Println("Shutting down...")

	if err := server.Deinit(); err != nil {
		log.Printf("Error stopping provisioning: %v", err)
	}

	log.Println("Goodbye!")
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyDefaults() {
	if config.HardwareID == 0 {
		// Stand-in for a factory-programmed identifier.
		config.HardwareID = uint64(time.Now().UnixNano()) & 0xffffffffffff
	}
	if config.Timeout <= 0 {
		config.Timeout = setup.DefaultSessionTimeout
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %s", level)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func parseSecurity(s string) (provisioning.SecurityLevel, error) {
	switch strings.ToLower(s) {
	case "none":
		return provisioning.SecurityNone, nil
	case "encrypted":
		return provisioning.SecurityEncrypted, nil
	default:
		return 0, fmt.Errorf("unknown security level: %s (use: none, encrypted)", s)
	}
}

func printProvisioningInfo(deviceName string, port int) {
	log.Println("")
	log.Println("============================================")
	log.Println("         PROVISIONING INFORMATION           ")
	log.Println("============================================")
	log.Printf("Service Name: %s%s", setup.ServiceNamePrefix, deviceName)
	log.Printf("Port:         %d", port)
	log.Printf("Timeout:      %s", config.Timeout)
	log.Println("============================================")
	log.Println("")
}
