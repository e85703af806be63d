// Command provlink-provision is the companion provisioner. It discovers
// devices waiting for onboarding and delivers network credentials to
// them, either interactively or as a one-shot.
//
// Usage:
//
//	provlink-provision [flags]
//
// Flags:
//
//	-security string   Exchange security: none, encrypted (default "encrypted")
//	-setup-key string  Shared setup key for the encrypted exchange
//	-timeout duration  Per-request timeout (default 10s)
//	-addr string       Device address for one-shot mode (host:port)
//	-ssid string       Network SSID for one-shot mode
//	-pass string       Network passphrase for one-shot mode
//
// Examples:
//
//	# Interactive: discover devices, then send credentials
//	provlink-provision -setup-key abc123
//
//	# One-shot: provision a known device directly
//	provlink-provision -setup-key abc123 -addr 192.168.1.50:7640 -ssid home -pass secret
//
// Interactive Commands:
//
//	discover [seconds]       - Discover provisionable devices
//	connect <n|host:port>    - Connect to a discovered device or address
//	send <ssid> <passphrase> - Deliver credentials over the open connection
//	end                      - Ask the device to finish the session
//	close                    - Drop the connection without finishing
//	status                   - Show provisioner status
//	quit                     - Exit
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/provlink/provlink-go/pkg/provisioning"
)

// Config holds the provisioner configuration.
type Config struct {
	Security string
	SetupKey string
	Timeout  time.Duration

	// One-shot mode settings; interactive when Addr is empty.
	Addr       string
	SSID       string
	Passphrase string
}

var config Config

func init() {
	flag.StringVar(&config.Security, "security", "encrypted", "Exchange security: none, encrypted")
	flag.StringVar(&config.SetupKey, "setup-key", "", "Shared setup key for the encrypted exchange")
	flag.DurationVar(&config.Timeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.StringVar(&config.Addr, "addr", "", "Device address for one-shot mode (host:port)")
	flag.StringVar(&config.SSID, "ssid", "", "Network SSID for one-shot mode")
	flag.StringVar(&config.Passphrase, "pass", "", "Network passphrase for one-shot mode")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime)

	security, err := parseSecurity(config.Security)
	if err != nil {
		log.Fatalf("Invalid security level: %v", err)
	}

	clientCfg := provisioning.ClientConfig{
		Security: security,
		SetupKey: config.SetupKey,
		Timeout:  config.Timeout,
	}

	if config.Addr != "" {
		if err := runOneShot(clientCfg); err != nil {
			log.Fatalf("Provisioning failed: %v", err)
		}
		return
	}

	p, err := newProvisioner(clientCfg)
	if err != nil {
		log.Fatalf("Failed to start interactive mode: %v", err)
	}
	p.Run()
}

// runOneShot provisions a single device and exits.
func runOneShot(cfg provisioning.ClientConfig) error {
	if config.SSID == "" {
		return fmt.Errorf("one-shot mode needs -ssid")
	}

	log.Printf("Connecting to %s...", config.Addr)
	client, err := provisioning.Dial(config.Addr, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	log.Printf("Sending credentials for %q...", config.SSID)
	if err := client.SendCredentials(config.SSID, config.Passphrase); err != nil {
		return err
	}
	log.Println("Credentials accepted")

	if err := client.EndSession(); err != nil {
		return err
	}
	log.Println("Session finished")
	return nil
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
