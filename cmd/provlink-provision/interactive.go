package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/provlink/provlink-go/pkg/provisioning"
)

// provisioner handles interactive mode for provlink-provision.
type provisioner struct {
	cfg provisioning.ClientConfig
	rl  *readline.Instance

	discovered []*provisioning.DiscoveredService
	client     *provisioning.Client
	clientAddr string
}

func newProvisioner(cfg provisioning.ClientConfig) (*provisioner, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "provision> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &provisioner{
		cfg: cfg,
		rl:  rl,
	}, nil
}

// Run starts the interactive command loop.
func (p *provisioner) Run() {
	defer p.rl.Close()
	defer p.dropConnection()

	p.printHelp()

	for {
		line, err := p.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(p.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			p.printHelp()

		case "discover", "d":
			p.cmdDiscover(args)

		case "list", "ls":
			p.cmdList()

		case "connect", "c":
			p.cmdConnect(args)

		case "send", "s":
			p.cmdSend(args)

		case "end":
			p.cmdEnd()

		case "close":
			p.cmdClose()

		case "status":
			p.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(p.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(p.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (p *provisioner) printHelp() {
	fmt.Fprintln(p.rl.Stdout(), `
ProvLink Provisioner Commands:
  Discovery & Connection:
    discover [seconds]       - Discover provisionable devices (default 5s)
    list                     - List discovered devices
    connect <n|host:port>    - Connect to device n from the list, or an address

  Provisioning:
    send <ssid> <passphrase> - Deliver credentials over the open connection
    end                      - Ask the device to finish the session
    close                    - Drop the connection without finishing

  General:
    status                   - Show provisioner status
    help                     - Show this help
    quit                     - Exit`)
}

// cmdDiscover handles the discover command.
func (p *provisioner) cmdDiscover(args []string) {
	window := 5 * time.Second
	if len(args) > 0 {
		seconds, err := strconv.Atoi(args[0])
		if err != nil || seconds <= 0 {
			fmt.Fprintf(p.rl.Stdout(), "Invalid duration: %s\n", args[0])
			return
		}
		window = time.Duration(seconds) * time.Second
	}

	fmt.Fprintf(p.rl.Stdout(), "Discovering provisionable devices (%s)...\n", window)

	ctx, cancel := context.WithTimeout(context.Background(), window)
	defer cancel()

	services, err := provisioning.Discover(ctx)
	if err != nil {
		fmt.Fprintf(p.rl.Stdout(), "Discovery error: %v\n", err)
		return
	}

	p.discovered = p.discovered[:0]
	for svc := range services {
		p.discovered = append(p.discovered, svc)
		fmt.Fprintf(p.rl.Stdout(), "  %d. %s (%s, security: %s)\n",
			len(p.discovered), svc.InstanceName, svc.Addr(), svc.Security)
	}

	if len(p.discovered) == 0 {
		fmt.Fprintln(p.rl.Stdout(), "No provisionable devices found")
	}
}

// cmdList handles the list command.
func (p *provisioner) cmdList() {
	if len(p.discovered) == 0 {
		fmt.Fprintln(p.rl.Stdout(), "No discovered devices (run 'discover' first)")
		return
	}

	fmt.Fprintf(p.rl.Stdout(), "\nDiscovered Devices (%d):\n", len(p.discovered))
	for idx, svc := range p.discovered {
		fmt.Fprintf(p.rl.Stdout(), "  %d. %s\n", idx+1, svc.InstanceName)
		fmt.Fprintf(p.rl.Stdout(), "      Address:  %s\n", svc.Addr())
		fmt.Fprintf(p.rl.Stdout(), "      Security: %s\n", svc.Security)
	}
}

// cmdConnect handles the connect command.
func (p *provisioner) cmdConnect(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(p.rl.Stdout(), "Usage: connect <n|host:port>")
		return
	}

	addr := args[0]
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 || n > len(p.discovered) {
			fmt.Fprintf(p.rl.Stdout(), "No such device: %d (run 'discover' first)\n", n)
			return
		}
		addr = p.discovered[n-1].Addr()
	}

	p.dropConnection()

	fmt.Fprintf(p.rl.Stdout(), "Connecting to %s...\n", addr)
	client, err := provisioning.Dial(addr, p.cfg)
	if err != nil {
		fmt.Fprintf(p.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}

	p.client = client
	p.clientAddr = addr
	fmt.Fprintln(p.rl.Stdout(), "Connected, session established")
}

// cmdSend handles the send command.
func (p *provisioner) cmdSend(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(p.rl.Stdout(), "Usage: send <ssid> [passphrase]")
		return
	}
	if p.client == nil {
		fmt.Fprintln(p.rl.Stdout(), "Not connected (run 'connect' first)")
		return
	}

	ssid := args[0]
	passphrase := ""
	if len(args) > 1 {
		passphrase = strings.Join(args[1:], " ")
	}

	fmt.Fprintf(p.rl.Stdout(), "Sending credentials for %q...\n", ssid)
	if err := p.client.SendCredentials(ssid, passphrase); err != nil {
		fmt.Fprintf(p.rl.Stdout(), "Rejected: %v\n", err)
		return
	}

	fmt.Fprintln(p.rl.Stdout(), "Credentials accepted (use 'end' to finish the session)")
}

// cmdEnd asks the device to finish the session.
func (p *provisioner) cmdEnd() {
	if p.client == nil {
		fmt.Fprintln(p.rl.Stdout(), "Not connected")
		return
	}

	if err := p.client.EndSession(); err != nil {
		fmt.Fprintf(p.rl.Stdout(), "End failed: %v\n", err)
	} else {
		fmt.Fprintln(p.rl.Stdout(), "Session finished")
	}
	p.dropConnection()
}

// cmdClose drops the connection without finishing the session.
func (p *provisioner) cmdClose() {
	if p.client == nil {
		fmt.Fprintln(p.rl.Stdout(), "Not connected")
		return
	}
	p.dropConnection()
	fmt.Fprintln(p.rl.Stdout(), "Connection closed")
}

// cmdStatus shows the provisioner status.
func (p *provisioner) cmdStatus() {
	fmt.Fprintln(p.rl.Stdout(), "\nProvisioner Status")
	fmt.Fprintln(p.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(p.rl.Stdout(), "  Security:   %s\n", p.cfg.Security)
	fmt.Fprintf(p.rl.Stdout(), "  Discovered: %d device(s)\n", len(p.discovered))
	if p.client != nil {
		fmt.Fprintf(p.rl.Stdout(), "  Connection: %s\n", p.clientAddr)
	} else {
		fmt.Fprintln(p.rl.Stdout(), "  Connection: none")
	}
	fmt.Fprintln(p.rl.Stdout())
}

func (p *provisioner) dropConnection() {
	if p.client != nil {
		_ = p.client.Close()
		p.client = nil
		p.clientAddr = ""
	}
}
