package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/fxamacker/cbor/v2"
)

// DiscoveredService describes an advertised provisioning session.
type DiscoveredService struct {
	// InstanceName is the advertised service name (e.g. "PROV_MyApp-123456").
	InstanceName string

	// Host is the device hostname.
	Host string

	// Port is the session's TCP port.
	Port int

	// Addresses contains resolved IP addresses.
	Addresses []string

	// Security is the security level advertised in TXT records.
	Security SecurityLevel
}

// Addr returns a dialable address for the service, preferring the first
// resolved IP address.
func (s *DiscoveredService) Addr() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// Discover browses for advertised provisioning sessions until the
// context is cancelled. The returned channel is closed when browsing
// stops.
func Discover(ctx context.Context) (<-chan *DiscoveredService, error) {
	out := make(chan *DiscoveredService)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		seen := make(map[string]struct{})
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToService(entry)
				if _, dup := seen[svc.InstanceName]; dup {
					continue
				}
				seen[svc.InstanceName] = struct{}{}
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case <-removed:
				// Sessions are short-lived; removals are not surfaced.

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	}()

	return out, nil
}

func entryToService(entry *zeroconf.ServiceEntry) *DiscoveredService {
	svc := &DiscoveredService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         entry.Port,
	}
	for _, ip := range entry.AddrIPv4 {
		svc.Addresses = append(svc.Addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		svc.Addresses = append(svc.Addresses, ip.String())
	}
	for _, txt := range entry.Text {
		if sec, ok := strings.CutPrefix(txt, "sec="); ok {
			if level, err := strconv.Atoi(sec); err == nil {
				svc.Security = SecurityLevel(level)
			}
		}
	}
	return svc
}

// ClientConfig configures a provisioning Client.
type ClientConfig struct {
	// Security is the security level to request.
	Security SecurityLevel

	// SetupKey is the shared proof-of-possession secret. Required for
	// SecurityEncrypted.
	SetupKey string

	// Timeout bounds each request/response round trip.
	// Default: 30 seconds.
	Timeout time.Duration

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// Client is the controller-side end of a provisioning session.
type Client struct {
	cfg  ClientConfig
	conn net.Conn

	// Session key, set after a successful encrypted handshake.
	key []byte
}

// Dial connects to an open provisioning session and performs the
// handshake.
func Dial(addr string, cfg ClientConfig) (*Client, error) {
	if cfg.Security == SecurityEncrypted && cfg.SetupKey == "" {
		return nil, ErrInvalidConfig
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	conn, err := net.DialTimeout("tcp", addr, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, conn: conn}
	if err := c.handshake(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake() error {
	req := HandshakeRequest{
		MsgType:  MsgHandshakeRequest,
		Security: uint8(c.cfg.Security),
	}

	var private []byte
	if c.cfg.Security == SecurityEncrypted {
		priv, public, err := newKeyPair()
		if err != nil {
			return err
		}
		private = priv
		req.ClientPublic = public
	}

	var resp HandshakeResponse
	if err := c.roundTrip(req, &resp); err != nil {
		return err
	}
	if resp.Status != StatusSuccess {
		return fmt.Errorf("%w: status %d", ErrHandshakeFailed, resp.Status)
	}

	if c.cfg.Security == SecurityEncrypted {
		key, err := deriveSessionKey(private, resp.ServerPublic, resp.Salt, c.cfg.SetupKey)
		if err != nil {
			return err
		}
		c.key = key
	}
	return nil
}

// SendCredentials offers station credentials to the device and reports
// the verification outcome. A rejection leaves the session open for a
// retry.
func (c *Client) SendCredentials(ssid, passphrase string) error {
	msg := Credentials{MsgType: MsgCredentials}

	switch c.cfg.Security {
	case SecurityNone:
		msg.SSID = ssid
		msg.Passphrase = passphrase

	case SecurityEncrypted:
		plaintext, err := cbor.Marshal(credentialPayload{SSID: ssid, Passphrase: passphrase})
		if err != nil {
			return err
		}
		sealed, nonce, err := seal(c.key, plaintext)
		if err != nil {
			return err
		}
		msg.Sealed = sealed
		msg.Nonce = nonce
	}

	var result CredentialsResult
	if err := c.roundTrip(msg, &result); err != nil {
		return err
	}

	switch result.Status {
	case StatusSuccess:
		return nil
	case StatusAuthFailed:
		return fmt.Errorf("%w: authentication failed", ErrCredentialDenied)
	case StatusNetworkNotFound:
		return fmt.Errorf("%w: network not found", ErrCredentialDenied)
	case StatusBadSecurity:
		return ErrInvalidSecurity
	default:
		return fmt.Errorf("%w: status %d", ErrCredentialDenied, result.Status)
	}
}

// EndSession asks the device to close the provisioning session.
func (c *Client) EndSession() error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout))
	return writeFrame(c.conn, SessionEnd{MsgType: MsgSessionEnd})
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(req any, resp any) error {
	deadline := time.Now().Add(c.cfg.Timeout)
	_ = c.conn.SetDeadline(deadline)

	if err := writeFrame(c.conn, req); err != nil {
		return err
	}
	data, err := readFrame(c.conn)
	if err != nil {
		return err
	}
	if err := cbor.Unmarshal(data, resp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}
