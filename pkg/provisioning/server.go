package provisioning

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	tracelog "github.com/provlink/provlink-go/pkg/log"
	"github.com/provlink/provlink-go/pkg/netif"
)

// mDNS advertisement constants.
const (
	// ServiceType is the mDNS service type for provisioning sessions.
	ServiceType = "_provlink._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// ProtocolVersion is the provisioning protocol version advertised in
	// TXT records.
	ProtocolVersion = 1
)

// connReadTimeout bounds how long the server waits for the next frame on
// an open connection.
const connReadTimeout = 2 * time.Minute

// verifyTimeout bounds the connection attempt that verifies offered
// credentials.
const verifyTimeout = 30 * time.Second

// Advertiser publishes an open session's service name on the local
// network. Implemented by mdnsAdvertiser; replaceable in tests.
type Advertiser interface {
	// Advertise starts advertising the session.
	Advertise(instanceName string, port int, txt []string) error

	// Shutdown stops advertising.
	Shutdown()
}

// mdnsAdvertiser advertises over mDNS using zeroconf.
type mdnsAdvertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

func (a *mdnsAdvertiser) Advertise(instanceName string, port int, txt []string) error {
	server, err := zeroconf.Register(instanceName, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.server = server
	a.mu.Unlock()
	return nil
}

func (a *mdnsAdvertiser) Shutdown() {
	a.mu.Lock()
	server := a.server
	a.server = nil
	a.mu.Unlock()

	if server != nil {
		server.Shutdown()
	}
}

// Server is the device-side Provisioner. While a session is open it
// advertises the service name over mDNS and accepts credential exchanges
// on a TCP listener.
type Server struct {
	mu sync.Mutex

	initialized bool
	cfg         Config
	handler     EventHandler
	advertiser  Advertiser

	// Session state, present only while a session is open.
	sessionActive bool
	sessionID     string
	listener      net.Listener
	conns         map[net.Conn]struct{}
}

// NewServer creates an uninitialized provisioning server.
func NewServer() *Server {
	return &Server{
		advertiser: &mdnsAdvertiser{},
		conns:      make(map[net.Conn]struct{}),
	}
}

// SetAdvertiser replaces the mDNS advertiser. For tests.
func (s *Server) SetAdvertiser(a Advertiser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advertiser = a
}

// Init prepares the provisioning capability.
func (s *Server) Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.initialized = true
	return nil
}

// IsProvisioned reports whether valid station credentials already exist.
func (s *Server) IsProvisioned() (bool, error) {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return false, ErrNotInitialized
	}
	network := s.cfg.Network
	s.mu.Unlock()

	cfg, err := network.GetStationConfig()
	if err != nil {
		return false, err
	}
	return !cfg.Empty(), nil
}

// OnEvent registers the handler for protocol events.
func (s *Server) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// StartSession opens a provisioning session advertised under serviceName.
//
// The station configuration slot belongs to the session while it is
// open: it is cleared on start so that the post-session configuration
// reflects only credentials the session actually established.
func (s *Server) StartSession(serviceName string) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if s.sessionActive {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	cfg := s.cfg
	advertiser := s.advertiser
	s.mu.Unlock()

	addr := cfg.ListenAddress
	if addr == "" {
		addr = ":0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	port := listener.Addr().(*net.TCPAddr).Port

	txt := []string{
		"ver=" + strconv.Itoa(ProtocolVersion),
		"sec=" + strconv.Itoa(int(cfg.Security)),
	}
	if err := advertiser.Advertise(serviceName, port, txt); err != nil {
		_ = listener.Close()
		return err
	}

	// The slot is cleared only once the session is guaranteed to open:
	// a failed start must not discard stored credentials.
	if err := cfg.Network.SetStationConfig(netif.StationConfig{}); err != nil {
		advertiser.Shutdown()
		_ = listener.Close()
		return err
	}

	s.mu.Lock()
	s.sessionActive = true
	s.sessionID = uuid.NewString()
	s.listener = listener
	sessionID := s.sessionID
	s.mu.Unlock()

	s.debugLog("session started", "session", sessionID, "service", serviceName, "port", port)
	s.trace(tracelog.Event{
		Direction:   tracelog.DirectionLocal,
		Category:    tracelog.CategoryState,
		StateChange: &tracelog.StateChangeEvent{OldState: "IDLE", NewState: "ACTIVE", Reason: "session opened"},
	})
	go s.acceptLoop(listener)

	s.emit(Event{Type: EventSessionStarted})
	return nil
}

// StopSession forces the open session to end. A no-op when no session is
// active, so a stale deadline firing after natural completion is safe.
func (s *Server) StopSession() error {
	s.endSession()
	return nil
}

// Deinit releases the provisioning capability. Any open session is
// stopped first without emitting further events.
func (s *Server) Deinit() error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = false
	active := s.sessionActive
	s.sessionActive = false
	listener := s.listener
	advertiser := s.advertiser
	conns := s.conns
	s.listener = nil
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	if active {
		s.closeSessionResources(listener, advertiser, conns)
	}
	return nil
}

// Port returns the TCP port of the open session, or 0 when none is open.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// endSession tears down the session exactly once and emits
// EventSessionEndRequested. Safe to call from any path (remote end
// request, forced stop, deadline).
func (s *Server) endSession() {
	s.mu.Lock()
	if !s.sessionActive {
		s.mu.Unlock()
		return
	}
	s.sessionActive = false
	sessionID := s.sessionID
	listener := s.listener
	advertiser := s.advertiser
	conns := s.conns
	s.listener = nil
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	s.closeSessionResources(listener, advertiser, conns)
	s.debugLog("session ended", "session", sessionID)
	s.trace(tracelog.Event{
		SessionID:   sessionID,
		Direction:   tracelog.DirectionLocal,
		Category:    tracelog.CategoryState,
		StateChange: &tracelog.StateChangeEvent{OldState: "ACTIVE", NewState: "ENDED"},
	})

	s.emit(Event{Type: EventSessionEndRequested})
}

func (s *Server) closeSessionResources(listener net.Listener, advertiser Advertiser, conns map[net.Conn]struct{}) {
	if listener != nil {
		_ = listener.Close()
	}
	if advertiser != nil {
		advertiser.Shutdown()
	}
	for conn := range conns {
		_ = conn.Close()
	}
}

func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if !s.sessionActive {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		go s.handleConn(conn)
	}
}

func (s *Server) removeConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

// handleConn runs the exchange on one connection. The session key is
// per-connection state; a connection must complete the handshake before
// offering credentials when the security level requires it.
func (s *Server) handleConn(conn net.Conn) {
	defer s.removeConn(conn)

	connID := uuid.NewString()
	s.debugLog("connection opened", "conn", connID, "remote", conn.RemoteAddr().String())

	var sessionKey []byte

	for {
		_ = conn.SetReadDeadline(time.Now().Add(connReadTimeout))

		data, err := readFrame(conn)
		if err != nil {
			s.debugLog("connection closed", "conn", connID, "err", err)
			return
		}
		s.trace(tracelog.Event{
			ConnectionID: connID,
			Direction:    tracelog.DirectionIn,
			Category:     tracelog.CategoryFrame,
			RemoteAddr:   conn.RemoteAddr().String(),
			Frame:        &tracelog.FrameEvent{Size: len(data)},
		})

		msgType, err := peekMsgType(data)
		if err != nil {
			s.trace(tracelog.Event{
				ConnectionID: connID,
				Direction:    tracelog.DirectionIn,
				Category:     tracelog.CategoryError,
				RemoteAddr:   conn.RemoteAddr().String(),
				Error:        &tracelog.ErrorEventData{Message: err.Error(), Context: "frame decode"},
			})
			return
		}
		s.trace(tracelog.Event{
			ConnectionID: connID,
			Direction:    tracelog.DirectionIn,
			Category:     tracelog.CategoryMessage,
			RemoteAddr:   conn.RemoteAddr().String(),
			Message:      &tracelog.MessageEvent{Type: msgType, Name: msgTypeName(msgType), Sealed: msgType == MsgCredentials && s.securityLevel() == SecurityEncrypted},
		})

		switch msgType {
		case MsgHandshakeRequest:
			sessionKey, err = s.handleHandshake(conn, data)
			if err != nil {
				s.debugLog("handshake failed", "conn", connID, "err", err)
				return
			}

		case MsgCredentials:
			if err := s.handleCredentials(conn, data, sessionKey); err != nil {
				s.debugLog("credential exchange failed", "conn", connID, "err", err)
				return
			}

		case MsgSessionEnd:
			s.debugLog("session end requested by remote", "conn", connID)
			s.endSession()
			return

		default:
			s.debugLog("unexpected message", "conn", connID, "type", msgType)
			return
		}
	}
}

func (s *Server) handleHandshake(conn net.Conn, data []byte) ([]byte, error) {
	var req HandshakeRequest
	if err := cbor.Unmarshal(data, &req); err != nil {
		return nil, ErrInvalidMessage
	}

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if SecurityLevel(req.Security) != cfg.Security {
		s.traceOut(conn, MsgHandshakeResponse, StatusBadSecurity)
		_ = writeFrame(conn, HandshakeResponse{MsgType: MsgHandshakeResponse, Status: StatusBadSecurity})
		return nil, ErrInvalidSecurity
	}

	if cfg.Security == SecurityNone {
		s.traceOut(conn, MsgHandshakeResponse, StatusSuccess)
		return nil, writeFrame(conn, HandshakeResponse{MsgType: MsgHandshakeResponse, Status: StatusSuccess})
	}

	private, public, err := newKeyPair()
	if err != nil {
		return nil, err
	}
	salt, err := newSalt()
	if err != nil {
		return nil, err
	}

	key, err := deriveSessionKey(private, req.ClientPublic, salt, cfg.SetupKey)
	if err != nil {
		_ = writeFrame(conn, HandshakeResponse{MsgType: MsgHandshakeResponse, Status: StatusBadSecurity})
		return nil, err
	}

	resp := HandshakeResponse{
		MsgType:      MsgHandshakeResponse,
		Status:       StatusSuccess,
		ServerPublic: public,
		Salt:         salt,
	}
	s.traceOut(conn, MsgHandshakeResponse, StatusSuccess)
	return key, writeFrame(conn, resp)
}

func (s *Server) handleCredentials(conn net.Conn, data []byte, sessionKey []byte) error {
	var msg Credentials
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return ErrInvalidMessage
	}

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	var offered netif.StationConfig
	switch cfg.Security {
	case SecurityNone:
		offered = netif.StationConfig{SSID: msg.SSID, Passphrase: msg.Passphrase}

	case SecurityEncrypted:
		if sessionKey == nil {
			_ = writeFrame(conn, CredentialsResult{MsgType: MsgCredentialsResult, Status: StatusBadSecurity})
			return ErrInvalidSecurity
		}
		plaintext, err := open(sessionKey, msg.Sealed, msg.Nonce)
		if err != nil {
			_ = writeFrame(conn, CredentialsResult{MsgType: MsgCredentialsResult, Status: StatusBadSecurity})
			return err
		}
		var payload credentialPayload
		if err := cbor.Unmarshal(plaintext, &payload); err != nil {
			return ErrInvalidMessage
		}
		offered = netif.StationConfig{SSID: payload.SSID, Passphrase: payload.Passphrase}
	}

	if offered.Empty() {
		_ = writeFrame(conn, CredentialsResult{MsgType: MsgCredentialsResult, Status: StatusInternalError})
		return ErrInvalidMessage
	}

	s.emit(Event{Type: EventCredentialsReceived, SSID: offered.SSID})

	status := s.applyAndVerify(cfg, offered)
	s.traceOut(conn, MsgCredentialsResult, status)
	return writeFrame(conn, CredentialsResult{MsgType: MsgCredentialsResult, Status: status})
}

// applyAndVerify writes the offered credentials to the network and
// verifies them with a connection attempt. Unverified credentials are
// cleared again so the configuration slot only ever holds credentials
// that actually worked.
func (s *Server) applyAndVerify(cfg Config, offered netif.StationConfig) uint8 {
	if err := cfg.Network.SetStationConfig(offered); err != nil {
		return StatusInternalError
	}

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	err := cfg.Station.Connect(ctx)
	if err == nil {
		s.emit(Event{Type: EventCredentialsAccepted, SSID: offered.SSID})
		return StatusSuccess
	}

	_ = cfg.Network.SetStationConfig(netif.StationConfig{})

	reason := RejectAuthenticationFailed
	status := StatusAuthFailed
	if errors.Is(err, netif.ErrNetworkNotFound) {
		reason = RejectNetworkNotFound
		status = StatusNetworkNotFound
	}

	s.emit(Event{Type: EventCredentialsRejected, SSID: offered.SSID, Reason: reason})
	return status
}

func (s *Server) emit(event Event) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(event)
	}
}

// trace records an exchange event when a trace logger is configured.
// The open session's ID is filled in unless the event carries its own.
func (s *Server) trace(event tracelog.Event) {
	s.mu.Lock()
	tracer := s.cfg.Trace
	sessionID := s.sessionID
	s.mu.Unlock()

	if tracer == nil {
		return
	}
	event.Timestamp = time.Now()
	if event.SessionID == "" {
		event.SessionID = sessionID
	}
	tracer.Log(event)
}

// traceOut records an outgoing response message.
func (s *Server) traceOut(conn net.Conn, msgType uint8, status uint8) {
	st := status
	s.trace(tracelog.Event{
		Direction:  tracelog.DirectionOut,
		Category:   tracelog.CategoryMessage,
		RemoteAddr: conn.RemoteAddr().String(),
		Message:    &tracelog.MessageEvent{Type: msgType, Name: msgTypeName(msgType), Status: &st},
	})
}

func (s *Server) securityLevel() SecurityLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Security
}

func (s *Server) debugLog(msg string, args ...any) {
	s.mu.Lock()
	logger := s.cfg.Logger
	s.mu.Unlock()

	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Compile-time check: *Server implements Provisioner.
var _ Provisioner = (*Server)(nil)
