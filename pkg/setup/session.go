package setup

import (
	"log/slog"
	"sync"
	"time"

	"github.com/provlink/provlink-go/pkg/provisioning"
)

// sessionController owns exactly one provisioning session and its
// deadline timer. A controller is single-use: once it reaches
// SessionEnded it is discarded, and a fresh one is created for any
// subsequent session.
type sessionController struct {
	mu sync.Mutex

	state       SessionState
	serviceName string

	provisioner provisioning.Provisioner
	timeout     time.Duration

	// Deadline timer, present only while state is SessionActive.
	timer *sessionTimer

	// onEnded runs exactly once inside the Active -> Ended transition,
	// after the timer is disarmed and the provisioning capability is
	// released.
	onEnded func()

	logger *slog.Logger
}

func newSessionController(prov provisioning.Provisioner, timeout time.Duration, logger *slog.Logger, onEnded func()) *sessionController {
	return &sessionController{
		state:       SessionIdle,
		provisioner: prov,
		timeout:     timeout,
		onEnded:     onEnded,
		logger:      logger,
	}
}

// start opens the provisioning session and arms the deadline. The
// controller goes Active before StartSession is called: the provisioner
// may deliver events, including an immediate end request, before
// StartSession returns, and those must not be dropped.
func (c *sessionController) start(serviceName string) error {
	c.mu.Lock()
	if c.state != SessionIdle {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.serviceName = serviceName
	c.state = SessionActive
	c.timer = newSessionTimer(c.timeout, c.deadlineExpired)
	c.mu.Unlock()

	c.debugLog("provisioning starting", "service", serviceName, "timeout", c.timeout)

	if err := c.provisioner.StartSession(serviceName); err != nil {
		c.mu.Lock()
		timer := c.timer
		c.timer = nil
		// An end signal may have raced the failed start; only revert a
		// still-Active controller.
		if c.state == SessionActive {
			c.state = SessionIdle
		}
		c.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		return err
	}
	return nil
}

// deadlineExpired forces the provisioning service to stop. Teardown is
// not performed here: the service reacts by emitting
// SessionEndRequested, so there is exactly one teardown path regardless
// of how the session ends.
func (c *sessionController) deadlineExpired() {
	c.debugLog("provisioning timeout", "service", c.serviceName)
	_ = c.provisioner.StopSession()
}

// handleEvent consumes one provisioning protocol event.
func (c *sessionController) handleEvent(event provisioning.Event) {
	switch event.Type {
	case provisioning.EventSessionStarted:
		c.debugLog("provisioning started")

	case provisioning.EventCredentialsReceived:
		c.debugLog("provisioning received credentials", "ssid", event.SSID)

	case provisioning.EventCredentialsRejected:
		// The remote party may retry within the same session; only the
		// deadline or an explicit completion ends it.
		c.debugLog("provisioning credentials rejected", "ssid", event.SSID, "reason", event.Reason.String())

	case provisioning.EventCredentialsAccepted:
		c.debugLog("provisioning successful", "ssid", event.SSID)

	case provisioning.EventSessionEndRequested:
		c.end()
	}
}

// end performs the Active -> Ended transition exactly once. Duplicate
// end signals (timer racing natural completion) are no-ops.
func (c *sessionController) end() {
	c.mu.Lock()
	if c.state != SessionActive {
		c.mu.Unlock()
		return
	}
	c.state = SessionEnded
	timer := c.timer
	c.timer = nil
	c.mu.Unlock()

	c.debugLog("provisioning end", "service", c.serviceName)

	timer.Stop()
	if err := c.provisioner.Deinit(); err != nil {
		c.debugLog("provisioner deinit failed", "err", err)
	}

	c.onEnded()
}

// State returns the controller state.
func (c *sessionController) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *sessionController) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
