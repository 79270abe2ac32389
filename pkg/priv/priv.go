// Package priv brackets privileged sections of a setuid-root process.
//
// Every escalation is paired with exactly one drop through a Guard, on every
// return path of the section it protects. Scopes do not nest.
package priv

import (
	"sync"

	"golang.org/x/sys/unix"

	er "hostfs/errors"
	log "hostfs/logger"
)

// Controller raises and restores the privilege level of the process.
type Controller interface {
	Escalate() error
	Drop() error
}

var (
	ErrAlreadyEscalated = er.Errorf("privilege scope already open")
	ErrNotEscalated     = er.Errorf("privilege scope not open")
	// ErrDropFailed means the process may still be running with elevated
	// privilege.
	ErrDropFailed = er.Errorf("failed to drop privilege")
)

// EUIDController switches the effective uid/gid between root, kept as the
// saved set-user-ID, and the real ids of the caller. It is a no-op when the
// process is not setuid.
type EUIDController struct {
	mu        sync.Mutex
	uid, gid  int
	escalated bool
	setuid    bool
}

func NewEUIDController() *EUIDController {
	return &EUIDController{
		uid:    unix.Getuid(),
		gid:    unix.Getgid(),
		setuid: unix.Getuid() != unix.Geteuid(),
	}
}

// Start returns an EUIDController after lowering the effective ids of a
// setuid process to the caller's, so privilege is only held inside scopes.
func Start() (*EUIDController, error) {
	c := NewEUIDController()
	if !c.setuid {
		return c, nil
	}
	c.escalated = true
	if err := c.Drop(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *EUIDController) Escalate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.escalated {
		return ErrAlreadyEscalated
	}
	if c.setuid {
		log.Tracef("Escalating privileges")
		if err := unix.Setresuid(-1, 0, -1); err != nil {
			return er.Wrap(err, "seteuid(0)")
		}
		if err := unix.Setresgid(-1, 0, -1); err != nil {
			return er.Wrap(err, "setegid(0)")
		}
	}
	c.escalated = true
	return nil
}

func (c *EUIDController) Drop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.escalated {
		return ErrNotEscalated
	}
	if c.setuid {
		log.Tracef("Dropping privileges to %d:%d", c.uid, c.gid)
		// gid first, changing it needs euid 0
		if err := unix.Setresgid(-1, c.gid, -1); err != nil {
			return er.Wrapf(ErrDropFailed, "setegid(%d): %v", c.gid, err)
		}
		if err := unix.Setresuid(-1, c.uid, -1); err != nil {
			return er.Wrapf(ErrDropFailed, "seteuid(%d): %v", c.uid, err)
		}
	}
	c.escalated = false
	return nil
}

// Noop tracks scope pairing without touching process credentials.
type Noop struct {
	escalated bool
}

func (n *Noop) Escalate() error {
	if n.escalated {
		return ErrAlreadyEscalated
	}
	n.escalated = true
	return nil
}

func (n *Noop) Drop() error {
	if !n.escalated {
		return ErrNotEscalated
	}
	n.escalated = false
	return nil
}

// Guard is an open privilege scope.
type Guard struct {
	c        Controller
	released bool
}

// Acquire escalates through c and returns the guard that drops it.
func Acquire(c Controller) (*Guard, error) {
	if err := c.Escalate(); err != nil {
		return nil, err
	}
	return &Guard{c: c}, nil
}

// Release drops privilege. Only the first call has an effect, so an early
// explicit Release may be followed by a deferred one.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	if err := g.c.Drop(); err != nil {
		if er.Is(err, ErrDropFailed) {
			return err
		}
		return er.Wrapf(ErrDropFailed, "%v", err)
	}
	return nil
}

// With runs fn with privilege held and always drops it afterwards. An error
// from fn takes precedence, but a failed drop is never hidden.
func With(c Controller, fn func() error) (err error) {
	g, err := Acquire(c)
	if err != nil {
		return err
	}
	defer func() {
		if derr := g.Release(); derr != nil {
			if err == nil {
				err = derr
			} else {
				err = er.Wrapf(derr, "%v", err)
			}
		}
	}()
	return fn()
}
