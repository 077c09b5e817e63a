// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package access provides the single-owner gate and pause flag the
// market and bridge entry points consult. It replaces inherited
// ownable/pausable behavior with explicit guard calls.
package access

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/luxfi/geth/common"
)

// Errors
var (
	ErrUnauthorized = errors.New("caller is not the owner")
	ErrPaused       = errors.New("contract is paused")
)

// Controller holds the owner principal, the pause flag, and the
// call-scoped reentrancy lock shared by all mutating entry points.
type Controller struct {
	owner  common.Address
	paused bool

	entered atomic.Bool
	mu      sync.RWMutex
}

// NewController creates a controller owned by owner, unpaused.
func NewController(owner common.Address) *Controller {
	return &Controller{owner: owner}
}

// Owner returns the current owner.
func (c *Controller) Owner() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// IsPaused reports whether the pause flag is set.
func (c *Controller) IsPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// Enter acquires the reentrancy lock. It reports false when a call is
// already inside one of the guarded entry points, so a settlement or
// dispatch callback re-entering fails fast instead of deadlocking.
func (c *Controller) Enter() bool {
	return c.entered.CompareAndSwap(false, true)
}

// Exit releases the reentrancy lock.
func (c *Controller) Exit() {
	c.entered.Store(false)
}

// RequireOwner fails unless caller is the owner.
func (c *Controller) RequireOwner(caller common.Address) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if caller != c.owner {
		return ErrUnauthorized
	}
	return nil
}

// RequireNotPaused fails while the pause flag is set.
func (c *Controller) RequireNotPaused() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.paused {
		return ErrPaused
	}
	return nil
}

// Pause sets the pause flag. Owner only.
func (c *Controller) Pause(caller common.Address) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	return nil
}

// Unpause clears the pause flag. Owner only.
func (c *Controller) Unpause(caller common.Address) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	return nil
}

// TransferOwnership hands the owner role to newOwner. Owner only.
func (c *Controller) TransferOwnership(caller, newOwner common.Address) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return ErrUnauthorized
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owner = newOwner
	return nil
}
