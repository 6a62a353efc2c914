// Package doltutil holds the Dolt helpers shared by storage and the CLI:
// bounded closes for the embedded engine and version commits after a
// migration.
package doltutil

import (
	"errors"
	"fmt"
	"time"
)

// CloseTimeout bounds each close. The embedded engine can block forever
// while flushing its chunk journal.
const CloseTimeout = 5 * time.Second

// ErrCloseTimeout is wrapped by CloseWithTimeout when closeFn does not return
// in time. closeFn keeps running in the background.
var ErrCloseTimeout = errors.New("close timed out")

// CloseWithTimeout calls closeFn, waiting at most CloseTimeout.
func CloseWithTimeout(name string, closeFn func() error) error {
	return closeWithin(name, CloseTimeout, closeFn)
}

func closeWithin(name string, limit time.Duration, closeFn func() error) error {
	done := make(chan error, 1)
	go func() { done <- closeFn() }()

	timer := time.NewTimer(limit)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close %s: %w", name, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w after %v", name, ErrCloseTimeout, limit)
	}
}
