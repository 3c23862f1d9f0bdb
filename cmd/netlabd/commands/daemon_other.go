//go:build !linux

package commands

import "errors"

// runDaemon is unavailable outside Linux: the TAP device driver this daemon
// depends on (driver.Tap) is Linux-only.
func runDaemon(path string) error {
	return errors.New("netlabd requires linux (TAP device support)")
}
