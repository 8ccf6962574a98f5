//go:build !windows

package client

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyResize delivers terminal size changes on ch.
func notifyResize(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGWINCH)
}
