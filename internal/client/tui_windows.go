//go:build windows

package client

import "os"

// Windows consoles raise no resize signal; the view redraws on updates only.
func notifyResize(chan<- os.Signal) {}
