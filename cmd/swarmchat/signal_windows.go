//go:build windows

package main

import "os"

// terminationSignals lists the signals that trigger a graceful shutdown.
// Windows has no SIGTERM equivalent wired through os/signal.
var terminationSignals = []os.Signal{os.Interrupt}
