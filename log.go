package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog/v2"

	"caching-balancer/lru"
)

// Subsystem defines the logging code for the load balancer itself.
const Subsystem = "LBAL"

// lbalLog is the load balancer logger. It is disabled until setupLoggers
// runs.
var lbalLog btclog.Logger = btclog.Disabled

// setupLoggers points every subsystem at a console backend with the given
// level.
func setupLoggers(level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("invalid debug level %q", level)
	}

	backend := btclog.NewSLogger(btclog.NewDefaultHandler(os.Stdout))

	lbalLog = backend.SubSystem(Subsystem)
	lbalLog.SetLevel(lvl)

	lruLog := backend.SubSystem(lru.Subsystem)
	lruLog.SetLevel(lvl)
	lru.UseLogger(lruLog)

	return nil
}
