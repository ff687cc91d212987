// Package logging configures github.com/golang/glog, the logging
// library every core package in this module writes through, from a
// cobra CLI's own flags instead of glog's usual standalone flag.Parse.
package logging

import (
	"flag"

	log "github.com/golang/glog"
)

// Init routes glog output to stderr and, when verbose is set, raises its
// verbosity level. Safe to call more than once.
func Init(verbose bool) {
	flag.Set("logtostderr", "true")
	if verbose {
		flag.Set("v", "2")
	}
}

// Flush flushes any buffered glog output; call before process exit.
func Flush() {
	log.Flush()
}
