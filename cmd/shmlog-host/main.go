package main

import (
	"github.com/jrepp/shmlog"
	"github.com/jrepp/shmlog/pkg/host"
)

// main is the entrypoint for the shmlog host.
//
// All boilerplate (config loading, flag parsing, lifecycle management)
// is handled by host.Serve(). The plugin does not touch the shared
// segment until its Initialize lifecycle method is called.
func main() {
	host.Serve(func() host.Plugin {
		return shmlog.NewPlugin("0.1.0")
	}, host.ServeOptions{
		DefaultName:    "shmlog-host",
		DefaultVersion: "0.1.0",
		DefaultPort:    9090,
		ConfigPath:     "config.yaml",
	})
}
