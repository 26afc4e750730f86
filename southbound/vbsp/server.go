package vbsp

import (
	"fmt"

	"github.com/5g-empower/empower-runtime-sub001/southbound"
)

// DefaultPort is the VBSP listening port.
const DefaultPort = 2210

// Protocol labels sessions in logs and metrics.
const Protocol = "vbsp"

// NewServer returns the VBS listener. port 0 binds an ephemeral port.
func NewServer(host string, port int, exec southbound.Executor, rt Runtime, modules ModuleRouter, opts southbound.Options) *southbound.Server {
	return southbound.NewServer(southbound.ServerConfig{
		Protocol:   Protocol,
		Addr:       fmt.Sprintf("%s:%d", host, port),
		Framing:    Framing,
		Executor:   exec,
		NewHandler: NewHandler(rt, modules),
		Options:    opts,
	})
}
