package lvapp

import (
	"fmt"

	"github.com/5g-empower/empower-runtime-sub001/southbound"
)

// DefaultPort is the LVAPP listening port.
const DefaultPort = 4433

// Protocol labels sessions in logs and metrics.
const Protocol = "lvapp"

// NewServer returns the WTP listener. port 0 binds an ephemeral port.
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
