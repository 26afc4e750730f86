package lvnfp

import (
	"fmt"

	"github.com/5g-empower/empower-runtime-sub001/southbound"
)

// DefaultPort is the LVNFP listening port.
const DefaultPort = 4422

// Protocol labels sessions in logs and metrics.
const Protocol = "lvnfp"

// NewServer returns the CPP WebSocket listener, upgrading on "/".
func NewServer(host string, port int, exec southbound.Executor, rt Runtime, modules ModuleRouter, opts southbound.Options) *southbound.WebSocketServer {
	return southbound.NewWebSocketServer(southbound.WebSocketConfig{
		Protocol:   Protocol,
		Addr:       fmt.Sprintf("%s:%d", host, port),
		Path:       "/",
		Executor:   exec,
		NewHandler: NewHandler(rt, modules),
		Options:    opts,
	})
}
