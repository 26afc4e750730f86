package runtime

import (
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvnfp"
)

// SendCPP queues msg on the session of the CPP at addr.
func (r *Runtime) SendCPP(addr datatypes.EtherAddress, msg lvnfp.Message) error {
	c, ok := r.cpps[addr]
	if !ok {
		return notFound("cpp", addr)
	}
	return c.send(msg)
}

// HelloCPP handles a CPP heartbeat received on link.
func (r *Runtime) HelloCPP(addr datatypes.EtherAddress, link Link, seq uint32, period time.Duration) error {
	c, ok := r.cpps[addr]
	if !ok {
		return notFound("cpp", addr)
	}
	if r.bind(KindCPP, &c.Device, link, seq, period) {
		return c.send(&lvnfp.CapsRequest{})
	}
	return nil
}

// CPPCaps records the datapath and ports of a CPP and brings it online.
func (r *Runtime) CPPCaps(addr datatypes.EtherAddress, caps *lvnfp.CapsResponse) error {
	c, ok := r.cpps[addr]
	if !ok || !c.IsConnected() {
		return notFound("cpp", addr)
	}
	c.DPID = caps.DPID
	c.Ports = make(map[uint16]Port, len(caps.Ports))
	for _, p := range caps.Ports {
		c.Ports[uint16(p.PortID)] = Port{HWAddr: p.HWAddr, PortID: uint16(p.PortID), Iface: p.Iface}
	}
	dp := &Datapath{DPID: caps.DPID, CPP: addr, Ports: make(map[uint16]Port, len(c.Ports))}
	for id, p := range c.Ports {
		dp.Ports[id] = p
	}
	r.datapaths[caps.DPID] = dp
	first := c.State != StateOnline
	c.State = StateOnline
	r.logger.Info("CPP online", "cpp", addr, "dpid", caps.DPID, "ports", len(c.Ports))
	r.updateGauges()
	if first {
		r.publish(Event{Type: EventCPPUp, Subject: c, Attrs: map[string]string{"cpp": addr.String(), "dpid": caps.DPID.String()}})
	}
	return nil
}
