// Package empower is the root of the EmPOWER SD-RAN controller.
//
// The controller keeps one authoritative model of a multi-tenant radio
// access network: Wi-Fi access points (WTPs) speaking LVAPP, LTE base
// stations (VBSes) speaking VBSP, and compute nodes (CPPs) hosting virtual
// network functions over LVNFP. Tenants own slices, virtual APs and the
// stations and UEs attached to them.
//
// # Layout
//
//	datatypes    value types shared by every layer (MAC, DPID, DSCP, PLMN, SSID, match)
//	proto        LVAPP, VBSP and LVNFP wire codecs
//	runtime      the registry and its invariants; mutated only on the event loop
//	southbound   device sessions over TCP and WebSocket
//	module       periodic and one-shot workers polling devices
//	modules      the built-in module types
//	apps         tenant applications such as the slice rate controller
//	controller   the event loop owner; persists then applies every change
//	persistence  memory and SQLite sessions
//	api          northbound REST
//	feeds        energy meter ingest
//	eventexport  runtime events to NATS
//	service      listener lifecycle and wiring
//	cmd/empower  the controller binary
//
// # Concurrency
//
// Every runtime read and write happens on the single event loop in
// pkg/loop. Network goroutines decode frames and hand them to the loop;
// REST handlers call into it through the controller and serialize what they
// read before returning.
package empower
