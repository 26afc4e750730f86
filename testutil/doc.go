// Package testutil provides in-memory stand-ins and fixtures for controller
// tests.
//
// Link records the frames a device session would send and Scheduler
// captures timers instead of arming them, so module and app tests drive
// time by hand. NewRuntime, OnlineWTP and the related helpers build a
// runtime with connected devices. Publisher records what the event
// exporter hands to NATS.
//
// Every type is safe for concurrent use.
package testutil
