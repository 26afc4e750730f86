// Package slicer is a tenant app moving UEs into a configured RAN slice.
package slicer

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/apps"
	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// Name is the app type.
const Name = "slicer"

// Registration describes the app type.
func Registration() apps.Registration {
	return apps.Registration{
		Name:        Name,
		Description: "Assigns joining UEs to a DSCP slice",
		Factory:     New,
	}
}

type params struct {
	DSCP  *datatypes.DSCP `json:"dscp"`
	IMSIs []string        `json:"imsis"`
	Every int64           `json:"every"`
}

// Slicer moves UEs of its tenant into DSCP. With IMSIs set only those
// subscribers are moved. A positive Every re-applies the assignment
// periodically, catching UEs moved back by hand.
type Slicer struct {
	DSCP     datatypes.DSCP `json:"dscp"`
	IMSIs    []string       `json:"imsis,omitempty"`
	Every    time.Duration  `json:"every"`
	Assigned int            `json:"assigned"`

	imsis       map[string]struct{}
	env         apps.Env
	unsubscribe func()
	timer       *time.Timer
	running     bool
}

// New builds the app from {"dscp": "0x40", "imsis": [...], "every": ms}.
func New(raw json.RawMessage) (apps.App, error) {
	var p params
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Invalidf(errors.ErrInvalidData, "slicer params: %v", err)
	}
	if p.DSCP == nil {
		return nil, errors.Invalidf(errors.ErrMissingParam, "dscp")
	}
	if p.Every < 0 {
		return nil, errors.Invalidf(errors.ErrInvalidData, "every must not be negative")
	}
	s := &Slicer{DSCP: *p.DSCP, IMSIs: p.IMSIs, Every: time.Duration(p.Every) * time.Millisecond}
	if len(p.IMSIs) > 0 {
		s.imsis = make(map[string]struct{}, len(p.IMSIs))
		for _, imsi := range p.IMSIs {
			s.imsis[imsi] = struct{}{}
		}
	}
	return s, nil
}

// Start checks the slice exists, assigns the UEs already attached and
// follows new ones.
func (s *Slicer) Start(_ context.Context, env apps.Env) error {
	t, ok := env.Runtime.Tenant(env.Tenant)
	if !ok {
		return errors.Invalidf(errors.ErrNotFound, "tenant %s", env.Tenant)
	}
	if _, ok := t.Slices[s.DSCP]; !ok {
		return errors.Invalidf(errors.ErrInvalidDSCP, "no slice %s in tenant %s", s.DSCP, t.Name)
	}
	s.env = env
	s.running = true
	s.unsubscribe = env.Runtime.Bus().Subscribe(runtime.EventUEJoin, env.Tenant, func(e runtime.Event) {
		if u, ok := e.Subject.(*runtime.UE); ok {
			s.assign(u)
		}
	})
	s.reconcile()
	return nil
}

func (s *Slicer) reconcile() {
	if !s.running {
		return
	}
	for _, u := range s.env.Runtime.UEs() {
		if u.Tenant == s.env.Tenant {
			s.assign(u)
		}
	}
	if s.Every > 0 && s.env.Scheduler != nil {
		s.timer = s.env.Scheduler.AfterFunc(s.Every, s.reconcile)
	}
}

func (s *Slicer) wants(u *runtime.UE) bool {
	if s.imsis == nil {
		return true
	}
	_, ok := s.imsis[u.IMSI]
	return ok
}

func (s *Slicer) assign(u *runtime.UE) {
	if u.Slice == s.DSCP || !s.wants(u) {
		return
	}
	if err := s.env.Runtime.SetUESlice(u.ID, s.DSCP); err != nil {
		s.env.Logger.Warn("UE slice assignment failed", "ue", u.ID, "dscp", s.DSCP, "error", err)
		return
	}
	s.Assigned++
	s.env.Logger.Info("UE assigned to slice", "ue", u.ID, "imsi", u.IMSI, "dscp", s.DSCP)
}

// Stop releases the subscription and the timer.
func (s *Slicer) Stop() {
	s.running = false
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
