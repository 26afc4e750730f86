package module

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvnfp"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// Kind selects how a module is dispatched.
type Kind string

// Dispatch kinds.
const (
	KindSingle    Kind = "single"
	KindPeriodic  Kind = "periodic"
	KindScheduled Kind = "scheduled"
	KindTrigger   Kind = "trigger"
)

// Callback is invoked after a module has handled a response.
type Callback func(Module)

// Base is the state every module carries. Concrete modules embed it.
type Base struct {
	ID     uint32    `json:"module_id"`
	Type   string    `json:"module_type"`
	Tenant uuid.UUID `json:"tenant_id"`
	Kind   Kind      `json:"kind"`
	Every  Interval  `json:"every"`

	callbacks []Callback
	running   bool
	stop      func() bool
}

// Info returns the common state.
func (b *Base) Info() *Base { return b }

// OnResponse adds a callback run after every handled response.
func (b *Base) OnResponse(cb Callback) {
	if cb != nil {
		b.callbacks = append(b.callbacks, cb)
	}
}

// Module is a live module instance.
type Module interface {
	Info() *Base
	// Key is the canonical form of the identifying parameters.
	Key() string
	// RunOnce issues the module request. Errors wrapping ErrNotFound,
	// ErrDeviceOffline or ErrTenantNotMember mean the target is gone and the
	// module is unloaded.
	RunOnce(rt *runtime.Runtime) error
}

// LVAPPResponder handles LVAPP frames correlated to the module.
type LVAPPResponder interface {
	HandleLVAPP(rt *runtime.Runtime, wtp datatypes.EtherAddress, msg lvapp.ModuleMessage) error
}

// VBSPResponder handles successful VBSP frames correlated to the module.
type VBSPResponder interface {
	HandleVBSP(rt *runtime.Runtime, vbs datatypes.EtherAddress, f vbsp.Frame) error
}

// LVNFPResponder handles LVNFP frames correlated to the module.
type LVNFPResponder interface {
	HandleLVNFP(rt *runtime.Runtime, cpp datatypes.EtherAddress, msg lvnfp.ModuleMessage) error
}

// Unloader tells the device to stop serving the module.
type Unloader interface {
	Unload(rt *runtime.Runtime)
}

// Watcher modules are unloaded when an event shows their target is gone.
type Watcher interface {
	Affected(e runtime.Event) bool
}

// Interval is a duration expressed in milliseconds in JSON.
type Interval time.Duration

// Duration returns i as a time.Duration.
func (i Interval) Duration() time.Duration { return time.Duration(i) }

// MarshalJSON implements json.Marshaler.
func (i Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(i).Milliseconds())
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Interval) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return errors.Invalidf(errors.ErrInvalidData, "every: %v", err)
	}
	*i = Interval(time.Duration(ms) * time.Millisecond)
	return nil
}

// commonParams are read by the Framework for every module type.
type commonParams struct {
	Every *Interval `json:"every"`
}

// DecodeParams unmarshals raw into v after checking that every required field
// is present. Unknown fields other than the common ones are rejected.
func DecodeParams(raw json.RawMessage, v any, required ...string) error {
	fields, err := paramFields(raw)
	if err != nil {
		return err
	}
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			return errors.Invalidf(errors.ErrMissingParam, "%s", name)
		}
	}
	delete(fields, "every")
	own, err := json.Marshal(fields)
	if err != nil {
		return errors.Invalidf(errors.ErrInvalidData, "parameters: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(own))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.IsInvalid(err) {
			return err
		}
		return errors.Invalidf(errors.ErrInvalidData, "parameters: %v", err)
	}
	return nil
}

func paramFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Invalidf(errors.ErrInvalidData, "parameters: %v", err)
	}
	return fields, nil
}

func decodeCommon(raw json.RawMessage) (commonParams, error) {
	var c commonParams
	fields, err := paramFields(raw)
	if err != nil {
		return c, err
	}
	if every, ok := fields["every"]; ok {
		var i Interval
		if err := json.Unmarshal(every, &i); err != nil {
			return c, err
		}
		c.Every = &i
	}
	return c, nil
}

// targetGone reports whether a RunOnce error means the module has nothing
// left to talk to.
func targetGone(err error) bool {
	return errors.Is(err, errors.ErrNotFound) ||
		errors.Is(err, errors.ErrDeviceOffline) ||
		errors.Is(err, errors.ErrTenantNotMember)
}

func equivalenceKey(b *Base, key string) string {
	return fmt.Sprintf("%s|%d|%s", b.Tenant, time.Duration(b.Every).Milliseconds(), key)
}
