// File: internal/netcore/loader.go
// Author: momentics <momentics@gmail.com>
//
// DriverLoader is an explicit mount table from api.Transport to its
// Driver, split out of Engine so the fixed Tcp/FramedTcp/Udp/Ws set
// wired in engine.go is a policy Engine applies rather than a layout
// Engine hard-codes. Grounded on the original source's adapter
// registration table (network/loader.rs, adapters/template.rs): one
// slot per transport, mounted once at startup, looked up by adapter id
// on every dispatch.
package netcore

import "github.com/momentics/netcore/api"

// DriverLoader is a fixed-size mount table indexed by
// api.Transport.AdapterID(). Mounting twice at the same slot replaces
// the previous driver; Engine mounts exactly one driver per known
// transport and never remounts after NewEngine returns.
type DriverLoader struct {
	slots [api.MaxAdapters]Driver
}

func newDriverLoader() *DriverLoader {
	return &DriverLoader{}
}

func (l *DriverLoader) mount(d Driver) {
	l.slots[d.Transport().AdapterID()] = d
}

func (l *DriverLoader) get(t api.Transport) Driver {
	return l.slots[t.AdapterID()]
}

func (l *DriverLoader) getByAdapterID(adapterID uint8) Driver {
	if int(adapterID) >= len(l.slots) {
		return nil
	}
	return l.slots[adapterID]
}

// mounted returns every currently mounted driver, skipping empty
// slots, for shutdown iteration.
func (l *DriverLoader) mounted() []Driver {
	out := make([]Driver, 0, 4)
	for _, d := range l.slots {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}
