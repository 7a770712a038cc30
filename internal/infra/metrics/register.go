package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu         sync.Mutex
	pending    []prometheus.Collector
	registered bool
)

// register queues collectors from each file's init.
func register(cs ...prometheus.Collector) {
	mu.Lock()
	pending = append(pending, cs...)
	mu.Unlock()
}

// RegisterWith registers the queued collectors on reg. Later calls are no-ops.
func RegisterWith(reg prometheus.Registerer) error {
	mu.Lock()
	defer mu.Unlock()
	if registered {
		return nil
	}
	for _, c := range pending {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	registered = true
	return nil
}

// MustRegister registers on the default registry and panics on conflicts.
func MustRegister() {
	if err := RegisterWith(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
