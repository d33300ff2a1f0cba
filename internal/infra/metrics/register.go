package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

// register queues collectors from the init funcs of this package.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// RegisterWith adds the OCR, batch and build collectors to reg.
func RegisterWith(reg prometheus.Registerer) error {
	for _, c := range pending {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}
	return nil
}

// MustRegister exposes the collectors on the default registry. Later calls
// are no-ops.
func MustRegister() {
	registerOnce.Do(func() {
		if err := RegisterWith(prometheus.DefaultRegisterer); err != nil {
			panic(err)
		}
	})
}
