package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// mutationsTotal tracks remote cart writes by operation and result.
var mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_cart_mutations_total",
	Help: "Total cart mutations by operation and result",
}, []string{"op", "result"}) // op: add, update, remove, clear; result: ok, error, login_required
