package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Example_basicUsage demonstrates basic metrics configuration.
func Example_basicUsage() {
	registry := NewRegistry(prometheus.NewRegistry())

	registry.TasksScheduled.WithLabelValues("convergence").Add(3)
	registry.TasksCompleted.WithLabelValues("convergence").Add(2)

	fmt.Println(testutil.ToFloat64(registry.TasksScheduled.WithLabelValues("convergence")))
	fmt.Println(testutil.ToFloat64(registry.TasksCompleted.WithLabelValues("convergence")))

	// Output:
	// 3
	// 2
}

// Example_customNamespace demonstrates overriding the namespace.
func Example_customNamespace() {
	promRegistry := prometheus.NewRegistry()
	registry := NewRegistryFromConfig(Config{
		Enabled:   true,
		Registry:  promRegistry,
		Namespace: "myapp",
	})

	registry.PoolSize.WithLabelValues("io").Set(4)

	families, _ := promRegistry.Gather()
	for _, f := range families {
		fmt.Println(f.GetName())
	}

	// Output:
	// myapp_executor_pool_size
}
