package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// StartProfiling starts continuous profiling when PYROSCOPE_SERVER_ADDRESS is set.
// It returns a stop function that is always safe to call.
func StartProfiling(appName string) func() {
	addr := strings.TrimSpace(os.Getenv("PYROSCOPE_SERVER_ADDRESS"))
	if addr == "" {
		return func() {}
	}

	runtime.SetMutexProfileFraction(5)
	runtime.SetBlockProfileRate(5)

	hostname, _ := os.Hostname()
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   addr,
		Logger:          nil,
		Tags:            map[string]string{"hostname": hostname},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileBlockCount,
		},
	})
	if err != nil {
		fmt.Printf("[WARN] pyroscope profiling disabled: %v\n", err)
		return func() {}
	}
	fmt.Printf("[STARTUP] pyroscope profiling enabled server=%s app=%s\n", addr, appName)
	return func() { _ = profiler.Stop() }
}
