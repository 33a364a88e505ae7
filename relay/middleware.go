package relay

import (
	"net/http"
	"runtime"
	"time"
)

// noStore sets the response headers shared by every relay route. Every
// answer describes live state, so nothing may be cached.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-store")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// headAsGet routes HEAD requests to the GET handlers. net/http drops the
// body of HEAD responses.
func headAsGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// RuntimeStats is a point-in-time view of the relay process.
type RuntimeStats struct {
	Goroutines int     `json:"goroutines"`
	AllocMB    float64 `json:"alloc_mb"`
	SysMB      float64 `json:"sys_mb"`
	GCCount    uint32  `json:"gc_count"`
	UptimeSec  int64   `json:"uptime_sec"`
}

func readRuntime(started time.Time) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeStats{
		Goroutines: runtime.NumGoroutine(),
		AllocMB:    float64(mem.Alloc) / 1024 / 1024,
		SysMB:      float64(mem.Sys) / 1024 / 1024,
		GCCount:    mem.NumGC,
		UptimeSec:  int64(time.Since(started).Seconds()),
	}
}
