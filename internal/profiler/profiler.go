// Package profiler exposes net/http/pprof on a separate listener.
package profiler

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"sync"

	"github.com/Tyrowin/hellochat/internal/logger"
)

type Config struct {
	Host string
	Port int
}

var (
	once = sync.Once{}
)

// Start launches the profiler listener once per process.
func Start(cfg *Config, log *logger.Logger) {
	once.Do(func() {
		log.Info().
			Str("addr", Addr(cfg)).
			Msg("starting profiler")
		go func() {
			err := http.ListenAndServe(Addr(cfg), Handler())
			if err != nil {
				log.Error().Err(err).Msg("profiler stopped")
			}
		}()
	})
}

// Handler serves the pprof endpoints under /debug/pprof/.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Addr returns the listen address for cfg.
func Addr(cfg *Config) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
