// Command graphd runs the multi-tenant graph query server: it wires
// the owned service aggregate (pkg/service) to the HTTP transport
// (pkg/httpapi), the full-duplex WebSocket channel (pkg/duplex), and
// the binary framed wire protocol (pkg/wireproto), then blocks until
// SIGINT/SIGTERM triggers a graceful drain.
//
// Flags mirror environment variables under the GRAFEO_ prefix so the
// binary can be configured either way.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/GrafeoDB/grafeo-server/pkg/duplex"
	"github.com/GrafeoDB/grafeo-server/pkg/httpapi"
	"github.com/GrafeoDB/grafeo-server/pkg/multidb"
	"github.com/GrafeoDB/grafeo-server/pkg/service"
	"github.com/GrafeoDB/grafeo-server/pkg/wireproto"
)

func main() {
	address := flag.String("address", envOr("GRAFEO_ADDRESS", "127.0.0.1"), "listen address")
	port := flag.Int("port", envOrInt("GRAFEO_PORT", 8080), "listen port")
	dataRoot := flag.String("data-root", envOr("GRAFEO_DATA_ROOT", "./data"), "directory holding persistent database entries")
	maxDatabases := flag.Int("max-databases", envOrInt("GRAFEO_MAX_DATABASES", 0), "maximum number of databases (0 = unlimited)")
	sessionTTL := flag.Duration("session-ttl", envOrDuration("GRAFEO_SESSION_TTL", 5*time.Minute), "idle timeout for an open transaction session")
	workerCount := flag.Int("workers", envOrInt("GRAFEO_WORKERS", 0), "bounded query worker pool size (0 = default of 4)")
	defaultTimeout := flag.Duration("default-query-timeout", envOrDuration("GRAFEO_DEFAULT_QUERY_TIMEOUT", 30*time.Second), "deadline applied to a query when the caller specifies none (0 = no deadline)")
	rateLimitMax := flag.Int("rate-limit-max", envOrInt("GRAFEO_RATE_LIMIT_MAX", 0), "maximum requests per peer per rate-limit window (0 disables rate limiting)")
	rateLimitWindow := flag.Duration("rate-limit-window", envOrDuration("GRAFEO_RATE_LIMIT_WINDOW", time.Minute), "rate-limit window duration")
	authToken := flag.String("auth-token", os.Getenv("GRAFEO_AUTH_TOKEN"), "bearer/API-key token required of callers (empty disables token auth)")
	authUsername := flag.String("auth-username", os.Getenv("GRAFEO_AUTH_USERNAME"), "HTTP Basic username required of callers (empty disables basic auth)")
	authPassword := flag.String("auth-password", os.Getenv("GRAFEO_AUTH_PASSWORD"), "HTTP Basic password")
	uiRoot := flag.String("ui-root", envOr("GRAFEO_UI_ROOT", "/ui/"), "redirect target for GET / (empty for headless mode)")
	drainTimeout := flag.Duration("drain-timeout", envOrDuration("GRAFEO_DRAIN_TIMEOUT", 30*time.Second), "graceful shutdown budget")
	wireAddress := flag.String("wire-address", envOr("GRAFEO_WIRE_ADDRESS", "127.0.0.1"), "listen address for the binary wire protocol")
	wirePort := flag.Int("wire-port", envOrInt("GRAFEO_WIRE_PORT", 9090), "listen port for the binary wire protocol (0 disables it)")
	flag.Parse()

	svc, err := service.New(service.Config{
		DataRoot:        *dataRoot,
		SupportedKinds:  []multidb.Kind{multidb.KindLPG, multidb.KindRDF},
		MaxDatabases:    *maxDatabases,
		SessionTTL:      *sessionTTL,
		WorkerCount:     *workerCount,
		DefaultTimeout:  *defaultTimeout,
		RateLimitMax:    *rateLimitMax,
		RateLimitWindow: *rateLimitWindow,
		AuthToken:       *authToken,
		AuthUsername:    *authUsername,
		AuthPassword:    *authPassword,
	})
	if err != nil {
		log.Fatalf("graphd: %v", err)
	}

	httpConfig := httpapi.DefaultConfig()
	httpConfig.Address = *address
	httpConfig.Port = *port
	httpConfig.UIRoot = *uiRoot
	httpConfig.DrainTimeout = *drainTimeout

	server := httpapi.New(svc, httpConfig)
	server.SetDuplexHandler(duplex.New(svc.Dispatcher).ServeHTTP)

	if err := server.Start(); err != nil {
		log.Fatalf("graphd: %v", err)
	}
	log.Printf("graphd: listening on %s", server.Addr())

	var wireServer *wireproto.Server
	if *wirePort != 0 {
		wireConfig := wireproto.DefaultConfig()
		wireConfig.Address = *wireAddress
		wireConfig.Port = *wirePort
		wireServer = wireproto.New(svc, wireConfig)
		if err := wireServer.Start(); err != nil {
			log.Fatalf("graphd: %v", err)
		}
		log.Printf("graphd: wire protocol listening on %s", wireServer.Addr())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("graphd: received %s, draining", sig)

	ctx, cancel := context.WithTimeout(context.Background(), *drainTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("graphd: http drain: %v", err)
	}
	if wireServer != nil {
		if err := wireServer.Stop(ctx); err != nil {
			log.Printf("graphd: wire protocol drain: %v", err)
		}
	}
	if err := svc.Shutdown(ctx, *drainTimeout); err != nil {
		log.Printf("graphd: service shutdown: %v", err)
	}
	log.Print("graphd: stopped")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		fmt.Fprintf(os.Stderr, "graphd: invalid %s=%q, using default %d\n", key, v, fallback)
		return fallback
	}
	return n
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		fmt.Fprintf(os.Stderr, "graphd: invalid %s=%q, using default %s\n", key, v, fallback)
		return fallback
	}
	return d
}
