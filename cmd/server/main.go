package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/rasterlab/bmpview/internal/config"
	"github.com/rasterlab/bmpview/internal/handler"
	"github.com/rasterlab/bmpview/internal/logging"
	"github.com/rasterlab/bmpview/web"
)

const (
	appName    = "BMP HTML5 Viewer"
	appVersion = "v1.0.0"
)

func main() {
	hostFlag := flag.String("host", "", "server listen host")
	portFlag := flag.String("port", "", "server listen port")
	dirFlag := flag.String("dir", "", "directory with bitmap files to serve")
	logLevelFlag := flag.String("log-level", "", "log level (debug, info, warn, error)")
	configFlag := flag.String("config", "", "path to YAML config file")
	helpFlag := flag.Bool("help", false, "show help")
	versionFlag := flag.Bool("version", false, "show version")

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *versionFlag {
		fmt.Printf("%s %s\n", appName, appVersion)
		return
	}

	opts := config.LoadOptions{
		Host:       strings.TrimSpace(*hostFlag),
		Port:       strings.TrimSpace(*portFlag),
		Dir:        strings.TrimSpace(*dirFlag),
		LogLevel:   strings.TrimSpace(*logLevelFlag),
		ConfigFile: strings.TrimSpace(*configFlag),
	}

	cfg, err := config.LoadWithOverrides(opts)
	if err != nil {
		logging.Error("load config: %v", err)
		return
	}

	logging.SetLevelFromString(cfg.Logging.Level)

	server, err := createServer(cfg)
	if err != nil {
		logging.Error("create server: %v", err)
		return
	}

	logging.Info("serving %s on %s:%s", cfg.Viewer.Dir, cfg.Server.Host, cfg.Server.Port)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("server: %v", err)
	}
}

func createServer(cfg *config.Config) (*http.Server, error) {
	staticFS, err := web.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	viewer := handler.New(cfg, logging.Default())

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/files", viewer.List)
	mux.HandleFunc("/info", viewer.Info)
	mux.HandleFunc("/view", viewer.View)

	h := securityHeadersMiddleware(corsMiddleware(mux, cfg.Security.AllowedOrigins))
	if cfg.Security.EnableGzip {
		h = gzipMiddleware(h)
	}
	h = requestLoggingMiddleware(h)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:")

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if handler.OriginAllowed(origin, allowedOrigins, r.Host, false) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// gzipResponseWriter compresses the response body.
type gzipResponseWriter struct {
	http.ResponseWriter
	zw *gzip.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.zw.Write(b)
}

func gzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades must see the raw connection.
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") ||
			strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		defer zw.Close()

		next.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, zw: zw}, r)
	})
}

func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debug("%s %s %s %s", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}

func showHelp() {
	fmt.Println(appName)
	fmt.Println("USAGE: bmpview [options]")
	fmt.Println("OPTIONS:")
	fmt.Println("  -host        Set server listen host (default 0.0.0.0)")
	fmt.Println("  -port        Set server listen port (default 8080)")
	fmt.Println("  -dir         Set the bitmap directory to serve (default .)")
	fmt.Println("  -log-level   Set log level (debug, info, warn, error)")
	fmt.Println("  -config      Load settings from a YAML file")
	fmt.Println("  -version     Show version information")
	fmt.Println("  -help        Show this help message")
	fmt.Println("ENVIRONMENT VARIABLES: SERVER_HOST, SERVER_PORT, VIEWER_DIR, LOG_LEVEL, ALLOWED_ORIGINS, ENABLE_GZIP")
	fmt.Println("EXAMPLES: bmpview -dir ./testdata -port 8080")
}
