package router

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Router is a minimal mux with wildcard segments and a colored access log.
type Router struct {
	routes map[string]HandlerFunc // key = METHOD:PATH
	order  []string               // registration order decides wildcard priority
	paths  map[string]bool
}

func New() *Router {
	return &Router{
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
	}
}

// ServeHTTP dispatches, logging every request with its status and latency.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	if h, ok := r.routes[req.Method+":"+req.URL.Path]; ok {
		h(lrw, req)
	} else if h := r.matchWildcard(req.Method, req.URL.Path); h != nil {
		h(lrw, req)
	} else if r.paths[req.URL.Path] {
		http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
	} else {
		http.Error(lrw, "Not Found", http.StatusNotFound)
	}

	duration := time.Since(start)
	log.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
		colorCyan, start.Format("2006-01-02 15:04:05"), colorReset,
		methodColor(req.Method), req.Method, colorReset,
		req.URL.Path,
		statusColor(lrw.statusCode), lrw.statusCode, colorReset,
		colorBlue, duration, colorReset,
	)
}

// matchWildcard finds the first registered wildcard route matching the
// request, in registration order.
func (r *Router) matchWildcard(method, path string) HandlerFunc {
	for _, key := range r.order {
		routeMethod, routePath, _ := strings.Cut(key, ":")
		if routeMethod != method || !strings.Contains(routePath, "*") {
			continue
		}
		if matchSegments(path, routePath) {
			return r.routes[key]
		}
	}
	return nil
}

// matchSegments matches a request path against a route pattern where "*"
// matches one segment, and a trailing "*" matches any number of remaining
// segments.
func matchSegments(requestPath, routePattern string) bool {
	reqSegs := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegs := strings.Split(strings.Trim(routePattern, "/"), "/")

	// A trailing "*" swallows any number of remaining segments.
	if len(routeSegs) > 0 && routeSegs[len(routeSegs)-1] == "*" {
		if len(reqSegs) < len(routeSegs)-1 {
			return false
		}
		for i, seg := range routeSegs[:len(routeSegs)-1] {
			if seg != "*" && reqSegs[i] != seg {
				return false
			}
		}
		return true
	}

	if len(reqSegs) != len(routeSegs) {
		return false
	}
	for i, seg := range routeSegs {
		if seg != "*" && reqSegs[i] != seg {
			return false
		}
	}
	return true
}

func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	if _, exists := r.routes[key]; !exists {
		r.order = append(r.order, key)
	}
	r.routes[key] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)    { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)   { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)    { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc)  { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) { r.register(http.MethodDelete, path, handler) }

// Routes exposes the routing table for tests.
func (r *Router) Routes() map[string]HandlerFunc { return r.routes }

// Start runs the server on addr.
func (r *Router) Start(addr string) {
	log.Printf("🚀 Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset)
	log.Fatal(http.ListenAndServe(addr, r))
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodPut, http.MethodPatch:
		return colorYellow
	case http.MethodDelete:
		return colorRed
	default:
		return colorCyan
	}
}
