package methodrouter

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

// NewMethodRouter creates a new method router.
func NewMethodRouter() *MethodRouter {
	r := router.New()
	r.RedirectTrailingSlash = false

	return &MethodRouter{r}
}

// MethodRouter registers one handler for several methods at once.
type MethodRouter struct {
	*router.Router
}

// HandleFunc registers a route that handles both paths and methods.
// GET is used when no methods are passed.
func (mr *MethodRouter) HandleFunc(path string, f fasthttp.RequestHandler, methods ...string) {
	if len(methods) == 0 {
		methods = []string{fasthttp.MethodGet}
	}

	for _, method := range methods {
		mr.Handle(method, path, f)
	}
}
