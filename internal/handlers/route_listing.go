package handlers

import (
	"net/http"
	"sort"
	"strings"

	"derjachat/internal/observability"

	"github.com/gin-gonic/gin"
)

// RouteInfo is one registered route
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	HandlerName string `json:"handler_name"`
}

// RouteListing is the body of GET /v1/routes
type RouteListing struct {
	Service  string         `json:"service"`
	Total    int            `json:"total"`
	ByMethod map[string]int `json:"by_method"`
	Routes   []RouteInfo    `json:"routes"`
}

// RouteListingHandler lists the routes of an engine. It is mounted only in debug mode.
type RouteListingHandler struct {
	serviceName string
	routes      []RouteInfo
}

// NewRouteListingHandler creates a new route listing handler
func NewRouteListingHandler(serviceName string) *RouteListingHandler {
	return &RouteListingHandler{
		serviceName: serviceName,
		routes:      []RouteInfo{},
	}
}

// CollectRoutes snapshots the routes of engine, sorted by path then method.
// Call it after every route is registered.
func (h *RouteListingHandler) CollectRoutes(engine *gin.Engine) {
	h.routes = []RouteInfo{}
	for _, route := range engine.Routes() {
		if strings.HasPrefix(route.Path, "/debug/") {
			continue
		}
		h.routes = append(h.routes, RouteInfo{
			Method:      route.Method,
			Path:        route.Path,
			HandlerName: route.Handler,
		})
	}

	sort.Slice(h.routes, func(i, j int) bool {
		if h.routes[i].Path != h.routes[j].Path {
			return h.routes[i].Path < h.routes[j].Path
		}
		return h.routes[i].Method < h.routes[j].Method
	})
}

// Listing builds the response body from the last snapshot
func (h *RouteListingHandler) Listing() RouteListing {
	byMethod := make(map[string]int)
	for _, route := range h.routes {
		byMethod[route.Method]++
	}
	return RouteListing{
		Service:  h.serviceName,
		Total:    len(h.routes),
		ByMethod: byMethod,
		Routes:   h.routes,
	}
}

// GetRouteListingJSON returns the route listing as JSON
func (h *RouteListingHandler) GetRouteListingJSON(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_route_listing_json")
	defer observability.FinishSpan(span, nil)

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.JSON(http.StatusOK, h.Listing())
}
