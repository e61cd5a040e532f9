package service

import "strings"

// Route is where a task or notification for a given kind sends the user
type Route struct {
	Module string `mapstructure:"module" json:"module"`
	// URL may contain {id} (approval id) and {reference_id}
	URL string `mapstructure:"url" json:"url"`
}

// fallbackRoute serves kinds missing from the table
var fallbackRoute = Route{Module: "workflow", URL: "/workflow/approvals/{id}"}

// DefaultRoutes maps the business kinds the suite ships with
func DefaultRoutes() map[string]Route {
	return map[string]Route{
		"purchase-requisition": {Module: "procurement", URL: "/procurement/requisitions/{reference_id}"},
		"purchase-order":       {Module: "procurement", URL: "/procurement/orders/{reference_id}"},
		"expense-claim":        {Module: "expenses", URL: "/expenses/claims/{reference_id}"},
		"vendor-bill":          {Module: "payables", URL: "/payables/bills/{reference_id}"},
		"asset-disposal":       {Module: "assets", URL: "/assets/disposals/{reference_id}"},
		"document":             {Module: "documents", URL: "/documents/{reference_id}"},
	}
}

// RouteTable resolves kind to module routing. It is read-only after construction.
type RouteTable struct {
	routes map[string]Route
}

// NewRouteTable merges overrides on top of DefaultRoutes
func NewRouteTable(overrides map[string]Route) *RouteTable {
	routes := DefaultRoutes()
	for kind, r := range overrides {
		routes[strings.ToLower(kind)] = r
	}
	return &RouteTable{routes: routes}
}

// Resolve returns the module and expanded URL for kind
func (t *RouteTable) Resolve(kind, approvalID, referenceID string) Route {
	r, ok := t.routes[strings.ToLower(kind)]
	if !ok {
		r = fallbackRoute
	}
	url := strings.NewReplacer("{id}", approvalID, "{reference_id}", referenceID).Replace(r.URL)
	return Route{Module: r.Module, URL: url}
}
