package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// routeOverrides names routes whose path does not read as an action.
var routeOverrides = map[string]ActionResource{
	"POST /auth/login-and-sign-up-with-oauth":    {Action: "login_federated", Resource: "auth"},
	"POST /auth/login-and-sign-up-with-linkedin": {Action: "login_linkedin", Resource: "auth"},
	"POST /user/generate-forget-password-link":   {Action: "password_reset_requested", Resource: "user"},
	"POST /user/regenerate-email-link":           {Action: "verification_requested", Resource: "user"},
	"POST /user/change-password-from-link":       {Action: "password_reset", Resource: "user"},
	"GET /user":                                  {Action: "get_profile", Resource: "user"},
}

// ParseRoute returns action and resource for an HTTP method and route pattern (e.g. POST /user/verify-otp).
// Resource is the first path segment; action is the rest of the path with dashes as underscores,
// or a verb derived from the method when the route has a single segment.
func ParseRoute(method, route string) ActionResource {
	method = strings.ToUpper(method)
	if ar, ok := routeOverrides[method+" "+route]; ok {
		return ar
	}
	segments := strings.FieldsFunc(route, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ActionResource{Action: methodToAction(method), Resource: "unknown"}
	}
	resource := strings.ToLower(segments[0])
	if len(segments) == 1 {
		return ActionResource{Action: methodToAction(method), Resource: resource}
	}
	action := strings.ToLower(strings.Join(segments[1:], "_"))
	action = strings.ReplaceAll(action, "-", "_")
	return ActionResource{Action: action, Resource: resource}
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "get"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
