package auth

import "strings"

type StaffPermission string

const (
	PermOrders        StaffPermission = "orders"
	PermOrdersCancel  StaffPermission = "orders_cancel"
	PermOrdersBulk    StaffPermission = "orders_bulk"
	PermKitchenTimers StaffPermission = "kitchen_timers"
	PermNotifications StaffPermission = "notifications"
)

var apiPermissionMap = map[string]StaffPermission{
	"/api/staff/queue":                PermOrders,
	"/api/staff/orders":               PermOrders,
	"/api/staff/selection":            PermOrders,
	"/api/staff/alerts":               PermOrders,
	"/api/staff/timers":               PermKitchenTimers,
	"/api/staff/bulk":                 PermOrdersBulk,
	"/api/staff/notifications":        PermNotifications,
	"POST /api/staff/orders/*/cancel": PermOrdersCancel,
	"POST /api/staff/orders/*/timers": PermKitchenTimers,
}

// GetPermissionForAPI returns the most specific permission guarding the route, or nil.
// A "*" path segment matches exactly one segment.
func GetPermissionForAPI(path string, method string) *StaffPermission {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestPerm *StaffPermission
	var bestMethodSpecific bool

	for key, perm := range apiPermissionMap {
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod := strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if !matchPathPrefix(path, keyPath) {
			continue
		}

		if bestPerm == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			permCopy := perm
			bestPerm = &permCopy
		}
	}

	return bestPerm
}

// HasPermission treats owners as holding every permission.
func HasPermission(claims *Claims, perm StaffPermission) bool {
	if claims == nil {
		return false
	}
	if claims.Role == RoleMerchantOwner {
		return true
	}
	for _, p := range claims.Permissions {
		if p == string(perm) {
			return true
		}
	}
	return false
}

func matchPathPrefix(path, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.HasPrefix(path, pattern)
	}
	got := strings.Split(strings.Trim(path, "/"), "/")
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(got) < len(want) {
		return false
	}
	for i, seg := range want {
		if seg != "*" && seg != got[i] {
			return false
		}
	}
	return true
}
