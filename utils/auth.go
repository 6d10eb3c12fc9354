package utils

import (
	"log"
	"net/http"

	"github.com/pocketbase/pocketbase/core"
)

// RequireAuth is middleware that requires authentication
func RequireAuth(e *core.RequestEvent) error {
	if e.Auth == nil {
		log.Printf("[Auth] Unauthorized request to %s from %s", e.Request.URL.Path, e.RealIP())
		return e.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Unauthorized",
		})
	}
	return e.Next()
}

// RequireAdmin is middleware that requires admin role
func RequireAdmin(e *core.RequestEvent) error {
	if e.Auth == nil {
		log.Printf("[Auth] Unauthorized request to %s from %s", e.Request.URL.Path, e.RealIP())
		return e.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Unauthorized",
		})
	}

	if !IsAdmin(e.Auth) {
		log.Printf("[Auth] Forbidden request to %s from user %s", e.Request.URL.Path, e.Auth.Id)
		return e.JSON(http.StatusForbidden, map[string]string{
			"error": "Forbidden",
		})
	}

	return e.Next()
}

// RequireStaff is middleware that requires write access (staff or admin)
func RequireStaff(e *core.RequestEvent) error {
	if e.Auth == nil {
		log.Printf("[Auth] Unauthorized request to %s from %s", e.Request.URL.Path, e.RealIP())
		return e.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Unauthorized",
		})
	}

	if !IsStaff(e.Auth) && !IsAdmin(e.Auth) {
		log.Printf("[Auth] Forbidden request to %s from user %s", e.Request.URL.Path, e.Auth.Id)
		return e.JSON(http.StatusForbidden, map[string]string{
			"error": "Forbidden",
		})
	}

	return e.Next()
}

// GetUserRole extracts the user role from a record
func GetUserRole(record *core.Record) string {
	if record == nil {
		return ""
	}
	return record.GetString(FieldRole)
}

// IsAdmin checks if a record has admin role or is a superuser
func IsAdmin(record *core.Record) bool {
	if record == nil {
		return false
	}
	// Superusers always have admin access
	if record.Collection().Name == "_superusers" {
		return true
	}
	return GetUserRole(record) == "admin"
}

// IsStaff checks if a record can modify venue data (staff or admin)
func IsStaff(record *core.Record) bool {
	role := GetUserRole(record)
	return role == "staff" || role == "admin"
}

// TenantID returns the tenant the authenticated user belongs to.
// Superusers have no tenant; handlers treat an empty value as cross-tenant.
func TenantID(record *core.Record) string {
	if record == nil {
		return ""
	}
	if record.Collection().Name == "_superusers" {
		return ""
	}
	return record.GetString(FieldTenant)
}
