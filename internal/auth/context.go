package auth

import "github.com/gin-gonic/gin"

const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetUserRole returns the role claim, defaulting to customer.
func GetUserRole(c *gin.Context) string {
	if v, ok := c.Get("userRole"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return RoleCustomer
}
