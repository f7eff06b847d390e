package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RolePayer  = "payer"
	RoleEarner = "earner"
	RoleAgency = "agency"
	RoleAdmin  = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
