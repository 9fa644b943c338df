package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
//
// requester: collaborator asking for an interpreter.
// dispatcher: interpreter (master/RH) allowed to view and claim the queue.
const (
	RoleRequester  = "requester"
	RoleDispatcher = "dispatcher"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
