package rbac

type Role string
type Action string

const (
	RoleAdmin  Role = "admin"
	RoleLead   Role = "lead"
	RoleMember Role = "member"
)

const (
	ActionRead    Action = "read"
	ActionLogTime Action = "logtime"
	ActionWrite   Action = "write"
	ActionAdmin   Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleLead:
		return action == ActionRead || action == ActionLogTime || action == ActionWrite
	case RoleMember:
		return action == ActionRead || action == ActionLogTime
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAdmin, RoleLead, RoleMember:
		return Role(role)
	default:
		return RoleMember
	}
}
