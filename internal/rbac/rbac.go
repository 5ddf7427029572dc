package rbac

import "strings"

type Role string
type Action string

const (
	RoleViewer      Role = "viewer"
	RoleContributor Role = "contributor"
	RoleApprover    Role = "approver"
	RoleAdmin       Role = "admin"
)

const (
	ActionRead       Action = "read"
	ActionContribute Action = "contribute"
	ActionGenerate   Action = "generate"
	ActionApprove    Action = "approve"
	ActionDelete     Action = "delete"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleApprover:
		return action != ActionDelete
	case RoleContributor:
		return action == ActionRead || action == ActionContribute
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(role))); r {
	case RoleViewer, RoleContributor, RoleApprover, RoleAdmin:
		return r
	default:
		return RoleViewer
	}
}

// RoleFor assigns a role to a signed-in name from the configured allow lists.
// Names not listed contribute but cannot approve.
func RoleFor(name string, approvers, admins []string) Role {
	switch {
	case containsFold(admins, name):
		return RoleAdmin
	case containsFold(approvers, name):
		return RoleApprover
	default:
		return RoleContributor
	}
}

func containsFold(values []string, name string) bool {
	name = strings.TrimSpace(name)
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), name) {
			return true
		}
	}
	return false
}
