package auth

import "github.com/veomenu/veomenu/internal/model"

// Action names a permission-checked operation on an instance.
type Action string

const (
	ActionUpdateInstance      Action = "instance.update"
	ActionDeleteInstance      Action = "instance.delete"
	ActionViewMembers         Action = "members.view"
	ActionManageMembers       Action = "members.manage"
	ActionUpdateBusinessHours Action = "hours.update"
	ActionManageMenus         Action = "menus.manage"
	ActionViewAnalytics       Action = "analytics.view"
	ActionManageItems         Action = "items.manage"
	ActionDeleteItems         Action = "items.delete"
	ActionManageQRCodes       Action = "qrcodes.manage"
)

// rolePermissions is the single authorization table. A role not listed
// under an action is denied.
var rolePermissions = map[Action][]string{
	ActionUpdateInstance:      {model.RoleOwner, model.RoleAdmin},
	ActionDeleteInstance:      {model.RoleOwner},
	ActionViewMembers:         {model.RoleOwner, model.RoleAdmin, model.RoleManager},
	ActionManageMembers:       {model.RoleOwner, model.RoleAdmin},
	ActionUpdateBusinessHours: {model.RoleOwner, model.RoleAdmin, model.RoleManager},
	ActionManageMenus:         {model.RoleOwner, model.RoleAdmin, model.RoleManager},
	ActionViewAnalytics:       {model.RoleOwner, model.RoleAdmin, model.RoleManager},
	ActionManageItems:         {model.RoleOwner, model.RoleAdmin, model.RoleManager, model.RoleStaff},
	ActionDeleteItems:         {model.RoleOwner, model.RoleAdmin, model.RoleManager},
	ActionManageQRCodes:       {model.RoleOwner, model.RoleAdmin, model.RoleManager},
}

// Allowed reports whether a member role may perform the action.
func Allowed(role string, action Action) bool {
	for _, r := range rolePermissions[action] {
		if r == role {
			return true
		}
	}
	return false
}
