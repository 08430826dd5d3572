package audit

import "strings"

// EventCategory classifies audit actions by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers actions with regulatory significance:
	// device enrolment and the erasure of location data.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication activity.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine access.
	CategoryOperations EventCategory = "operations"
)

// Action is an audit action code as recorded by the backend.
type Action string

const (
	ActionLogin          Action = "LOGIN"
	ActionDeviceRegister Action = "DEVICE_REGISTER"
	ActionDeviceRevoke   Action = "DEVICE_REVOKE"
	ActionDeviceDelete   Action = "DEVICE_DELETE"
	ActionDataAccess     Action = "DATA_ACCESS"
)

var actionCategories = map[Action]EventCategory{
	ActionLogin: CategorySecurity,

	ActionDeviceRegister: CategoryCompliance,
	ActionDeviceRevoke:   CategoryCompliance,
	ActionDeviceDelete:   CategoryCompliance,

	ActionDataAccess: CategoryOperations,
}

// Category returns the category of the action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Human renders the action for display: DEVICE_REVOKE becomes DEVICE REVOKE.
func (a Action) Human() string {
	return strings.ReplaceAll(string(a), "_", " ")
}

// Category is shorthand for Action(action).Category().
func Category(action string) EventCategory {
	return Action(action).Category()
}

// HumanAction is shorthand for Action(action).Human().
func HumanAction(action string) string {
	return Action(action).Human()
}
