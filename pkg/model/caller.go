package model

// Role is the caller's declared relation to the platform. The gateway in
// front of this service authenticates callers and forwards identity and
// role as headers; the ledger only enforces the relation per entry point.
type Role string

const (
	RoleLandlord Role = "landlord"
	RoleTenant   Role = "tenant"
	RolePlatform Role = "platform"
	RoleInvestor Role = "investor"
)

// Caller is the authorization context passed into every ledger call.
type Caller struct {
	ID   string `json:"id" validate:"required,min=1,max=64"`
	Role Role   `json:"role" validate:"required,oneof=landlord tenant platform investor"`
}

func (c Caller) Is(role Role) bool {
	return c.Role == role
}
