package protocol

// Message types carried on the kitchen bus.
const (
	// Order store -> displays
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeStoreKeepalive     = "store.keepalive"

	// Displays -> order store
	TypeDisplayRegister  = "display.register"
	TypeDisplayHeartbeat = "display.heartbeat"
)

// Roles for Address.Role.
const (
	RoleStation = "station"
	RoleStore   = "store"
)

// Protocol version.
const Version = 1
