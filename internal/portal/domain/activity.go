package domain

import "time"

// EventKind names an activity event. The values are stored and must not change.
type EventKind string

const (
	EventConnect     EventKind = "connect"
	EventDisconnect  EventKind = "disconnect"
	EventAuthSuccess EventKind = "auth_success"
	EventAuthFail    EventKind = "auth_fail"
	EventAdminRevoke EventKind = "admin_revoke"
	EventAdminExtend EventKind = "admin_extend"
	EventCodeSent    EventKind = "code_sent"
	EventCodeResent  EventKind = "code_resent"
	EventAdminLogin  EventKind = "admin_login"
	EventAdminLogout EventKind = "admin_logout"
)

var eventKinds = map[EventKind]struct{}{
	EventConnect: {}, EventDisconnect: {}, EventAuthSuccess: {}, EventAuthFail: {},
	EventAdminRevoke: {}, EventAdminExtend: {}, EventCodeSent: {}, EventCodeResent: {},
	EventAdminLogin: {}, EventAdminLogout: {},
}

func (k EventKind) Valid() bool {
	_, ok := eventKinds[k]
	return ok
}

// ActivityEvent is an append-only audit record. UserID and GuestID are soft
// references and may outlive what they point at. Detail is free-form; readers
// must tolerate missing or unknown keys.
type ActivityEvent struct {
	ID         string
	Kind       EventKind
	UserID     string
	GuestID    string
	MACAddress string
	Detail     map[string]any
	CreatedAt  time.Time
}
