package orientation

import "encoding/json"

// Permission is the cached outcome of a sensor permission request.
type Permission int

const (
	// PermissionUnknown means no request has completed yet.
	PermissionUnknown Permission = iota
	// PermissionGranted means the user allowed sensor access.
	PermissionGranted
	// PermissionDenied means access was refused or the request failed.
	PermissionDenied
)

// String returns the lower-case name of the permission state.
func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Bool returns the permission as a tri-state: nil while unknown.
func (p Permission) Bool() *bool {
	var b bool
	switch p {
	case PermissionGranted:
		b = true
	case PermissionDenied:
		b = false
	default:
		return nil
	}
	return &b
}

// MarshalJSON encodes the permission by name.
func (p Permission) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a permission name; unknown names decode as unknown.
func (p *Permission) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "granted":
		*p = PermissionGranted
	case "denied":
		*p = PermissionDenied
	default:
		*p = PermissionUnknown
	}
	return nil
}
