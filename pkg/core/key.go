package core

import "fmt"

type hexer interface {
	Hex() string
}

// KeyOf stringifies a store identifier for use as an identity-map key.
// ObjectIDs render as their hex form.
func KeyOf(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case hexer:
		return v.Hex()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
