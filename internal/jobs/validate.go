package jobs

import "strings"

// ValidatePayload performs minimal validation on decoded payloads.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobLoginLink:
		var p LoginLinkPayload
		switch v := payload.(type) {
		case LoginLinkPayload:
			p = v
		case *LoginLinkPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.LinkID) == "" || trim(p.Email) == "" || trim(p.URL) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
