package jobs

import (
	"encoding/json"
	"fmt"
)

func EncodePayload(t JobType, payload any) (json.RawMessage, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch t {
	case JobLoginLink:
		switch payload.(type) {
		case LoginLinkPayload, *LoginLinkPayload:
		default:
			return nil, ErrPayloadTypeMismatch
		}
	}

	if err := ValidatePayload(t, payload); err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return json.RawMessage(b), nil
}

// DecodePayload unmarshals a raw job payload into the typed struct for t.
func DecodePayload(t JobType, raw []byte) (any, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(raw) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch t {
	case JobLoginLink:
		var p LoginLinkPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if err := ValidatePayload(t, p); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}
