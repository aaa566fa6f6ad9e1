package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Server state.
	ErrBusy      = "E_BUSY"
	ErrForbidden = "E_FORBIDDEN"

	// Run layer.
	ErrOverflow = "E_OVERFLOW"
	ErrAborted  = "E_ABORTED"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBusy:            {},
	ErrForbidden:       {},
	ErrOverflow:        {},
	ErrAborted:         {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
