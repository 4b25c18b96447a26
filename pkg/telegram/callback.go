package telegram

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
)

// Action identifies what the driver pressed on an offer.
type Action string

const (
	ActionAccept Action = "a"
	ActionRefuse Action = "r"
)

// CallbackPayload is the decoded form of the inline button data.
type CallbackPayload struct {
	Action   Action
	OrderID  uuid.UUID
	DriverID uuid.UUID
}

// EncodeCallback packs the action and both IDs into Telegram's 64-byte
// callback data limit. UUIDs travel as base64 of their raw 16 bytes.
func EncodeCallback(action Action, orderID, driverID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", action, encodeUUID(orderID), encodeUUID(driverID))
}

// ParseCallback decodes inline button data produced by EncodeCallback.
func ParseCallback(data string) (CallbackPayload, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return CallbackPayload{}, pkgerrors.New(pkgerrors.CodeValidation, "malformed callback data")
	}

	action := Action(parts[0])
	if action != ActionAccept && action != ActionRefuse {
		return CallbackPayload{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown callback action %q", parts[0]))
	}

	orderID, err := decodeUUID(parts[1])
	if err != nil {
		return CallbackPayload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id in callback")
	}
	driverID, err := decodeUUID(parts[2])
	if err != nil {
		return CallbackPayload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid driver id in callback")
	}

	return CallbackPayload{Action: action, OrderID: orderID, DriverID: driverID}, nil
}

func encodeUUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

func decodeUUID(raw string) (uuid.UUID, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(b)
}
