package service

import "errors"

// Stable machine codes reported back to clients alongside error events.
const (
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeConflict         = "CONFLICT"
	CodeWindowExpired    = "WINDOW_EXPIRED"
	CodeInternal         = "INTERNAL"
)

// Error is a client-reportable failure. It is always delivered as an error
// event to the originating connection only and never terminates the
// connection.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError creates a client-reportable error with the given code.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the machine code carried by err. Unknown errors map to
// CodeInternal so that repository or transport failures never leak detail
// to clients.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

var (
	ErrUnspecifiedID      = NewError(CodeInvalidArgument, "no id was supplied")
	ErrEmptyValueSupplied = NewError(CodeInvalidArgument, "empty value supplied")

	// Handshake errors close the transport; everything below does not.
	ErrCredentialRequired = NewError(CodeUnauthenticated, "authentication credential is required")
	ErrCredentialInvalid  = NewError(CodeUnauthenticated, "authentication credential is invalid")

	ErrMessageReceiverRequired   = NewError(CodeInvalidArgument, "receiver ID is required")
	ErrMessageContentRequired    = NewError(CodeInvalidArgument, "message content is required")
	ErrMessageTypeInvalid        = NewError(CodeInvalidArgument, "unsupported message type")
	ErrMessageNotFound           = NewError(CodeNotFound, "message not found")
	ErrMessageEditDenied         = NewError(CodePermissionDenied, "only the sender can edit this message")
	ErrMessageEditWindowClosed   = NewError(CodeWindowExpired, "messages can only be edited within 15 minutes of sending")
	ErrMessageDeleteDenied       = NewError(CodePermissionDenied, "only the sender can delete this message for everyone")
	ErrMessageDeleteWindowClosed = NewError(
		CodeWindowExpired,
		"messages can only be deleted for everyone within 1 hour of sending",
	)
	ErrMessageAlreadyDeleted = NewError(CodeConflict, "message is already deleted")
	ErrReactionInvalid       = NewError(CodeInvalidArgument, "unsupported reaction emoji")
	ErrDeleteScopeInvalid    = NewError(CodeInvalidArgument, "delete scope must be 'me' or 'everyone'")

	ErrGroupIDRequired    = NewError(CodeInvalidArgument, "group ID is required")
	ErrGroupNotFound      = NewError(CodeNotFound, "group not found")
	ErrGroupAccessDenied  = NewError(CodePermissionDenied, "you are not a member of this group")
	ErrGroupPostDenied    = NewError(CodePermissionDenied, "only group admins can send messages to this group")
	ErrGroupAdminRequired = NewError(CodePermissionDenied, "only group admins can perform this action")
	ErrGroupMemberMissing = NewError(CodeNotFound, "member not found in group")

	ErrCallNotFound        = NewError(CodeNotFound, "call not found")
	ErrCallKindInvalid     = NewError(CodeInvalidArgument, "call kind must be 'audio' or 'video'")
	ErrCallReceiverOffline = NewError(CodeConflict, "user is offline")
	ErrCallReceiverBusy    = NewError(CodeConflict, "user is busy on another call")
	ErrCallerBusy          = NewError(CodeConflict, "you are already in an active call")
	ErrCallActionDenied    = NewError(CodePermissionDenied, "you are not a participant in this call")
	ErrCallNotRinging      = NewError(CodeConflict, "call is no longer ringing")
)
