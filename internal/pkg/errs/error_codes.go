/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both inside the server and
in the mentorship client engine, and travel over the wire in the response envelope so the
client can rebuild the same error.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Mentorship Business Logic Errors
const (
	// ErrCapacityExceeded indicates a mentee was toggled on while the selection is already full.
	ErrCapacityExceeded = 2101

	// ErrSelectionEmpty indicates a commit was attempted with no mentee chosen.
	ErrSelectionEmpty = 2102

	// ErrCandidatePoolUnavailable indicates the candidate pool failed to load, so commit is refused.
	ErrCandidatePoolUnavailable = 2103

	// ErrCandidateUnknown indicates a mentee id outside the current candidate pool.
	ErrCandidateUnknown = 2104

	// ErrInvalidCapacity indicates a capacity below one or below the number of chosen mentees.
	ErrInvalidCapacity = 2105

	// ErrMenteeUnavailable indicates a student already has an active mentor.
	ErrMenteeUnavailable = 2106

	// ErrMentorAlreadyAssigned indicates the mentor already has active mentees and cannot re-select.
	ErrMentorAlreadyAssigned = 2107

	// ErrRelationshipNotFound indicates no active relationship exists for the operation.
	ErrRelationshipNotFound = 2108

	// ErrMessageEmpty indicates a send with neither a body nor an attachment.
	ErrMessageEmpty = 2201

	// ErrMessageContentTooLong indicates that the message body exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202

	// ErrMessageNotFound indicates the message does not exist (or was already deleted).
	ErrMessageNotFound = 2203

	// ErrMessageNotDelivered indicates a command on a provisional message the server has not stored yet.
	ErrMessageNotDelivered = 2204

	// ErrInvalidReaction indicates an empty or oversized reaction emoji.
	ErrInvalidReaction = 2205

	// ErrFileSizeTooLarge indicates the attachment exceeds the size cap.
	ErrFileSizeTooLarge = 2301

	// ErrFileTypeNotAllowed indicates the attachment type is not accepted.
	ErrFileTypeNotAllowed = 2302

	// ErrFileNotFound indicates the attachment does not exist.
	ErrFileNotFound = 2303

	// ErrNoThreadOpen indicates a thread command was issued while no thread is selected.
	ErrNoThreadOpen = 2401
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates the request carries no valid bearer identity.
	ErrUnauthorized = 3001

	// ErrForbiddenRole indicates the caller's role may not use the operation.
	ErrForbiddenRole = 3002

	// ErrNotRelationshipParty indicates the caller is not a party of the relationship.
	ErrNotRelationshipParty = 3003

	// ErrNotMentorParty indicates a relationship action only the mentor may perform.
	ErrNotMentorParty = 3004

	// ErrNotMessageSender indicates a message action only its sender may perform.
	ErrNotMessageSender = 3005

	// ErrSessionInactive indicates the client session has not been initialised or was torn down.
	ErrSessionInactive = 3006
)

// 4xxx: Transport Errors (client side)
const (
	// ErrDeliveryFailed indicates a write command could not reach or was rejected by the backend.
	ErrDeliveryFailed = 4001

	// ErrPollFailed indicates a background fetch failed.
	ErrPollFailed = 4002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates the object store rejected an upload, download or delete.
	ErrFileStorageFailed = 5001
)
