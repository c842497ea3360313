/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError template, used to standardize
HTTP responses, error kinds and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Kind: KindValidation, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Kind: KindValidation, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Kind: KindValidation, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Kind: KindValidation, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Kind: KindValidation, Message: "Failed to process uploaded data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Kind: KindValidation, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Kind: KindDelivery, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Mentorship Business Logic Errors
	ErrCapacityExceeded:         {Code: ErrCapacityExceeded, Kind: KindValidation, Message: "You can select at most %d mentees."},
	ErrSelectionEmpty:           {Code: ErrSelectionEmpty, Kind: KindValidation, Message: "Select at least one mentee.", Status: http.StatusBadRequest},
	ErrCandidatePoolUnavailable: {Code: ErrCandidatePoolUnavailable, Kind: KindValidation, Message: "Available students could not be loaded."},
	ErrCandidateUnknown:         {Code: ErrCandidateUnknown, Kind: KindValidation, Message: "This student is not available.", Status: http.StatusBadRequest},
	ErrInvalidCapacity:          {Code: ErrInvalidCapacity, Kind: KindValidation, Message: "Invalid mentee capacity.", Status: http.StatusBadRequest},
	ErrMenteeUnavailable:        {Code: ErrMenteeUnavailable, Kind: KindConflict, Message: "A selected student already has a mentor.", Status: http.StatusConflict},
	ErrMentorAlreadyAssigned:    {Code: ErrMentorAlreadyAssigned, Kind: KindConflict, Message: "You already have mentees assigned.", Status: http.StatusConflict},
	ErrRelationshipNotFound:     {Code: ErrRelationshipNotFound, Kind: KindNotFound, Message: "Mentorship not found.", Status: http.StatusNotFound},
	ErrMessageEmpty:             {Code: ErrMessageEmpty, Kind: KindValidation, Message: "Message cannot be empty.", Status: http.StatusBadRequest},
	ErrMessageContentTooLong:    {Code: ErrMessageContentTooLong, Kind: KindValidation, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrMessageNotFound:          {Code: ErrMessageNotFound, Kind: KindNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrMessageNotDelivered:      {Code: ErrMessageNotDelivered, Kind: KindValidation, Message: "Message is still being delivered."},
	ErrInvalidReaction:          {Code: ErrInvalidReaction, Kind: KindValidation, Message: "Invalid reaction.", Status: http.StatusBadRequest},
	ErrFileSizeTooLarge:         {Code: ErrFileSizeTooLarge, Kind: KindValidation, Message: "File is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrFileTypeNotAllowed:       {Code: ErrFileTypeNotAllowed, Kind: KindValidation, Message: "File type is not allowed.", Status: http.StatusBadRequest},
	ErrFileNotFound:             {Code: ErrFileNotFound, Kind: KindNotFound, Message: "File not found.", Status: http.StatusNotFound},
	ErrNoThreadOpen:             {Code: ErrNoThreadOpen, Kind: KindValidation, Message: "Select a conversation first."},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized:         {Code: ErrUnauthorized, Kind: KindAuthorization, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrForbiddenRole:        {Code: ErrForbiddenRole, Kind: KindAuthorization, Message: "This action is not available for your role.", Status: http.StatusForbidden},
	ErrNotRelationshipParty: {Code: ErrNotRelationshipParty, Kind: KindAuthorization, Message: "You are not part of this mentorship.", Status: http.StatusForbidden},
	ErrNotMentorParty:       {Code: ErrNotMentorParty, Kind: KindAuthorization, Message: "Only the mentor can end this mentorship.", Status: http.StatusForbidden},
	ErrNotMessageSender:     {Code: ErrNotMessageSender, Kind: KindAuthorization, Message: "You can only delete your own messages.", Status: http.StatusForbidden},
	ErrSessionInactive:      {Code: ErrSessionInactive, Kind: KindAuthorization, Message: "Session is not active."},

	// 4xxx: Transport Errors
	ErrDeliveryFailed: {Code: ErrDeliveryFailed, Kind: KindDelivery, Message: "Could not reach the server. Please retry."},
	ErrPollFailed:     {Code: ErrPollFailed, Kind: KindPoll, Message: "Could not refresh messages."},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Kind: KindInternal, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Kind: KindInternal, Message: "File storage failed. Please try again.", Status: http.StatusBadGateway},
}
