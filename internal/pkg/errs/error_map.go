/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct,
used to standardize HTTP responses and error envelopes sent to clients.
*/
package errs

import "net/http"

// errorMap stores the CustomError template corresponding to every application error code.
// The key is the error code (int), and the value contains the client message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Message is not valid JSON."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Signaling Protocol Errors
	ErrMissingUsername:    {Code: ErrMissingUsername, Message: "A username is required to join."},
	ErrUsernameTooLong:    {Code: ErrUsernameTooLong, Message: "Username must be at most %d characters."},
	ErrAlreadyJoined:      {Code: ErrAlreadyJoined, Message: "This connection has already joined."},
	ErrNotJoined:          {Code: ErrNotJoined, Message: "Join before sending messages."},
	ErrMissingTarget:      {Code: ErrMissingTarget, Message: "A target user is required for %s messages."},
	ErrUnknownMessageType: {Code: ErrUnknownMessageType, Message: "Unknown message type: %s."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
