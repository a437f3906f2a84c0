/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific protocol or system errors both
internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that an inbound frame is not well-formed JSON.
	ErrInvalidJSONFormat = 1002

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1003
)

// 2xxx: Signaling Protocol Errors
const (
	// ErrMissingUsername indicates a join request without a display name.
	ErrMissingUsername = 2101

	// ErrUsernameTooLong indicates the supplied display name exceeds the length limit.
	ErrUsernameTooLong = 2102

	// ErrAlreadyJoined indicates a join request from a connection that already holds an identity.
	ErrAlreadyJoined = 2103

	// ErrNotJoined indicates a message from a connection that never completed the join handshake.
	ErrNotJoined = 2104

	// ErrMissingTarget indicates a point-to-point signaling message without a target identity.
	ErrMissingTarget = 2201

	// ErrUnknownMessageType indicates a frame whose type is outside the protocol's closed set.
	ErrUnknownMessageType = 2301
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
