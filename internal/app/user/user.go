/*
Package user contains the core data structure for participant identity.

It defines the roster projection of a connected participant, used both
internally and in WebSocket messages sent to clients.
*/
package user

// User is the public view of a connected participant.
// Fields use JSON tags for serialization in WebSocket messages.
type User struct {

	// ID is the server-minted unique identity assigned at join time.
	ID string `json:"id"`

	// Username is the display name supplied by the client at join time.
	// It is not guaranteed unique.
	Username string `json:"username"`

	// IsOnline is true while the participant is present in the registry.
	// Absence from the registry is offline; no separate away state exists.
	IsOnline bool `json:"isOnline"`
}
