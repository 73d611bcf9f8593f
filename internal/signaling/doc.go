// Package signaling implements the WebSocket surface two browser peers use
// to find each other and exchange connection-setup messages.
//
// The server arbitrates rooms (via the room registry) and relays opaque
// offer/answer/candidate payloads between the two members of a room. It never
// inspects or stores the payloads; once the peers' direct connection is up,
// the server is out of the path.
package signaling
