// Package proto defines the wire protocol spoken between game clients and
// the relay. Every payload is a UTF-8 JSON object carrying a mandatory
// "type" discriminator. The relay only understands the envelope layer;
// game-data payloads are opaque to it and are decoded by clients with
// DecodeGameData.
package proto

import (
	"encoding/json"
)

const ProtocolVersion = 1

// Envelope message types, client → relay.
const (
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypeStartGame  = "start_game"
	TypeGameData   = "game_data"
)

// Envelope message types, relay → client.
const (
	TypeRoomCreated  = "room_created"
	TypeRoomJoined   = "room_joined"
	TypePlayerJoined = "player_joined"
	TypePlayerLeft   = "player_left"
	TypeGameStarted  = "game_started"
	TypeError        = "error"
)

// Player is the participant shape carried in every roster broadcast.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// ClientEnvelope is a message sent by a client to the relay.
type ClientEnvelope struct {
	Type       string          `json:"type"`
	PlayerName string          `json:"playerName,omitempty"`
	RoomCode   string          `json:"roomCode,omitempty"`
	GameData   json.RawMessage `json:"gameData,omitempty"`
}

// ServerEnvelope is a message sent by the relay to a client. Which fields
// are populated depends on Type.
type ServerEnvelope struct {
	Type     string          `json:"type"`
	RoomCode string          `json:"roomCode,omitempty"`
	Players  []Player        `json:"players,omitempty"`
	Player   *Player         `json:"player,omitempty"`
	PlayerID string          `json:"playerId,omitempty"`
	SenderID string          `json:"senderId,omitempty"`
	GameData json.RawMessage `json:"gameData,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Vec3 is a world-space position or direction.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Dimensions describes a building footprint and height.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// Building is one static obstacle in the world descriptor.
type Building struct {
	Position   Vec3       `json:"position"`
	Dimensions Dimensions `json:"dimensions"`
}

// VehicleSnapshot is the nested vehicle state inside a player update.
type VehicleSnapshot struct {
	ID        string  `json:"id"`
	Position  Vec3    `json:"position"`
	Rotation  float64 `json:"rotation"`
	Speed     float64 `json:"speed"`
	HasDriver bool    `json:"hasDriver"`
}
