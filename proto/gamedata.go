package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Game-data kinds carried opaquely through the relay inside a game_data
// envelope. The relay never inspects these.
const (
	KindWorldRequest    = "world_request"
	KindWorldData       = "world_data"
	KindPlayerUpdate    = "player_update"
	KindPlayerShoot     = "player_shoot"
	KindPlayerDamage    = "player_damage"
	KindVehicleDamage   = "vehicle_damage"
	KindHitConfirmation = "hit_confirmation"
	KindScoreUpdate     = "score_update"
	KindGameRestart     = "game_restart"
)

// ErrUnknownKind is returned by DecodeGameData for a payload whose type
// discriminator no decoder claims. Receivers are expected to drop such
// payloads with a log line rather than fail.
var ErrUnknownKind = errors.New("proto: unknown game data kind")

// GameEvent is the decoded form of one game-data payload. The concrete
// types below are the full set a client can receive.
type GameEvent interface {
	Kind() string
}

// WorldRequest asks the host to (re)send the world descriptor. Sent by
// joiners while they wait for world data.
type WorldRequest struct{}

// WorldData is the host-generated world descriptor. Every participant
// instantiates exactly the buildings listed here.
type WorldData struct {
	Buildings []Building `json:"buildings"`
}

// PlayerUpdate is the periodic snapshot of one player's replicated state.
type PlayerUpdate struct {
	Position  Vec3             `json:"position"`
	Rotation  float64          `json:"rotation"`
	Health    float64          `json:"health"`
	InVehicle bool             `json:"inVehicle"`
	Vehicle   *VehicleSnapshot `json:"vehicle,omitempty"`
}

// PlayerShoot announces a fired projectile. The flight is simulated
// independently on every peer from these initial conditions; no further
// messages describe it.
type PlayerShoot struct {
	Position  Vec3    `json:"position"`
	Direction Vec3    `json:"direction"`
	Speed     float64 `json:"speed"`
	Damage    float64 `json:"damage"`
}

// PlayerDamage is a targeted damage request. Only the participant whose
// id matches TargetID applies it; everyone else ignores it.
type PlayerDamage struct {
	TargetID string  `json:"targetId"`
	Damage   float64 `json:"damage"`
}

// VehicleDamage is the vehicle counterpart of PlayerDamage, targeted at
// the vehicle's owner.
type VehicleDamage struct {
	TargetID string  `json:"targetId"`
	Damage   float64 `json:"damage"`
}

// HitConfirmation is feedback-only: the victim tells the shooter a hit
// landed. TargetID addresses the shooter; everyone else ignores the
// message. It deliberately carries no damage value.
type HitConfirmation struct {
	TargetID string `json:"targetId"`
}

// ScoreUpdate propagates a kill counter. Recipients keep the maximum
// value seen per player id.
type ScoreUpdate struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// GameRestart resets the round on every peer in lockstep.
type GameRestart struct {
	Timestamp int64 `json:"timestamp"`
}

func (WorldRequest) Kind() string    { return KindWorldRequest }
func (WorldData) Kind() string       { return KindWorldData }
func (PlayerUpdate) Kind() string    { return KindPlayerUpdate }
func (PlayerShoot) Kind() string     { return KindPlayerShoot }
func (PlayerDamage) Kind() string    { return KindPlayerDamage }
func (VehicleDamage) Kind() string   { return KindVehicleDamage }
func (HitConfirmation) Kind() string { return KindHitConfirmation }
func (ScoreUpdate) Kind() string     { return KindScoreUpdate }
func (GameRestart) Kind() string     { return KindGameRestart }

// EncodeGameData marshals an event into the flat wire form
// {"type":"<kind>",...fields} used by the original protocol.
func EncodeGameData(ev GameEvent) (json.RawMessage, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Kind(), err)
	}
	head, err := json.Marshal(struct {
		Type string `json:"type"`
	}{ev.Kind()})
	if err != nil {
		return nil, err
	}
	if string(body) == "{}" {
		return head, nil
	}
	// Splice the discriminator into the payload object.
	merged := append(head[:len(head)-1], ',')
	merged = append(merged, body[1:]...)
	return merged, nil
}

// DecodeGameData turns a raw game-data payload into its typed event. The
// discriminator is inspected exactly once, here, so consumers can switch
// on concrete types instead of strings.
func DecodeGameData(raw json.RawMessage) (GameEvent, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode game data head: %w", err)
	}

	unmarshal := func(ev GameEvent) (GameEvent, error) {
		if err := json.Unmarshal(raw, ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return ev, nil
	}

	switch head.Type {
	case KindWorldRequest:
		return WorldRequest{}, nil
	case KindWorldData:
		ev, err := unmarshal(&WorldData{})
		if err != nil {
			return nil, err
		}
		return *ev.(*WorldData), nil
	case KindPlayerUpdate:
		ev, err := unmarshal(&PlayerUpdate{})
		if err != nil {
			return nil, err
		}
		return *ev.(*PlayerUpdate), nil
	case KindPlayerShoot:
		ev, err := unmarshal(&PlayerShoot{})
		if err != nil {
			return nil, err
		}
		return *ev.(*PlayerShoot), nil
	case KindPlayerDamage:
		ev, err := unmarshal(&PlayerDamage{})
		if err != nil {
			return nil, err
		}
		return *ev.(*PlayerDamage), nil
	case KindVehicleDamage:
		ev, err := unmarshal(&VehicleDamage{})
		if err != nil {
			return nil, err
		}
		return *ev.(*VehicleDamage), nil
	case KindHitConfirmation:
		ev, err := unmarshal(&HitConfirmation{})
		if err != nil {
			return nil, err
		}
		return *ev.(*HitConfirmation), nil
	case KindScoreUpdate:
		ev, err := unmarshal(&ScoreUpdate{})
		if err != nil {
			return nil, err
		}
		return *ev.(*ScoreUpdate), nil
	case KindGameRestart:
		ev, err := unmarshal(&GameRestart{})
		if err != nil {
			return nil, err
		}
		return *ev.(*GameRestart), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.Type)
	}
}
