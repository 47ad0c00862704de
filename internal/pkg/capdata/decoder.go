// Package capdata unwraps the vstorage stream-cell / CapData envelope format.
//
// A data node's value is decoded in three fixed stages:
//
//	value  -> {"blockHeight": "...", "values": ["<envelope json>", ...]}   (stream cell)
//	values[i] -> {"body": "#<json>", "slots": [...]}                     (envelope)
//	body[1:] -> domain object                                            (body)
package capdata

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"ist_tvl/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Stage names reported in entity.DecodeError.
const (
	StageStreamCell = "stream cell"
	StageEnvelope   = "envelope"
	StageBody       = "body"
)

// StreamCell is the outer document stored in a vstorage data node.
type StreamCell struct {
	BlockHeight string   `json:"blockHeight"`
	Values      []string `json:"values"`
}

// Envelope is one serialized CapData value.
type Envelope struct {
	Body  *string  `json:"body"`
	Slots []string `json:"slots"`
}

// Record is one decoded entry of a stream cell. Err is set when stage 2 or 3
// failed for this entry; siblings are unaffected.
type Record struct {
	Index int
	Body  jsoniter.RawMessage
	Slots []string
	Err   error
}

// DecodeStreamCell is stage 1.
func DecodeStreamCell(raw string) (StreamCell, error) {
	var cell StreamCell
	if err := json.UnmarshalFromString(raw, &cell); err != nil {
		return StreamCell{}, &entity.DecodeError{Stage: StageStreamCell, Err: err}
	}
	if cell.Values == nil {
		return StreamCell{}, &entity.DecodeError{Stage: StageStreamCell, Err: errors.New("missing values list")}
	}
	return cell, nil
}

// DecodeEnvelope is stage 2.
func DecodeEnvelope(value string) (Envelope, error) {
	var env Envelope
	if err := json.UnmarshalFromString(value, &env); err != nil {
		return Envelope{}, &entity.DecodeError{Stage: StageEnvelope, Err: err}
	}
	if env.Body == nil {
		return Envelope{}, &entity.DecodeError{Stage: StageEnvelope, Err: errors.New("missing body")}
	}
	return env, nil
}

// DecodeBody is stage 3: the leading type tag is dropped and the rest must be JSON.
func DecodeBody(env Envelope) (jsoniter.RawMessage, error) {
	if env.Body == nil || len(*env.Body) < 2 {
		return nil, &entity.DecodeError{Stage: StageBody, Err: errors.New("body too short")}
	}
	payload := (*env.Body)[1:]
	if !json.Valid([]byte(payload)) {
		return nil, &entity.DecodeError{Stage: StageBody, Err: fmt.Errorf("invalid JSON after type tag %q", (*env.Body)[:1])}
	}
	return jsoniter.RawMessage(payload), nil
}

// Decode runs all three stages over a data node value. The returned error is
// only set when the stream cell itself is unreadable.
func Decode(raw string) ([]Record, error) {
	cell, err := DecodeStreamCell(raw)
	if err != nil {
		return nil, err
	}
	records := make([]Record, len(cell.Values))
	for i, value := range cell.Values {
		records[i] = decodeValue(i, value)
	}
	return records, nil
}

func decodeValue(index int, value string) Record {
	rec := Record{Index: index}
	env, err := DecodeEnvelope(value)
	if err != nil {
		rec.Err = err
		return rec
	}
	rec.Slots = env.Slots
	body, err := DecodeBody(env)
	if err != nil {
		rec.Err = err
		return rec
	}
	rec.Body = body
	return rec
}

// Unmarshal decodes the record body into v.
func (r Record) Unmarshal(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &entity.DecodeError{Stage: StageBody, Err: err}
	}
	return nil
}

// Latest returns the most recent record of a cell.
func Latest(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	return records[len(records)-1], true
}

var (
	allegedNameRe = regexp.MustCompile(`\$(\d+)\.Alleged: ([^"\s]+)`)
	slotRefRe     = regexp.MustCompile(`^\$(\d+)(?:\.|$)`)
)

// AllegedNames maps each slot index to the alleged name declared for it in the body.
// Smallcaps names a slot on first use only; later uses are bare "$N".
func (r Record) AllegedNames() map[int]string {
	names := make(map[int]string)
	for _, m := range allegedNameRe.FindAllSubmatch(r.Body, -1) {
		slot, err := strconv.Atoi(string(m[1]))
		if err != nil {
			continue
		}
		if _, seen := names[slot]; !seen {
			names[slot] = string(m[2])
		}
	}
	return names
}

// CollateralType derives the collateral key of an amount's brand, resolving a
// bare slot reference through the names declared elsewhere in the same body.
func (r Record) CollateralType(brand string) (entity.CollateralType, bool) {
	if ct, ok := entity.CollateralTypeFromBrand(brand); ok {
		return ct, true
	}
	m := slotRefRe.FindStringSubmatch(brand)
	if m == nil {
		return "", false
	}
	slot, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	name, ok := r.AllegedNames()[slot]
	if !ok {
		return "", false
	}
	return entity.CollateralTypeFromBrand("$" + m[1] + ".Alleged: " + name + " brand")
}
