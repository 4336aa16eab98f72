package mailbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/biobot-lab/biobot/internal/idgen"
)

// Channel partitions the mailbox.
type Channel string

const (
	Observations  Channel = "observations"
	Interventions Channel = "interventions"
)

// Channels returns both channels.
func Channels() []Channel {
	return []Channel{Observations, Interventions}
}

// ParseChannel accepts a channel name.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case Observations, Interventions:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q (want %s or %s)", s, Observations, Interventions)
}

// Address identifies one message.
type Address struct {
	Channel   Channel
	ID        string
	Iteration int
}

// FileName returns "{ID}_{iteration}.json".
func (a Address) FileName() string {
	return a.ID + "_" + strconv.Itoa(a.Iteration) + ".json"
}

// String returns "{channel}/{ID}_{iteration}.json".
func (a Address) String() string {
	return string(a.Channel) + "/" + a.FileName()
}

// Validate checks the address can be rendered to a single file name.
func (a Address) Validate() error {
	if _, err := ParseChannel(string(a.Channel)); err != nil {
		return err
	}
	if !idgen.Valid(a.ID) {
		return fmt.Errorf("invalid experiment id %q", a.ID)
	}
	if a.Iteration < 0 {
		return fmt.Errorf("negative iteration %d", a.Iteration)
	}
	return nil
}

// ParseFileName splits "{ID}_{iteration}.json". The split is on the last
// underscore. ok is false for names that are not message files.
func ParseFileName(name string) (id string, iteration int, ok bool) {
	base, found := strings.CutSuffix(name, ".json")
	if !found {
		return "", 0, false
	}
	i := strings.LastIndexByte(base, '_')
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil || n < 0 || base[i+1:] != strconv.Itoa(n) {
		return "", 0, false
	}
	return base[:i], n, true
}

// idField is the required message field.
const idField = "ID"

// Message is a mailbox payload: a JSON object whose ID field names the
// owning experiment. Every other top-level field is kept verbatim.
type Message struct {
	ID     string
	Fields map[string]json.RawMessage
}

// NewMessage returns a message with no payload fields.
func NewMessage(id string) Message {
	return Message{ID: id}
}

// WithField returns a copy of m with key set to the JSON encoding of v.
func (m Message) WithField(key string, v any) (Message, error) {
	if key == idField {
		return m, fmt.Errorf("field %q is reserved", idField)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return m, err
	}
	out := Message{ID: m.ID, Fields: maps.Clone(m.Fields)}
	if out.Fields == nil {
		out.Fields = make(map[string]json.RawMessage)
	}
	out.Fields[key] = raw
	return out, nil
}

// MarshalJSON encodes the message with object keys sorted.
func (m Message) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(m.Fields)+1)
	for k, v := range m.Fields {
		obj[k] = v
	}
	id, err := json.Marshal(m.ID)
	if err != nil {
		return nil, err
	}
	obj[idField] = id
	return json.Marshal(obj)
}

// UnmarshalJSON is the strict counterpart of MarshalJSON: the document must
// be an object carrying a non-empty string ID.
func (m *Message) UnmarshalJSON(data []byte) error {
	msg, reason := decodeMessage(data)
	if reason != "" {
		return fmt.Errorf("%s", reason)
	}
	*m = msg
	return nil
}

// decodeMessage parses data and returns a reason when it is not a message.
func decodeMessage(data []byte) (Message, string) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Message{}, "empty file"
	}
	if trimmed[0] != '{' {
		return Message{}, "not a JSON object"
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return Message{}, "invalid JSON: " + err.Error()
	}
	raw, ok := obj[idField]
	if !ok {
		return Message{}, "missing ID field"
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return Message{}, "ID field is not a string"
	}
	if id == "" {
		return Message{}, "ID field is empty"
	}
	delete(obj, idField)
	if len(obj) == 0 {
		obj = nil
	}
	return Message{ID: id, Fields: obj}, ""
}

// ParsePayload decodes a caller-supplied payload object into a message for
// id. A payload that carries its own ID keeps it, so a mismatch surfaces when
// the message is stored rather than being overwritten here.
func ParsePayload(id string, data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return NewMessage(id), nil
	}
	var obj map[string]json.RawMessage
	if trimmed[0] != '{' {
		return Message{}, fmt.Errorf("payload must be a JSON object")
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return Message{}, fmt.Errorf("decode payload: %w", err)
	}
	msg := Message{ID: id}
	if raw, ok := obj[idField]; ok {
		if err := json.Unmarshal(raw, &msg.ID); err != nil {
			return Message{}, fmt.Errorf("payload ID is not a string")
		}
		delete(obj, idField)
	}
	if len(obj) > 0 {
		msg.Fields = obj
	}
	return msg, nil
}

// canonical re-encodes data so that equivalent documents compare equal
// regardless of key order and whitespace. Numbers keep their literal form.
func canonical(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// Equivalent reports whether two encoded documents are the same JSON value.
func Equivalent(a, b []byte) bool {
	ca, err := canonical(a)
	if err != nil {
		return false
	}
	cb, err := canonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}
