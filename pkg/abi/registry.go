package abi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EntryType is the "type" discriminator of a single ABI JSON entry.
type EntryType string

const (
	EntryFunction    EntryType = "function"
	EntryConstructor EntryType = "constructor"
	EntryEvent       EntryType = "event"
	EntryFallback    EntryType = "fallback"
	EntryReceive     EntryType = "receive"
)

// Parameter is one entry of an ABI JSON "inputs"/"outputs" array.
type Parameter struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Indexed    bool        `json:"indexed,omitempty"`
	Components []Parameter `json:"components,omitempty"`
}

// Entry is a single top-level item of an ABI JSON document.
type Entry struct {
	Type      EntryType   `json:"type"`
	Name      string      `json:"name"`
	Inputs    []Parameter `json:"inputs,omitempty"`
	Outputs   []Parameter `json:"outputs,omitempty"`
	Anonymous bool        `json:"anonymous,omitempty"`

	schema    *TypeSchema // precomputed Inputs tuple schema
	outSchema *TypeSchema // precomputed Outputs tuple schema
	selector  [4]byte
	topic0    [32]byte
	signature string
}

// AbiRegistry parses a contract's ABI JSON once and answers repeated
// encode/decode requests by name without re-walking the JSON tree.
type AbiRegistry struct {
	entries      []*Entry
	functions    map[string]*Entry // keyed by name; duplicate names rejected at parse time
	events       map[string]*Entry
	constructor  *Entry
}

// ParseRegistry parses a standard ABI JSON document (an array of entries).
// It rejects overloaded (duplicate-name) functions and events, per the
// decision to not support call-site overload resolution.
func ParseRegistry(data []byte) (*AbiRegistry, error) {
	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, encErr("abi", "invalid ABI JSON: %v", err)
	}

	reg := &AbiRegistry{
		functions: make(map[string]*Entry),
		events:    make(map[string]*Entry),
	}

	for i := range raw {
		e := &raw[i]
		switch e.Type {
		case EntryFunction, "":
			if e.Type == "" {
				e.Type = EntryFunction
			}
			if _, dup := reg.functions[e.Name]; dup {
				return nil, encErr("abi", "duplicate function name %q: overload resolution by name alone is not supported", e.Name)
			}
			schema, err := paramsToTupleSchema(e.Inputs)
			if err != nil {
				return nil, encErrWrap(e.Name, err, "invalid inputs")
			}
			outSchema, err := paramsToTupleSchema(e.Outputs)
			if err != nil {
				return nil, encErrWrap(e.Name, err, "invalid outputs")
			}
			e.schema = schema
			e.outSchema = outSchema
			e.signature = e.Name + schema.Canonical()
			e.selector = Selector(e.signature)
			reg.functions[e.Name] = e
		case EntryConstructor:
			schema, err := paramsToTupleSchema(e.Inputs)
			if err != nil {
				return nil, encErrWrap("constructor", err, "invalid inputs")
			}
			e.schema = schema
			reg.constructor = e
		case EntryEvent:
			if _, dup := reg.events[e.Name]; dup {
				return nil, encErr("abi", "duplicate event name %q", e.Name)
			}
			schema, err := paramsToTupleSchema(e.Inputs)
			if err != nil {
				return nil, encErrWrap(e.Name, err, "invalid inputs")
			}
			e.schema = schema
			e.signature = e.Name + schema.Canonical()
			e.topic0 = Topic0(e.signature)
			reg.events[e.Name] = e
		case EntryFallback, EntryReceive:
			// Carried for completeness; neither participates in name-based dispatch.
		default:
			return nil, encErr("abi", "unknown entry type %q", e.Type)
		}
		reg.entries = append(reg.entries, e)
	}

	return reg, nil
}

// paramsToTupleSchema converts a JSON "inputs"/"outputs" array into a Tuple
// TypeSchema, recursing into "components" for tuple-typed parameters.
func paramsToTupleSchema(params []Parameter) (*TypeSchema, error) {
	components := make([]*TypeSchema, len(params))
	for i, p := range params {
		s, err := paramToSchema(p)
		if err != nil {
			return nil, fmt.Errorf("param %d (%s): %w", i, p.Name, err)
		}
		components[i] = s
	}
	return TupleSchema(components...), nil
}

// paramToSchema parses a single Solidity type string (§ canonical grammar)
// into a TypeSchema, handling arbitrarily nested array suffixes.
func paramToSchema(p Parameter) (*TypeSchema, error) {
	typ := p.Type

	// Peel off trailing array suffixes one at a time: "uint256[3][]" peels
	// "[]" first, then "[3]", leaving the element type "uint256".
	var suffixes []int
	base := typ
	for strings.HasSuffix(base, "]") {
		open := strings.LastIndexByte(base, '[')
		if open < 0 {
			return nil, fmt.Errorf("malformed array type %q", typ)
		}
		inner := base[open+1 : len(base)-1]
		if inner == "" {
			suffixes = append(suffixes, DynArrayLen)
		} else {
			n, err := parseUint(inner)
			if err != nil {
				return nil, fmt.Errorf("malformed array length in %q: %w", typ, err)
			}
			suffixes = append(suffixes, n)
		}
		base = base[:open]
	}

	var elemSchema *TypeSchema
	var err error
	if base == "tuple" {
		elemSchema, err = paramsToTupleSchema(p.Components)
		if err != nil {
			return nil, err
		}
	} else {
		elemSchema, err = elementarySchema(base)
		if err != nil {
			return nil, err
		}
	}

	// Apply array suffixes innermost-first (the reverse of the order we
	// peeled them).
	for i := len(suffixes) - 1; i >= 0; i-- {
		elemSchema = ArraySchema(elemSchema, suffixes[i])
	}
	return elemSchema, nil
}

func elementarySchema(base string) (*TypeSchema, error) {
	switch {
	case base == "address":
		return AddressSchema(), nil
	case base == "bool":
		return BoolSchema(), nil
	case base == "string":
		return StringSchema(), nil
	case base == "bytes":
		return DynamicBytesSchema(), nil
	case strings.HasPrefix(base, "uint"):
		w, err := parseWidth(base, "uint")
		if err != nil {
			return nil, err
		}
		return UintSchema(w), nil
	case strings.HasPrefix(base, "int"):
		w, err := parseWidth(base, "int")
		if err != nil {
			return nil, err
		}
		return IntSchema(w), nil
	case strings.HasPrefix(base, "bytes"):
		n, err := parseUint(base[len("bytes"):])
		if err != nil {
			return nil, fmt.Errorf("malformed bytesN type %q: %w", base, err)
		}
		return FixedBytesSchema(n), nil
	default:
		return nil, fmt.Errorf("unknown elementary type %q", base)
	}
}

func parseWidth(base, prefix string) (int, error) {
	rest := base[len(prefix):]
	if rest == "" {
		return 256, nil // "uint"/"int" alias for the 256-bit form
	}
	w, err := parseUint(rest)
	if err != nil {
		return 0, fmt.Errorf("malformed %s width in %q: %w", prefix, base, err)
	}
	if !validBitWidth(w) {
		return 0, fmt.Errorf("%s width %d is not a multiple of 8 in [8,256]", prefix, w)
	}
	return w, nil
}

func parseUint(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty integer")
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a decimal integer: %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// Function looks up a function entry by name.
func (r *AbiRegistry) Function(name string) (*Entry, bool) {
	e, ok := r.functions[name]
	return e, ok
}

// Event looks up an event entry by name.
func (r *AbiRegistry) Event(name string) (*Entry, bool) {
	e, ok := r.events[name]
	return e, ok
}

// EventByTopic0 finds the event whose signature hash matches topic0,
// compared byte-for-byte (the wire format is already fixed-width, so no
// case sensitivity issue arises here; hex string comparisons elsewhere in
// this package are case-insensitive per DecodeHex).
func (r *AbiRegistry) EventByTopic0(topic0 [32]byte) (*Entry, bool) {
	for _, e := range r.events {
		if e.topic0 == topic0 {
			return e, true
		}
	}
	return nil, false
}

// Signature returns the canonical "name(type1,type2,...)" signature.
func (e *Entry) Signature() string { return e.signature }

// Selector returns the precomputed 4-byte function selector.
func (e *Entry) Selector() [4]byte { return e.selector }

// Topic0 returns the precomputed event signature hash.
func (e *Entry) Topic0() [32]byte { return e.topic0 }

// EncodeCall builds the full call data for a function entry: selector
// followed by the head/tail encoding of args under its Inputs schema.
func (r *AbiRegistry) EncodeCall(name string, args []*AbiValue) ([]byte, error) {
	e, ok := r.functions[name]
	if !ok {
		return nil, encErr(name, "no function named %q in this ABI", name)
	}
	if len(args) != len(e.schema.Components) {
		return nil, encErr(name, "expected %d arguments, got %d", len(e.schema.Components), len(args))
	}
	for i, arg := range args {
		want := e.schema.Components[i].Canonical()
		got := arg.Schema().Canonical()
		if got != want {
			return nil, encErr(name, "argument %d: expected type %s, got %s", i, want, got)
		}
	}
	enc := NewEncoder()
	return enc.EncodeFunction(e.signature, args)
}

// EncodeConstructorCall builds constructor call data: bytecode-relative
// argument encoding with no selector, appended by the caller to init code.
func (r *AbiRegistry) EncodeConstructorCall(args []*AbiValue) ([]byte, error) {
	if r.constructor == nil {
		if len(args) == 0 {
			return []byte{}, nil
		}
		return nil, encErr("constructor", "ABI declares no constructor but %d arguments were given", len(args))
	}
	if len(args) != len(r.constructor.schema.Components) {
		return nil, encErr("constructor", "expected %d arguments, got %d", len(r.constructor.schema.Components), len(args))
	}
	for i, arg := range args {
		want := r.constructor.schema.Components[i].Canonical()
		got := arg.Schema().Canonical()
		if got != want {
			return nil, encErr("constructor", "argument %d: expected type %s, got %s", i, want, got)
		}
	}
	enc := NewEncoder()
	return enc.EncodeConstructor(args)
}

// DecodeReturn decodes a function's return data under its Outputs schema,
// returning one value per declared output in declaration order (a
// one-element slice when the function declares a single output).
func (r *AbiRegistry) DecodeReturn(name string, data []byte) ([]*AbiValue, error) {
	e, ok := r.functions[name]
	if !ok {
		return nil, decErr(name, "no function named %q in this ABI", name)
	}
	dec := NewDecoder()
	return dec.Decode(data, e.outSchema.Components)
}

// DecodedEvent is the result of matching and decoding one log entry:
// indexed parameters recovered from topics[1:], the rest from data.
type DecodedEvent struct {
	Entry  *Entry
	Values []*AbiValue
}

// DecodeLog matches topics[0] against the registry's known events and
// decodes indexed parameters from the remaining topics and non-indexed
// parameters from data, interleaving them back into declaration order.
func (r *AbiRegistry) DecodeLog(topics [][32]byte, data []byte) (*DecodedEvent, error) {
	if len(topics) == 0 {
		return nil, decErr("event", "log has no topics to match topic0 against")
	}
	e, ok := r.EventByTopic0(topics[0])
	if !ok {
		return nil, decErr("event", "no event matches topic0 %x", topics[0])
	}

	var indexedSchemas, nonIndexedSchemas []*TypeSchema
	indexedPos := make([]int, 0, len(e.Inputs))
	nonIndexedPos := make([]int, 0, len(e.Inputs))
	for i, p := range e.Inputs {
		if p.Indexed {
			indexedSchemas = append(indexedSchemas, e.schema.Components[i])
			indexedPos = append(indexedPos, i)
		} else {
			nonIndexedSchemas = append(nonIndexedSchemas, e.schema.Components[i])
			nonIndexedPos = append(nonIndexedPos, i)
		}
	}
	if len(indexedSchemas) != len(topics)-1 {
		return nil, decErr(e.Name, "event declares %d indexed params but log has %d topics after topic0", len(indexedSchemas), len(topics)-1)
	}

	dec := NewDecoder()
	values := make([]*AbiValue, len(e.Inputs))

	for i, s := range indexedSchemas {
		// An indexed dynamic type is stored in the topic as its hash, not
		// its value; only statically-sized indexed params are recoverable
		// as a concrete AbiValue here.
		if s.IsDynamic() {
			values[indexedPos[i]] = NewDynamicBytes(topics[i+1][:])
			continue
		}
		v, err := decodeStatic(topics[i+1][:], s, fmt.Sprintf("%s.indexed[%d]", e.Name, i))
		if err != nil {
			return nil, err
		}
		values[indexedPos[i]] = v
	}

	nonIndexed, err := dec.Decode(data, nonIndexedSchemas)
	if err != nil {
		return nil, decErrWrap(e.Name, err, "decoding non-indexed params")
	}
	for i, v := range nonIndexed {
		values[nonIndexedPos[i]] = v
	}

	return &DecodedEvent{Entry: e, Values: values}, nil
}

// multicallResultSchema is the "(bool,bytes)[]" schema returned by the
// common aggregate/tryAggregate pattern: one (success, returnData) pair per
// inner call, in call order.
func multicallResultSchema() *TypeSchema {
	pair := TupleSchema(BoolSchema(), DynamicBytesSchema())
	return ArraySchema(pair, DynArrayLen)
}

// DecodeMulticallResult decodes an aggregate-call return value into its
// per-call (success, returnData) pairs.
func DecodeMulticallResult(data []byte) ([]*AbiValue, error) {
	dec := NewDecoder()
	values, err := dec.Decode(data, []*TypeSchema{multicallResultSchema()})
	if err != nil {
		return nil, err
	}
	return values[0].Elems, nil
}
