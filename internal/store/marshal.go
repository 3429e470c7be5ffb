package store

import (
	"fmt"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/ir"
)

// marshalRecords converts records to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical state is byte-identical on disk.
func marshalRecords(records []ir.Object) ([]byte, error) {
	arr := make(ir.Array, len(records))
	for i, rec := range records {
		arr[i] = rec
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return nil, fmt.Errorf("marshal records: %w", err)
	}
	return data, nil
}

// unmarshalRecords parses a stored snapshot. Integers keep full int64
// precision (see ir.UnmarshalValue).
func unmarshalRecords(data []byte) ([]ir.Object, error) {
	var arr ir.Array
	if err := arr.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	out := make([]ir.Object, 0, len(arr))
	for i, v := range arr {
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("unmarshal records: element %d is %T, not an object", i, v)
		}
		out = append(out, obj)
	}
	return out, nil
}

// marshalChanges converts a change log to canonical JSON TEXT:
// [{"data":{..},"id":..,"type":"Insert"}, ...] in log order.
func marshalChanges(l *changelog.Log) ([]byte, error) {
	entries := l.Entries()
	arr := make(ir.Array, len(entries))
	for i, c := range entries {
		obj := ir.Object{
			"id":   c.ID.Value(),
			"type": ir.String(c.Kind.String()),
		}
		if c.Kind != changelog.KindDelete {
			obj["data"] = c.Data
		}
		arr[i] = obj
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return nil, fmt.Errorf("marshal changes: %w", err)
	}
	return data, nil
}

// unmarshalChanges parses a stored change log.
func unmarshalChanges(data []byte) (*changelog.Log, error) {
	l := changelog.New()
	if err := l.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("unmarshal changes: %w", err)
	}
	return l, nil
}
