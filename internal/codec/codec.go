package codec

import "encoding/json"

// Codec turns typed values into the opaque bytes a kv.Store holds.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSONCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

// Default is the codec used by the typed kv helpers.
var Default Codec = JSONCodec{}
