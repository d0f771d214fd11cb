package pusher

import "encoding/json"

// Codec is a pair of serialize/deserialize functions used wherever the
// client encodes or decodes caller-supplied data (event payloads,
// presence member data, webhook bodies). The zero value is not usable;
// operations that accept a Codec have non-codec variants that use
// encoding/json.
//
// A Codec is passed explicitly into the operations that need it rather
// than being stored on the client, so two calls on the same client can
// use different encodings.
type Codec struct {
	Marshal   func(v interface{}) ([]byte, error)
	Unmarshal func(data []byte, v interface{}) error
}

// JSONCodec is the default Codec, backed by encoding/json.
var JSONCodec = Codec{
	Marshal:   json.Marshal,
	Unmarshal: json.Unmarshal,
}

// dataToString serializes caller-supplied event data. Strings and byte
// slices pass through untouched; anything else goes through the codec.
func dataToString(data interface{}, codec Codec) (string, error) {
	switch d := data.(type) {
	case string:
		return d, nil
	case []byte:
		return string(d), nil
	default:
		bs, err := codec.Marshal(d)
		if err != nil {
			return "", err
		}
		return string(bs), nil
	}
}
