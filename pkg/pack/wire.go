package pack

import "encoding/json"

// DetectMode sniffs the wire shape of data to tell plain, signed and
// authcrypt envelopes apart without a side-channel content-type header.
// It is exported so callers that only hold packed bytes (e.g. an HTTP
// sender picking a Content-Type header) can classify them the same way
// Unpack does.
func DetectMode(data []byte) Mode {
	return detectMode(data)
}

func detectMode(data []byte) Mode {
	var probe struct {
		Ciphertext string `json:"ciphertext"`
		Signature  string `json:"signature"`
		Payload    string `json:"payload"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ModePlain
	}
	if probe.Ciphertext != "" {
		return ModeAuthCrypt
	}
	if probe.Payload != "" && probe.Signature != "" {
		return ModeSigned
	}
	return ModePlain
}
