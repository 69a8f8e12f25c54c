package pack

import (
	"encoding/json"

	"github.com/tap-rsvp/tap-go/pkg/message"
)

func packPlain(env message.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func unpackPlain(data []byte) (message.Envelope, error) {
	var env message.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return message.Envelope{}, err
	}
	return env, nil
}
