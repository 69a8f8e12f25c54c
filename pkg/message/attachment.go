package message

import "encoding/json"

// Attachment carries auxiliary data on an envelope, used primarily by
// Presentation/RequestPresentation but available on any body.
type Attachment struct {
	ID        string          `json:"id"`
	MediaType string          `json:"media_type,omitempty"`
	Data      json.RawMessage `json:"data"`
}
