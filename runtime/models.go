package runtime

import (
	"github.com/faceplate/helperd/models"
)

// Message is a logical request or response routed through the
// runtime. Data is the raw JSON body.
type Message struct {
	Command models.Command `json:"command,omitempty"`
	Data    []byte         `json:"data"`
}

func NewMessage(
	command models.Command,
	content []byte,
) Message {
	return Message{
		Command: command,
		Data:    content,
	}
}
