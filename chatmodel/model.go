package chatmodel

import (
	"encoding/json"
)

// ContentProvider is implemented by values that can render themselves as
// chat content.
type ContentProvider interface {
	// GetContent gets the content of the message for the chat history
	GetContent() string
}

type Stringer interface {
	String() string
}

func Stringify(s any) string {
	if v, ok := s.(Stringer); ok {
		return v.String()
	}
	if v, ok := s.(ContentProvider); ok {
		return v.GetContent()
	}
	bs, _ := json.Marshal(s)
	return string(bs)
}
