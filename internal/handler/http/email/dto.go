// Package email serves POST /email.
package email

import (
	"encoding/json"
	"errors"
	"strings"
)

// Request is the body of POST /email.
type Request struct {
	To      Recipients `json:"to" example:"ops@example.com"`
	From    string     `json:"from,omitempty" example:"alerts@example.com"`
	Subject string     `json:"subject" example:"Disk usage above 90%"`
	Text    string     `json:"text" example:"Disk usage on db-1 is 93%."`
	HTML    string     `json:"html" example:"<p>Disk usage on <b>db-1</b> is 93%.</p>"`
	Token   string     `json:"token"`
}

// Recipients accepts either a single address string or an array of them.
// Multiple addresses are joined into one comma-separated list.
type Recipients string

// UnmarshalJSON implements json.Unmarshaler.
func (r *Recipients) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*r = Recipients(single)
		return nil
	}

	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return errors.New("to must be a string or an array of strings")
	}
	kept := many[:0]
	for _, addr := range many {
		if addr = strings.TrimSpace(addr); addr != "" {
			kept = append(kept, addr)
		}
	}
	*r = Recipients(strings.Join(kept, ", "))
	return nil
}

// Response is the success body.
type Response struct {
	Stat bool `json:"stat"`
}
