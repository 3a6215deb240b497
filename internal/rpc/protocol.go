package rpc

import (
	"encoding/json"

	"github.com/genricoloni/ytmpresence/internal/domain"
)

const (
	cmdDispatch    = "DISPATCH"
	cmdSetActivity = "SET_ACTIVITY"
	evtReady       = "READY"
	evtError       = "ERROR"
)

// payload is both the command and the response shape of local RPC
type payload struct {
	Cmd   string          `json:"cmd"`
	Args  json.RawMessage `json:"args,omitempty"`
	Evt   string          `json:"evt,omitempty"`
	Nonce string          `json:"nonce,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type setActivityArgs struct {
	PID int `json:"pid"`
	// Activity is null to clear
	Activity *wireActivity `json:"activity"`
}

type wireActivity struct {
	Details    string          `json:"details,omitempty"`
	State      string          `json:"state,omitempty"`
	Timestamps *wireTimestamps `json:"timestamps,omitempty"`
	Assets     *wireAssets     `json:"assets,omitempty"`
	Instance   bool            `json:"instance"`
}

type wireTimestamps struct {
	Start int64 `json:"start,omitempty"`
}

type wireAssets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// toWire maps the domain activity onto the RPC field names
func toWire(a domain.Activity) *wireActivity {
	w := &wireActivity{
		Details:  a.Details,
		State:    a.State,
		Instance: a.Instance,
	}
	if a.StartTimestamp > 0 {
		w.Timestamps = &wireTimestamps{Start: a.StartTimestamp}
	}
	if a.LargeImageKey != "" || a.LargeImageText != "" || a.SmallImageKey != "" || a.SmallImageText != "" {
		w.Assets = &wireAssets{
			LargeImage: a.LargeImageKey,
			LargeText:  a.LargeImageText,
			SmallImage: a.SmallImageKey,
			SmallText:  a.SmallImageText,
		}
	}
	return w
}
