// Package server provides the live reload endpoint for sasswatch. Browsers
// connect over WebSocket and are told to refresh stylesheets whenever the
// watcher produces new output.
//
// The messages follow the LiveReload protocol, so the stock browser
// extensions work against the same endpoint as the bundled client script.
package server

// Protocol identifiers.
const (
	ProtocolOfficial7 = "http://livereload.com/protocols/official-7"
	serverName        = "sasswatch"
)

// Commands exchanged with clients.
const (
	CommandHello  = "hello"
	CommandReload = "reload"
	CommandInfo   = "info"
)

// Message is a single protocol frame, sent and received as JSON.
type Message struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Path       string   `json:"path,omitempty"`
	LiveCSS    bool     `json:"liveCSS,omitempty"`
}

// helloReply answers a client handshake.
func helloReply() Message {
	return Message{
		Command:    CommandHello,
		Protocols:  []string{ProtocolOfficial7},
		ServerName: serverName,
	}
}

// ReloadMessage asks clients to refresh path. Stylesheets are swapped in
// place when liveCSS is set; anything else reloads the page.
func ReloadMessage(path string, liveCSS bool) Message {
	return Message{Command: CommandReload, Path: path, LiveCSS: liveCSS}
}
