package ipc

// Control socket commands.
const (
	CommandStatus = "status"
	CommandGrant  = "grant"
	CommandDeny   = "deny"
	CommandRevoke = "revoke"
)

// Commands lists every control socket command.
func Commands() []string {
	return []string{CommandStatus, CommandGrant, CommandDeny, CommandRevoke}
}

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK         bool        `json:"ok"`
	State      string      `json:"state,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
	Permission *Permission `json:"permission,omitempty"`
	Exchanges  *Exchanges  `json:"exchanges,omitempty"`
}

// Permission mirrors the camera permission gate.
type Permission struct {
	Granted   bool   `json:"granted"`
	Prompting bool   `json:"prompting"`
	Waiting   bool   `json:"waiting"`
	Prompts   uint64 `json:"prompts"`
}

// Exchanges counts connections handled by the command listener.
type Exchanges struct {
	Accepted  uint64 `json:"accepted"`
	Completed uint64 `json:"completed"`
	Aborted   uint64 `json:"aborted"`
}
