package rpc

// ChatRequest is the unary chat payload.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse carries the assistant reply for a chat turn.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// RepairRequest starts a repair run over a code snippet.
type RepairRequest struct {
	SessionID     string `json:"session_id,omitempty"`
	Code          string `json:"code"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// RepairEvent streams back progress from the daemon.
type RepairEvent struct {
	Type       string   `json:"type"` // verify|generate|done|error
	SessionID  string   `json:"session_id,omitempty"`
	Iteration  int      `json:"iteration,omitempty"`
	Passed     bool     `json:"passed,omitempty"`
	Diagnostic string   `json:"diagnostic,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Failing    []string `json:"failing,omitempty"`
	Provider   string   `json:"provider,omitempty"`
	Candidate  string   `json:"candidate,omitempty"`
	Status     string   `json:"status,omitempty"` // terminal status on done events
	Code       string   `json:"code,omitempty"`
	Error      string   `json:"error,omitempty"`
	Done       bool     `json:"done,omitempty"`
}

// RepairStreamRequest is the bidirectional stream payload for Connect RPC.
// The first message must carry the Run payload; later messages may cancel.
type RepairStreamRequest struct {
	Run       *RepairRequest `json:"run,omitempty"`
	Cancel    bool           `json:"cancel,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// ProviderStatus reports one backend's reachability.
type ProviderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// StatusResponse is returned by the providers endpoint.
type StatusResponse struct {
	Providers []ProviderStatus `json:"providers"`
}
