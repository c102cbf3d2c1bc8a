package model

import "time"

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type ReadyResponse struct {
	OK          bool   `json:"ok"`
	ServiceName string `json:"service_name,omitempty"`
}

type OptimizeRequest struct {
	Prompt      string `json:"prompt"`
	Mode        string `json:"mode"`
	CustomStyle string `json:"customStyle,omitempty"`
}

type ExplainRequest struct {
	OriginalPrompt  string `json:"originalPrompt"`
	OptimizedPrompt string `json:"optimizedPrompt"`
	Mode            string `json:"mode"`
}

type ExplainResponse struct {
	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
	Improvements []string `json:"improvements"`
	Tips         []string `json:"tips"`
}

type HistoryRecord struct {
	ID              string    `json:"id"`
	OriginalPrompt  string    `json:"originalPrompt"`
	OptimizedPrompt string    `json:"optimizedPrompt"`
	Mode            string    `json:"mode"`
	Instruction     string    `json:"instruction,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type ModeInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Instruction string `json:"instruction"`
	Popular     bool   `json:"popular"`
}

type ModesResponse struct {
	Default string     `json:"default"`
	Popular []string   `json:"popular"`
	Modes   []ModeInfo `json:"modes"`
}

type ConfigStatus struct {
	Configured bool `json:"configured"`
	Auxiliary  bool `json:"auxiliary"`
}

type SaveConfigRequest struct {
	GoogleAPIKey string `json:"googleApiKey"`
	SupabaseURL  string `json:"supabaseUrl,omitempty"`
	SupabaseKey  string `json:"supabaseKey,omitempty"`
}
