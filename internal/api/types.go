package api

// LoginRequest is the request body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful authentication.
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// IncidentUpdateRequest carries analyst updates for an incident. Pointer
// fields distinguish "not provided" from "set to empty".
type IncidentUpdateRequest struct {
	Status   *string `json:"status,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	Evidence *string `json:"evidence,omitempty"`
}

// MergeIncidentRequest asks for a manual merge of one incident into another.
type MergeIncidentRequest struct {
	SourceIncidentID uint   `json:"source_incident_id"`
	Reason           string `json:"reason"`
}

// DashboardStats is the aggregate view served at /api/stats.
type DashboardStats struct {
	TotalAlerts       int64            `json:"total_alerts"`
	TotalIncidents    int64            `json:"total_incidents"`
	OpenIncidents     int64            `json:"open_incidents"`
	HighPriorityCount int64            `json:"high_priority_count"`
	BySeverity        map[string]int64 `json:"by_severity"`
	ByStatus          map[string]int64 `json:"by_status"`
	BySource          map[string]int64 `json:"by_source"`
}

// HealthResponse is the liveness payload at /api/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version"`
}
