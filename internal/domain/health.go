package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual service.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// ServiceMetrics is returned by GET /v1/metrics/service.
type ServiceMetrics struct {
	AggregationFallbacks float64 `json:"aggregationFallbacks"`
	ExternalErrors       float64 `json:"externalErrors"`
	WebhookDelivered     float64 `json:"webhookDelivered"`
	WebhookFailed        float64 `json:"webhookFailed"`
	RealtimeEvents       float64 `json:"realtimeEvents"`
	CacheHitRate         float64 `json:"cacheHitRate"`
	Period               string  `json:"period"`
}

// SuccessResponse acknowledges a mutation without a body of its own.
type SuccessResponse struct {
	Message string `json:"message"`
}
