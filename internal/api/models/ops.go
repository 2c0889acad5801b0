package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// Capabilities reports which optional route features are enabled.
type Capabilities struct {
	Geocoding     bool `json:"geocoding"`
	StreetNetwork bool `json:"streetNetwork"`
	TrackEncoding bool `json:"trackEncoding"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status       HealthStatus      `json:"status"`
	Time         Timestamp         `json:"time"`
	Version      string            `json:"version,omitempty"`
	Capabilities Capabilities      `json:"capabilities"`
	Subsystems   []SubsystemStatus `json:"subsystems"`
	Providers    []ProviderStatus  `json:"providers"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
