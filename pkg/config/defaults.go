package config

const (
	defaultBackendTarget = "http://localhost:8080"
	defaultStreamPath    = "/api/chat/stream"
	defaultCompletePath  = "/api/chat"
	defaultTimeout       = "60s"

	defaultFrameInterval = "16ms"

	defaultAPIListen = ":8081"

	defaultEventsTopic = "opsdeck.responses"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Backend: BackendConfig{
			Target:       defaultBackendTarget,
			StreamPath:   defaultStreamPath,
			CompletePath: defaultCompletePath,
			Timeout:      defaultTimeout,
		},
		Render: RenderConfig{
			FrameInterval: defaultFrameInterval,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
