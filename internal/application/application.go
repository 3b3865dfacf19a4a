package application

const (
	// AppName is the application name used for identification and user-facing output
	AppName = "confsync"
)

// Version is set at build time via -ldflags "-X .../internal/application.Version=..."
var Version = "dev"
