package defs

const (
	ProgramName = "hostfs"

	// Process exit statuses.
	ExitSuccess = 0
	ExitFailure = 1
	// ExitFatal is used when a privileged bind mount failed and the
	// container namespace can no longer be trusted.
	ExitFatal = 255
)

// Configuration keys.
const (
	KeyMountHostfs  = "mount hostfs"
	KeyLogLevel     = "log level"
	KeyLogFormat    = "log format"
	KeyOTLPEndpoint = "otlp endpoint"
	KeyOTLPInsecure = "otlp insecure"
)
