package config

const (
	ScriptModeShell  = "shell"
	ScriptModeNative = "native"

	QueueBackendCSV    = "csv"
	QueueBackendSQLite = "sqlite"
)

const (
	defaultInteractHome         = "~/.local/share/interact"
	defaultLogDir               = "~/.local/share/interact/logs"
	defaultBind                 = "0.0.0.0:5000"
	defaultServerAddress        = "127.0.0.1"
	defaultInspireBinary        = "inspire"
	defaultInteractBinary       = "interact"
	defaultFraggerMemory        = 60
	defaultMaxCPUs              = 1
	defaultScriptMode           = ScriptModeShell
	defaultQueueBackend         = QueueBackendCSV
	defaultQueuePollInterval    = 60
	defaultReconcileInterval    = 30
	defaultConfirmAttempts      = 3
	defaultConfirmDelayMS       = 3000
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Server: Server{
			Bind:          defaultBind,
			ServerAddress: defaultServerAddress,
		},
		Pipeline: Pipeline{
			InspireBinary:  defaultInspireBinary,
			InteractBinary: defaultInteractBinary,
			FraggerMemory:  defaultFraggerMemory,
			MaxCPUs:        defaultMaxCPUs,
			ScriptMode:     defaultScriptMode,
		},
		Queue: Queue{
			Backend:           defaultQueueBackend,
			PollInterval:      defaultQueuePollInterval,
			ReconcileInterval: defaultReconcileInterval,
		},
		Runner: Runner{
			ConfirmAttempts: defaultConfirmAttempts,
			ConfirmDelayMS:  defaultConfirmDelayMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
			JobCancelled:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
