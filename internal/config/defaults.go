package config

const (
	defaultLogDir      = "~/.local/share/miktmc-pipeline/logs"
	defaultReportDir   = "~/.local/share/miktmc-pipeline/reports"
	defaultJournalPath = "~/.local/share/miktmc-pipeline/journal.db"
	defaultLockPath    = "~/.local/share/miktmc-pipeline/pipeline.lock"

	defaultHaloLinkURL       = "wss://dpr.niddk.nih.gov/graphql"
	defaultIntermediateLabel = "Escrow 1"
	defaultFinalLabel        = "Escrow 2"

	defaultRedcapAPIURL          = "https://rc.rarediseasesnetwork.org/api/"
	defaultRedcapRPS             = 2.0
	defaultBreakerFailures       = 5
	defaultBreakerTimeoutSeconds = 30

	defaultUploaderDatabase       = "uploader"
	defaultUploaderTimeoutSeconds = 20

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:      defaultLogDir,
			ReportDir:   defaultReportDir,
			JournalPath: defaultJournalPath,
			LockPath:    defaultLockPath,
		},
		HaloLink: HaloLink{
			URL:               defaultHaloLinkURL,
			IntermediateLabel: defaultIntermediateLabel,
			FinalLabel:        defaultFinalLabel,
		},
		Redcap: Redcap{
			APIURL:                defaultRedcapAPIURL,
			RequestsPerSecond:     defaultRedcapRPS,
			BreakerFailures:       defaultBreakerFailures,
			BreakerTimeoutSeconds: defaultBreakerTimeoutSeconds,
		},
		Uploader: Uploader{
			Database:       defaultUploaderDatabase,
			TimeoutSeconds: defaultUploaderTimeoutSeconds,
		},
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}
