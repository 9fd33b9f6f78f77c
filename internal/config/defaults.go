package config

const (
	defaultDataDir                = "~/.local/share/photokiosk"
	defaultLogDir                 = "~/.local/share/photokiosk/logs"
	defaultRedirectURI            = "http://localhost:5000/auth/callback"
	defaultAuthURL                = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL               = "https://oauth2.googleapis.com/token"
	defaultScope                  = "https://www.googleapis.com/auth/photospicker.mediaitems.readonly"
	defaultPickerBaseURL          = "https://photospicker.googleapis.com/v1"
	defaultPickerPageSize         = 100
	defaultRenewalBufferSeconds   = 60
	defaultPollSeconds            = 5
	defaultTimeoutSeconds         = 20
	defaultDownloadTimeoutSeconds = 60
	defaultRefreshMarginSeconds   = 60
	defaultTargetWidth            = 1920
	defaultTargetHeight           = 1080
	defaultDownloadWorkers        = 4
	defaultDownloadsPerSecond     = 8
	defaultFFmpegBinary           = "ffmpeg"
	defaultServerBind             = "0.0.0.0:5000"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"

	// minRenewalBufferSeconds keeps session replacement ahead of the remote expiry.
	minRenewalBufferSeconds = 60
	maxPickerPageSize       = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Google: Google{
			RedirectURI: defaultRedirectURI,
			AuthURL:     defaultAuthURL,
			TokenURL:    defaultTokenURL,
			Scope:       defaultScope,
		},
		Picker: Picker{
			BaseURL:              defaultPickerBaseURL,
			PageSize:             defaultPickerPageSize,
			RenewalBufferSeconds: defaultRenewalBufferSeconds,
			DefaultPollSeconds:   defaultPollSeconds,
		},
		HTTP: HTTP{
			TimeoutSeconds:         defaultTimeoutSeconds,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
			RefreshMarginSeconds:   defaultRefreshMarginSeconds,
		},
		Acquire: Acquire{
			TargetWidth:        defaultTargetWidth,
			TargetHeight:       defaultTargetHeight,
			DownloadWorkers:    defaultDownloadWorkers,
			DownloadsPerSecond: defaultDownloadsPerSecond,
			ConvertImages:      true,
			FFmpegBinary:       defaultFFmpegBinary,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
