package config

const (
	defaultConfigPath            = "~/.config/anniversary/config.toml"
	defaultDataDir               = "~/.local/share/anniversary"
	defaultLogDir                = "~/.local/share/anniversary/logs"
	defaultBlobDir               = "~/.local/share/anniversary/blobs"
	defaultServerBind            = "127.0.0.1:8787"
	defaultServerPublicBaseURL   = "http://127.0.0.1:8787"
	defaultMaxUploadMiB          = 20
	defaultGatewayBaseURL        = "http://127.0.0.1:8787"
	defaultGatewayTimeoutSeconds = 60
	defaultS3Region              = "us-east-1"
	defaultGenerativeBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultGenerativeModel       = "gemini-2.5-flash-image-preview"
	defaultGenerativeTimeout     = 120
	defaultGenerativeAttempts    = 3
	defaultMaxDimension          = 1024
	defaultJPEGQuality           = 85
	defaultAlbumWidth            = 1600
	defaultAlbumHeight           = 1200
	defaultAppBaseURL            = "http://127.0.0.1:8787/"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Storage backends understood by the blob store factory.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			BlobDir: defaultBlobDir,
		},
		Server: Server{
			Bind:          defaultServerBind,
			PublicBaseURL: defaultServerPublicBaseURL,
			MaxUploadMiB:  defaultMaxUploadMiB,
		},
		Gateway: Gateway{
			BaseURL:        defaultGatewayBaseURL,
			TimeoutSeconds: defaultGatewayTimeoutSeconds,
		},
		Storage: Storage{
			Backend:  BackendFS,
			S3Region: defaultS3Region,
		},
		Generative: Generative{
			BaseURL:        defaultGenerativeBaseURL,
			Model:          defaultGenerativeModel,
			TimeoutSeconds: defaultGenerativeTimeout,
			MaxAttempts:    defaultGenerativeAttempts,
		},
		Imaging: Imaging{
			MaxDimension: defaultMaxDimension,
			JPEGQuality:  defaultJPEGQuality,
			AlbumWidth:   defaultAlbumWidth,
			AlbumHeight:  defaultAlbumHeight,
		},
		Share: Share{
			AppBaseURL: defaultAppBaseURL,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
