package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const AppSlug = "musicbox"

const (
	KeyMusicDir          = "MUSIC_DIR"
	KeyDataDir           = "DATA_DIR"
	KeyListenAddr        = "LISTEN_ADDR"
	KeyAuthSecret        = "AUTH_SECRET"
	KeyAuthAllowedUser   = "AUTH_ALLOWED_USER"
	KeyWatchEnabled      = "WATCH_ENABLED"
	KeyWatchQuietPeriod  = "WATCH_QUIET_PERIOD"
	KeyScanExtensions    = "SCAN_EXTENSIONS"
	KeySyncSchedule      = "SYNC_SCHEDULE"
	KeyGeniusAccessToken = "GENIUS_ACCESS_TOKEN"
	KeyLogLevel          = "LOG_LEVEL"
	KeyLogFormat         = "LOG_FORMAT"
)

type Config struct {
	MusicDir          string
	DataDir           string
	ListenAddr        string
	AuthSecret        string
	AuthAllowedUser   string
	WatchEnabled      bool
	WatchQuietPeriod  time.Duration
	ScanExtensions    []string
	SyncSchedule      string
	GeniusAccessToken string
	LogLevel          string
	LogFormat         string
}

type Paths struct {
	BaseDir       string
	DBPath        string
	CoverCacheDir string
	UploadsDir    string
}

func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	workDir, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("resolve working dir: %w", err)
	}

	defaultDataDir := filepath.Join(workDir, "data")
	if configDir, err := os.UserConfigDir(); err == nil {
		defaultDataDir = filepath.Join(configDir, AppSlug)
	}

	v.SetDefault(KeyMusicDir, filepath.Join(workDir, "public", "music"))
	v.SetDefault(KeyDataDir, defaultDataDir)
	v.SetDefault(KeyListenAddr, ":3000")
	v.SetDefault(KeyWatchEnabled, true)
	v.SetDefault(KeyWatchQuietPeriod, 2*time.Second)
	v.SetDefault(KeyScanExtensions, ".mp3")
	v.SetDefault(KeyLogLevel, "INFO")
	v.SetDefault(KeyLogFormat, "text")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	musicDir, err := filepath.Abs(strings.TrimSpace(v.GetString(KeyMusicDir)))
	if err != nil {
		return Config{}, fmt.Errorf("resolve music dir: %w", err)
	}

	quiet := v.GetDuration(KeyWatchQuietPeriod)
	if quiet <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %q", KeyWatchQuietPeriod, v.GetString(KeyWatchQuietPeriod))
	}

	extensions := ParseExtensions(v.GetString(KeyScanExtensions))
	if len(extensions) == 0 {
		return Config{}, fmt.Errorf("%s lists no extensions", KeyScanExtensions)
	}

	return Config{
		MusicDir:          filepath.Clean(musicDir),
		DataDir:           filepath.Clean(v.GetString(KeyDataDir)),
		ListenAddr:        v.GetString(KeyListenAddr),
		AuthSecret:        v.GetString(KeyAuthSecret),
		AuthAllowedUser:   strings.TrimSpace(v.GetString(KeyAuthAllowedUser)),
		WatchEnabled:      v.GetBool(KeyWatchEnabled),
		WatchQuietPeriod:  quiet,
		ScanExtensions:    extensions,
		SyncSchedule:      strings.TrimSpace(v.GetString(KeySyncSchedule)),
		GeniusAccessToken: strings.TrimSpace(v.GetString(KeyGeniusAccessToken)),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         v.GetString(KeyLogFormat),
	}, nil
}

// ParseExtensions turns "mp3, .FLAC" into [".mp3", ".flac"].
func ParseExtensions(value string) []string {
	extensions := make([]string, 0)
	seen := make(map[string]struct{})
	for _, part := range strings.Split(value, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		extensions = append(extensions, ext)
	}

	return extensions
}

func ResolvePaths(dataDir string) (Paths, error) {
	baseDir := filepath.Clean(dataDir)
	coverCacheDir := filepath.Join(baseDir, "covers")
	uploadsDir := filepath.Join(baseDir, "uploads")
	dbPath := filepath.Join(baseDir, "library.db")

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create data dir: %w", err)
	}

	if err := os.MkdirAll(coverCacheDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create cover cache dir: %w", err)
	}

	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create uploads dir: %w", err)
	}

	return Paths{
		BaseDir:       baseDir,
		DBPath:        dbPath,
		CoverCacheDir: coverCacheDir,
		UploadsDir:    uploadsDir,
	}, nil
}
