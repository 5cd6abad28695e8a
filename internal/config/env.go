package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Env is the process environment for the server and CLI: where to listen,
// where job files live, and the optional artifact bucket.
type Env struct {
	Listen      string
	Workspace   string
	DBPath      string
	ConfigPath  string
	LogLevel    string
	ColmapBin   string
	MeshCommand string
	AdminKey    string
	Artifact    ArtifactEnv
}

// ArtifactEnv configures S3-compatible artifact upload. It is enabled only
// when both endpoint and bucket are set.
type ArtifactEnv struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func (a ArtifactEnv) Enabled() bool { return a.Endpoint != "" && a.Bucket != "" }

// LoadEnv overlays envFile (if it exists) onto the process environment and
// reads the ROOF_* variables. Variables already set in the environment win
// over the file.
func LoadEnv(envFile string) (Env, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, err
		}
	}
	return Env{
		Listen:      firstNonEmpty(getenv("ROOF_LISTEN"), ":8080"),
		Workspace:   firstNonEmpty(getenv("ROOF_WORKSPACE"), "workspace"),
		DBPath:      firstNonEmpty(getenv("ROOF_DB_PATH"), "roof.db"),
		ConfigPath:  getenv("ROOF_CONFIG"),
		LogLevel:    firstNonEmpty(getenv("ROOF_LOG_LEVEL"), "info"),
		ColmapBin:   firstNonEmpty(getenv("ROOF_COLMAP_BIN"), "colmap"),
		MeshCommand: getenv("ROOF_MESH_COMMAND"),
		AdminKey:    getenv("ROOF_ADMIN_KEY"),
		Artifact: ArtifactEnv{
			Endpoint:  getenv("ROOF_ARTIFACT_S3_ENDPOINT"),
			Bucket:    getenv("ROOF_ARTIFACT_S3_BUCKET"),
			AccessKey: getenv("ROOF_ARTIFACT_S3_ACCESS_KEY"),
			SecretKey: getenv("ROOF_ARTIFACT_S3_SECRET_KEY"),
			UseSSL:    parseBool(getenv("ROOF_ARTIFACT_S3_USE_SSL"), true),
		},
	}, nil
}

// LoadConfig loads Env.ConfigPath, or returns an empty Config when unset.
func (e Env) LoadConfig() (*Config, error) {
	if e.ConfigPath == "" {
		return Empty(), nil
	}
	return Load(e.ConfigPath)
}

func getenv(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func parseBool(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
