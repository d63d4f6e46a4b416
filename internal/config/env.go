package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/pkg/logger"
)

var log = logger.NewLogger("config")

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Port               string
	CorsAllowedOrigins []string
	JWTSecret          string
	LogFormat          string
	LogLevel           string
	HTTPRateLimit      float64
	HTTPRateBurst      int

	DatabaseURL string
	SslCertPath string

	AwsAccessKey   string
	AwsSecretKey   string
	AwsRegion      string
	BucketName     string
	S3Endpoint     string
	S3UsePathStyle bool

	WeaviateURL            string
	WeaviateAPIKey         string
	IndexClassName         string
	Vectorizer             string
	VectorizerModel        string
	VectorizerModelVersion string

	LLMProvider    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	GeminiAPIKey   string
	GenModel       string
	VisionModel    string
	LLMTimeout     time.Duration
	LLMMaxAttempts int
	LLMRateLimit   float64

	ChunkWindow    int
	ChunkOverlap   int
	BatchSize      int
	ExtractWorkers int
	PDFStructured  bool
	OfficeConvert  bool

	RedisAddr     string
	SchemaLockTTL time.Duration
}

// LoadConfig loads the environment variables and returns the config. It does
// not validate; call Validate before wiring anything.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		CorsAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPRateLimit:      getEnvFloat("HTTP_RATE_LIMIT", 20),
		HTTPRateBurst:      getEnvInt("HTTP_RATE_BURST", 40),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		AwsAccessKey:   getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:   getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:      getEnv("AWS_REGION", "us-east-2"),
		BucketName:     getEnv("BUCKET_NAME", "uploaded-files"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3UsePathStyle: getEnvBool("S3_USE_PATH_STYLE", false),

		WeaviateURL:            getEnv("WEAVIATE_URL", ""),
		WeaviateAPIKey:         getEnv("WEAVIATE_API_KEY", ""),
		IndexClassName:         getEnv("INDEX_CLASS_NAME", "Text"),
		Vectorizer:             getEnv("VECTORIZER", "text2vec-openai"),
		VectorizerModel:        getEnv("VECTORIZER_MODEL", "text-embedding-3-large"),
		VectorizerModelVersion: getEnv("VECTORIZER_MODEL_VERSION", "ada-003"),

		LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GenModel:       getEnv("GEN_MODEL", ""),
		VisionModel:    getEnv("VISION_MODEL", ""),
		LLMTimeout:     getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxAttempts: getEnvInt("LLM_MAX_ATTEMPTS", 3),
		LLMRateLimit:   getEnvFloat("LLM_RATE_LIMIT", 5),

		ChunkWindow:    getEnvInt("CHUNK_WINDOW", 220),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 40),
		BatchSize:      getEnvInt("BATCH_SIZE", 100),
		ExtractWorkers: getEnvInt("EXTRACT_WORKERS", 4),
		PDFStructured:  getEnvBool("PDF_STRUCTURED", false),
		OfficeConvert:  getEnvBool("OFFICE_CONVERT", true),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		SchemaLockTTL: getEnvDuration("SCHEMA_LOCK_TTL", 30*time.Second),
	}

	if cfg.GenModel == "" {
		cfg.GenModel = defaultModel(cfg.LLMProvider)
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.GenModel
	}

	return cfg
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-1.5-flash"
	}
	return "gpt-4o-mini"
}

// Validate reports every missing credential and out-of-range knob at once.
func (c *Config) Validate() error {
	cerr := &core.ConfigurationError{}

	required := []struct{ key, val string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"AWS_ACCESS_KEY", c.AwsAccessKey},
		{"AWS_SECRET_KEY", c.AwsSecretKey},
		{"AWS_REGION", c.AwsRegion},
		{"BUCKET_NAME", c.BucketName},
		{"WEAVIATE_URL", c.WeaviateURL},
		{"WEAVIATE_API_KEY", c.WeaviateAPIKey},
		{"INDEX_CLASS_NAME", c.IndexClassName},
		{"OPENAI_API_KEY", c.OpenAIAPIKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			cerr.Missing = append(cerr.Missing, r.key)
		}
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			cerr.Missing = append(cerr.Missing, "GEMINI_API_KEY")
		}
	default:
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("LLM_PROVIDER=%q", c.LLMProvider))
	}

	if c.ChunkWindow <= 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("CHUNK_WINDOW=%d", c.ChunkWindow))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkWindow {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("CHUNK_OVERLAP=%d (must be below CHUNK_WINDOW)", c.ChunkOverlap))
	}
	if c.BatchSize <= 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("BATCH_SIZE=%d", c.BatchSize))
	}
	if c.ExtractWorkers <= 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("EXTRACT_WORKERS=%d", c.ExtractWorkers))
	}
	if c.LLMMaxAttempts <= 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("LLM_MAX_ATTEMPTS=%d", c.LLMMaxAttempts))
	}
	if c.LLMTimeout <= 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("LLM_TIMEOUT=%s", c.LLMTimeout))
	}

	if cerr.Empty() {
		return nil
	}
	return cerr
}

// Helper to read environment variables with a default fallback. Empty values
// count as unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn("not a number, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn("not a bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn("not a duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
