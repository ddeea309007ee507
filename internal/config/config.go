package config

import (
	"crypto/rand"
	"crypto/sha256"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/hkdf"
)

type Config struct {
	Port       string
	BackendURL string
	DBUrl      string
	LogLevel   string

	SessionKey      []byte
	SessionBlockKey []byte
	CSRFKey         []byte
	RoleClaimKey    []byte

	CookieSecure bool
	CookieDomain string

	FirebaseCredentials string
	FirebaseAPIKey      string

	APITimeout        time.Duration
	RoleCacheTTL      time.Duration
	RoleClaimTTL      time.Duration
	GuardWait         time.Duration
	LogoutOnForbidden bool

	S3Bucket      string
	ImageMaxWidth uint

	SMTPAddress       string
	SMTPHost          string
	FromEmail         string
	FromEmailPassword string
	ContactEmail      string

	CORSOrigins []string
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, using environment and defaults")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid PORT %q, falling back to 8080", port)
		port = "8080"
	}

	secret := []byte(os.Getenv("APP_SECRET"))
	if len(secret) == 0 {
		log.Println("APP_SECRET not set, generating an ephemeral secret; sessions will not survive a restart")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.Fatal("failed to generate APP_SECRET: ", err)
		}
	}

	return Config{
		Port:       port,
		BackendURL: strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:5000"), "/"),
		DBUrl:      os.Getenv("DB_URL"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		SessionKey:      DeriveKey(secret, "session"),
		SessionBlockKey: DeriveKey(secret, "session-block"),
		CSRFKey:         DeriveKey(secret, "csrf"),
		RoleClaimKey:    DeriveKey(secret, "role-claim"),
		CookieSecure:    getEnv("COOKIE_SECURE", "false") == "true",
		CookieDomain:    os.Getenv("COOKIE_DOMAIN"),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", "serviceAccountKey.json"),
		FirebaseAPIKey:      os.Getenv("FIREBASE_API_KEY"),

		APITimeout:        getDuration("API_TIMEOUT", 10*time.Second),
		RoleCacheTTL:      getDuration("ROLE_CACHE_TTL", 5*time.Minute),
		RoleClaimTTL:      getDuration("ROLE_CLAIM_TTL", 2*time.Minute),
		GuardWait:         getDuration("GUARD_WAIT", 3*time.Second),
		LogoutOnForbidden: getEnv("LOGOUT_ON_FORBIDDEN", "true") == "true",

		S3Bucket:      os.Getenv("S3_BUCKET"),
		ImageMaxWidth: uint(getInt("IMAGE_MAX_WIDTH", 1200)),

		SMTPAddress:       os.Getenv("SMTP_ADDRESS"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		FromEmail:         os.Getenv("FROM_EMAIL"),
		FromEmailPassword: os.Getenv("FROM_EMAIL_PASSWORD"),
		ContactEmail:      os.Getenv("CONTACT_EMAIL"),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
	}
}

// DeriveKey expands the master secret into a 32 byte key bound to purpose.
func DeriveKey(secret []byte, purpose string) []byte {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, secret, nil, []byte("storefront/"+purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		log.Fatal("key derivation failed: ", err)
	}
	return key
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s %q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("invalid %s %q, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
