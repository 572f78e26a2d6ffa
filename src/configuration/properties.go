package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"

	BlobLocal = "local"
	BlobS3    = "s3"
)

type (
	Properties struct {
		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

		Auth   AuthProperties       `envPrefix:"AUTH_"`
		Server HttpServerProperties `envPrefix:"HTTP_"`
		Store  StoreProperties      `envPrefix:"STORE_"`
		Blob   BlobProperties       `envPrefix:"BLOB_"`
		S3     S3Properties         `envPrefix:"S3_"`
	}

	AuthProperties struct {
		JWTSecret    string        `env:"JWT_SECRET" envDefault:"mydefaultjwtsecret"`
		CookieName   string        `env:"COOKIE" envDefault:"token"`
		TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
		SecureCookie bool          `env:"SECURE_COOKIE" envDefault:"false"`
	}

	HttpServerProperties struct {
		Name           string        `env:"NAME" envDefault:"wadserv"`
		Port           string        `env:"PORT" envDefault:"8088"`
		ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
		WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
		MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
		PublicDir      string        `env:"PUBLIC_DIR" envDefault:"public"`
		AllowOrigins   []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
		Pprof          bool          `env:"PPROF" envDefault:"false"`
	}

	StoreProperties struct {
		Driver     string `env:"DRIVER" envDefault:"sqlite"`
		SQLitePath string `env:"SQLITE_PATH" envDefault:"wadserv.db"`
		MongoURI   string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
		Database   string `env:"DATABASE" envDefault:"wad-01"`
	}

	BlobProperties struct {
		Driver string `env:"DRIVER" envDefault:"local"`
	}

	S3Properties struct {
		Host      string `env:"HOST" envDefault:"localhost:9000"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		Bucket    string `env:"BUCKET" envDefault:"app"`
		UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
	}
)

// ReadProperties loads an optional .env file and then parses the process
// environment. Values already set in the environment win over the file.
func ReadProperties(envFiles ...string) (*Properties, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read env file: %w", err)
	}

	config := &Properties{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (p *Properties) Validate() error {
	switch p.Store.Driver {
	case StoreMemory, StoreSQLite, StoreMongo:
	default:
		return fmt.Errorf("unknown store driver %q", p.Store.Driver)
	}
	switch p.Blob.Driver {
	case BlobLocal, BlobS3:
	default:
		return fmt.Errorf("unknown blob driver %q", p.Blob.Driver)
	}
	if p.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET must not be empty")
	}
	if p.Server.MaxUploadBytes <= 0 {
		return errors.New("HTTP_MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}
