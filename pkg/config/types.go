package config

// Config represents the contagion simulation configuration
type Config struct {
	LogLevel  string  `yaml:"log_level"`
	LogFormat string  `yaml:"log_format"` // json or text
	Network   Network `yaml:"network"`
	Sweep     Sweep   `yaml:"sweep"`
	Store     Store   `yaml:"store"`
	Plot      Plot    `yaml:"plot"`
	Server    Server  `yaml:"server"`
}

// Network describes the population of each generated network.
type Network struct {
	Population      int     `yaml:"population"`
	InterbankAssets float64 `yaml:"interbank_assets"`
	Liabilities     float64 `yaml:"liabilities"`
	ExternalAssets  float64 `yaml:"external_assets"` // shared by every bank
}

// Sweep describes the density sweep and Monte-Carlo trial count.
type Sweep struct {
	DensityStart float64 `yaml:"density_start"`
	DensityStop  float64 `yaml:"density_stop"` // exclusive
	DensityStep  float64 `yaml:"density_step"`
	Iterations   int     `yaml:"iterations"`
	Threshold    float64 `yaml:"threshold"`
	Seed         int64   `yaml:"seed"` // 0 seeds from the clock
}

// Store selects the persistence backend for the contagion curve.
type Store struct {
	Backend  string        `yaml:"backend"` // file, memory, redis, postgres, s3
	Path     string        `yaml:"path"`
	Redis    RedisStore    `yaml:"redis"`
	Postgres PostgresStore `yaml:"postgres"`
	S3       S3Store       `yaml:"s3"`
}

// RedisStore holds Redis connection settings.
type RedisStore struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// PostgresStore holds PostgreSQL connection settings.
type PostgresStore struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// S3Store holds S3-compatible object storage settings.
type S3Store struct {
	Endpoint       string `yaml:"endpoint"`
	Region         string `yaml:"region"`
	Bucket         string `yaml:"bucket"`
	Key            string `yaml:"key"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// Plot configures the rendered contagion curve.
type Plot struct {
	Output       string  `yaml:"output"`
	Title        string  `yaml:"title"`
	WidthInches  float64 `yaml:"width_inches"`
	HeightInches float64 `yaml:"height_inches"`
}

// Server configures the daemon listeners.
type Server struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// Defaults returns the reference calibration: 500 banks, densities 0 to 9.5
// in steps of 0.5, 100 trials per density and a 5% systemic threshold.
func Defaults() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Network: Network{
			Population:      500,
			InterbankAssets: 0.2,
			Liabilities:     0.96,
			ExternalAssets:  0.8,
		},
		Sweep: Sweep{
			DensityStart: 0,
			DensityStop:  10,
			DensityStep:  0.5,
			Iterations:   100,
			Threshold:    0.05,
		},
		Store: Store{
			Backend: "file",
			Path:    "data.json",
			Redis: RedisStore{
				Addr: "localhost:6379",
				Key:  "contagion:curve",
			},
			Postgres: PostgresStore{
				Table: "contagion_curve",
			},
			S3: S3Store{
				Region: "us-east-1",
				Key:    "contagion/data.json",
			},
		},
		Plot: Plot{
			Output:       "contagion.png",
			Title:        "Probability of contagion",
			WidthInches:  6,
			HeightInches: 4,
		},
		Server: Server{
			HTTPAddr: ":8080",
			GRPCAddr: ":50051",
		},
	}
}
