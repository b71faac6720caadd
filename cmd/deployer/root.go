package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	sqlstore "github.com/goliatone/go-deployer/store/sql"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	configEnvVar      = "DEPLOYER_CONFIG"
	defaultConfigPath = "~/.config/go-deployer.yaml"
	defaultDBPath     = "~/.config/go-deployer.db"
	defaultListenAddr = "127.0.0.1:8788"
)

var (
	ConfigPath  string
	Debug       bool
	AutoMigrate bool

	DBDriver     string
	DBDSN        string
	CipherKey    string
	SnapshotsDir string
	Listen       string

	ParsedConfig fileConfig
	// RawConfig holds the deployer section of the config file, handed to the
	// deployer config loader as is.
	RawConfig map[string]any
)

// fileConfig holds the CLI-only keys of the config file. Everything else in
// the file is deployer configuration.
type fileConfig struct {
	Database           sqlstore.PersistenceConfig `yaml:"database"`
	CipherKey          string                     `yaml:"cipher_key"`
	Snapshots          string                     `yaml:"snapshots"`
	Listen             string                     `yaml:"listen"`
	CredentialCacheTTL time.Duration              `yaml:"credential_cache_ttl"`
}

var cliOnlyKeys = []string{"database", "cipher_key", "snapshots", "listen", "credential_cache_ttl"}

var rootCmd = &cobra.Command{
	Use:   "deployer",
	Short: "Publish cached Blitz pages to Netlify",
	Long: `
deployer connects a Netlify account over OAuth and publishes cached page
snapshots to the Netlify sites mapped in the config file.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(cmd); err != nil {
			return fmt.Errorf("deployer: failed to initialise config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "config file location (default: ~/.config/go-deployer.yaml, respects DEPLOYER_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "display debug output")
	rootCmd.PersistentFlags().BoolVar(&AutoMigrate, "auto-migrate", true, "apply pending database migrations on start")
	rootCmd.PersistentFlags().StringVar(&DBDriver, "db-driver", "sqlite3", "database driver (sqlite3 or postgres)")
	rootCmd.PersistentFlags().StringVar(&DBDSN, "db-dsn", "", "database dsn (default: ~/.config/go-deployer.db for sqlite3)")
	rootCmd.PersistentFlags().StringVar(&CipherKey, "cipher-key", "", "key used to encrypt the stored access token")
	rootCmd.PersistentFlags().StringVar(&SnapshotsDir, "snapshots", "", "directory holding cached page snapshots")
	rootCmd.PersistentFlags().StringVar(&Listen, "listen", defaultListenAddr, "address for the OAuth callback and HTTP server")
}

func initializeConfig(cmd *cobra.Command) error {
	explicit := true
	if ConfigPath == "" {
		if envConfig := os.Getenv(configEnvVar); envConfig != "" {
			ConfigPath = envConfig
		} else {
			ConfigPath = defaultConfigPath
			explicit = false
		}
	}
	path, err := homedir.Expand(ConfigPath)
	if err != nil {
		return fmt.Errorf("deployer: unable to expand homedir: %w", err)
	}
	ConfigPath = path

	parsed, raw, err := loadConfigFile(ConfigPath, explicit)
	if err != nil {
		return err
	}
	ParsedConfig = parsed
	RawConfig = raw
	debugLog("config file: %s\n", ConfigPath)

	bindFileConfig(cmd, parsed)
	return nil
}

// loadConfigFile reads the yaml config. A missing default config is not an
// error; a missing explicit one is.
func loadConfigFile(path string, explicit bool) (fileConfig, map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return fileConfig{}, map[string]any{}, nil
	}
	if err != nil {
		return fileConfig{}, nil, fmt.Errorf("deployer: error reading config file: %w", err)
	}

	var parsed fileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fileConfig{}, nil, fmt.Errorf("deployer: issue parsing config file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fileConfig{}, nil, fmt.Errorf("deployer: issue parsing config file: %w", err)
	}
	for _, key := range cliOnlyKeys {
		delete(raw, key)
	}
	return parsed, raw, nil
}

// bindFileConfig fills flags the user did not set from the config file.
func bindFileConfig(cmd *cobra.Command, parsed fileConfig) {
	bind := func(name string, value string, target *string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		if flag := cmd.Flag(name); flag != nil && flag.Changed {
			return
		}
		*target = value
	}
	bind("db-driver", parsed.Database.Driver, &DBDriver)
	bind("db-dsn", parsed.Database.DSN, &DBDSN)
	bind("cipher-key", parsed.CipherKey, &CipherKey)
	bind("snapshots", parsed.Snapshots, &SnapshotsDir)
	bind("listen", parsed.Listen, &Listen)
}

func persistenceConfig() (sqlstore.PersistenceConfig, error) {
	dsn := strings.TrimSpace(DBDSN)
	if dsn == "" {
		if !strings.HasPrefix(strings.ToLower(DBDriver), "sqlite") {
			return sqlstore.PersistenceConfig{}, fmt.Errorf("deployer: --db-dsn is required for driver %q", DBDriver)
		}
		dsn = defaultDBPath
	}
	if strings.HasPrefix(dsn, "~") {
		expanded, err := homedir.Expand(dsn)
		if err != nil {
			return sqlstore.PersistenceConfig{}, fmt.Errorf("deployer: unable to expand homedir: %w", err)
		}
		dsn = expanded
	}
	return sqlstore.PersistenceConfig{
		Driver:      DBDriver,
		DSN:         dsn,
		Debug:       Debug,
		PingTimeout: ParsedConfig.Database.PingTimeout,
	}, nil
}

// Execute runs the root command. It is called once by main.main().
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("deployer: execution error: %w", err)
	}
	return nil
}
