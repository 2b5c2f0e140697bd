package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ncdyn/ddns"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/vrischmann/envconfig"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const defaultIPProviders = "https://ifconfig.me/ip,https://ipv4.icanhazip.com,https://api.ipify.org"

type Config struct {
	LoggerLevel string `envconfig:"optional,LOGGER_LEVEL" yaml:"logger_level"`

	Domain          string `envconfig:"NC_DOMAIN" yaml:"domain"`
	Password        string `envconfig:"optional,NC_PASSWORD" yaml:"password"`
	Hosts           string `envconfig:"NC_HOSTS" yaml:"hosts"`
	IntervalSeconds int    `envconfig:"optional,NC_INTERVAL_SECONDS" yaml:"interval_seconds"`
	IPProviders     string `envconfig:"optional,NC_IP_PROVIDERS" yaml:"ip_providers"`
	DNSDiscovery    string `envconfig:"optional,NC_DNS_DISCOVERY" yaml:"dns_discovery"`
	CacheFile       string `envconfig:"optional,NC_CACHE_FILE" yaml:"cache_file"`
	ProbeAddr       string `envconfig:"optional,NC_PROBE_ADDR" yaml:"probe_addr"`
}

var flags = struct {
	configFile   string
	passwordFile string
	once         bool
	verbose      bool
}{}

func main() {
	cmd := &cobra.Command{
		Use:   "ncddnsd",
		Short: "Keep Namecheap dynamic DNS hosts pointed at this machine's public IPv4 address",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "path to a YAML config file (default: environment variables)")
	cmd.Flags().StringVarP(&flags.passwordFile, "password-file", "k", filepath.Join(os.Getenv("HOME"), ".namecheap-ddns"), "path to the dynamic DNS password file, used when NC_PASSWORD is unset")
	cmd.Flags().BoolVar(&flags.once, "once", false, "run a single update cycle and exit")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log full provider responses")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig(flags.configFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LoggerLevel, flags.verbose)

	password := cfg.Password
	if password == "" {
		password, err = readPassword(flags.passwordFile, logger)
		if err != nil {
			return fmt.Errorf("error reading password: %w", err)
		}
	}

	hosts := splitList(cfg.Hosts)
	interval := time.Duration(cfg.IntervalSeconds) * time.Second

	// NC_DNS_DISCOVERY switches discovery to a DNS echo server
	// for networks where http egress to the IP services is filtered.
	resolver := ddns.WebResolver(splitList(cfg.IPProviders)...)
	if cfg.DNSDiscovery != "" {
		resolver = ddns.DNSResolver(cfg.DNSDiscovery)
	}

	logger.Info().
		Str("domain", cfg.Domain).
		Strs("hosts", hosts).
		Dur("interval", interval).
		Msg("starting namecheap-ddns")

	client, err := ddns.New(cfg.Domain,
		ddns.UsingNamecheap(password),
		ddns.UsingResolver(resolver),
		ddns.WithHosts(hosts...),
		ddns.WithCache(ddns.FileCache(cfg.CacheFile)),
		ddns.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("error creating ddns client: %w", err)
	}

	if flags.once {
		return client.Run(ctx)
	}

	if cfg.ProbeAddr != "" {
		closeProbe := startProbeServer(cfg.ProbeAddr, logger)
		defer closeProbe()
	}

	ddns.RunDaemon(client, ctx, interval, &logger)
	<-ctx.Done()
	return nil
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing config file: %w", err)
		}
		if cfg.Domain == "" || cfg.Hosts == "" {
			return cfg, errors.New("config file must set domain and hosts")
		}
	} else if err := envconfig.Init(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to read environment config: %w", err)
	}

	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 300
	}
	if cfg.IPProviders == "" {
		cfg.IPProviders = defaultIPProviders
	}
	if cfg.CacheFile == "" {
		cfg.CacheFile = "/data/last_ip"
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func newLogger(level string, verbose bool) zerolog.Logger {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().
		Level(loggerLevelFromString(level))
	if verbose {
		logger = logger.Level(zerolog.TraceLevel)
	}
	return logger
}

func loggerLevelFromString(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

func readPassword(path string, logger zerolog.Logger) (string, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		logger.Info().Str("path", path).Msg("password file does not exist")
		if err := runSetup(path); err != nil {
			return "", fmt.Errorf("setup: %w", err)
		}
	}
	if err := verifyPermissions(path); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening %q: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	return string(line), nil
}

func runSetup(path string) error {
	time.Sleep(200 * time.Millisecond) // dirty timer hack to try to get stderr and stdout output lines to display in order
	fmt.Printf("Enter Namecheap dynamic DNS password: \n")
	bytekey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("error reading from stdin: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", path, err)
	}
	defer f.Close()
	fmt.Fprintln(f, string(bytekey))
	return nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking password file permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for %q: expected file permissions \"-rw-------\"; found %q", path, perms)
	}
	return nil
}

func startProbeServer(addr string, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.WriteHeader(http.StatusOK)
	})
	srv := http.Server{
		Handler: mux,
		Addr:    addr,
	}
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("probe server failed")
		}
	}()
	return func() {
		_ = srv.Close()
	}
}
