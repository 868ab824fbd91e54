package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/mhersom/dnspin"
	"golang.org/x/term"
)

var config = struct {
	Hostname string
	Zone     string
	KeyFile  string
	Email    string
	IP       string
	Iface    string
	LockFile string
	Verbose  bool
	DryRun   bool

	Attempts    int
	Timeout     time.Duration
	Delay       time.Duration
	VerifyCount int
	VerifyDelay time.Duration
	SettleDelay time.Duration
	RecordTTL   int
	IPSources   string
	DNSServers  string
}{}

var logger *log.Logger = log.New(io.Discard, "", log.LstdFlags)

func init() {
	// .env is optional; real environment variables win either way
	godotenv.Load()

	flag.StringVar(&config.Hostname, "d", env("DNSPIN_HOSTNAME", ""), "DNS entry to update (relative to the zone or fully qualified)")
	flag.StringVar(&config.Zone, "z", env("DNSPIN_ZONE", ""), "Zone containing the DNS entry (default: last two labels of -d)")
	flag.StringVar(&config.KeyFile, "k", env("DNSPIN_KEYFILE", filepath.Join(os.Getenv("HOME"), ".cloudflare")), "Path to cloudflare API credentials file")
	flag.StringVar(&config.Email, "email", env("CLOUDFLARE_EMAIL", ""), "Account email for legacy API key auth (token auth if empty)")
	flag.StringVar(&config.IP, "ip", "", "Skip discovery and set this IP address")
	flag.StringVar(&config.Iface, "iface", "", "Discover the IP from these comma-separated interfaces instead of web services (for hosts with a public address)")
	flag.StringVar(&config.LockFile, "lock", env("DNSPIN_LOCKFILE", filepath.Join(os.TempDir(), "dnspin.lock")), "Path to the single-instance lock file")
	flag.BoolVar(&config.Verbose, "v", false, "Enable verbose logging")
	flag.BoolVar(&config.DryRun, "dry-run", false, "Report the update decision without changing anything")

	flag.IntVar(&config.Attempts, "attempts", 3, "Attempts per provider/lookup call")
	flag.DurationVar(&config.Timeout, "timeout", 10*time.Second, "Timeout per network attempt")
	flag.DurationVar(&config.Delay, "delay", 5*time.Second, "Wait between attempts")
	flag.IntVar(&config.VerifyCount, "verify-attempts", 5, "Published-DNS polls before giving up on verification")
	flag.DurationVar(&config.VerifyDelay, "verify-delay", 30*time.Second, "Wait between verification polls")
	flag.DurationVar(&config.SettleDelay, "settle", 60*time.Second, "Propagation grace period before verification starts")
	flag.IntVar(&config.RecordTTL, "ttl", 60, "TTL in seconds written on record updates")
	flag.StringVar(&config.IPSources, "sources", env("DNSPIN_IP_SOURCES", ""), "Comma-separated public IP echo service URLs")
	flag.StringVar(&config.DNSServers, "resolvers", env("DNSPIN_DNS_SERVERS", ""), "Comma-separated public DNS servers (host:port) for published lookups")
	flag.Parse()

	if config.Verbose {
		logger = log.Default()
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := validate(); err != nil {
		return err
	}
	logger.Printf("config is valid: %+v", config)

	// One writer per target at a time; overlapping cron invocations simply
	// bail out here.
	lock := flock.New(config.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("error acquiring lock %q: %w", config.LockFile, err)
	}
	if !locked {
		return fmt.Errorf("another instance holds the lock %q", config.LockFile)
	}
	defer lock.Unlock()

	target, err := dnspin.NewTarget(config.Hostname, config.Zone)
	if err != nil {
		return err
	}

	key, err := credential()
	if err != nil {
		return fmt.Errorf("error reading key: %w", err)
	}

	options := []dnspin.Option{
		dnspin.WithLogger(logger),
		dnspin.WithRetryPolicy(dnspin.Policy{
			MaxAttempts: config.Attempts,
			Timeout:     config.Timeout,
			Delay:       config.Delay,
		}),
		dnspin.WithVerification(config.VerifyCount, config.VerifyDelay, config.SettleDelay),
		dnspin.WithRecordTTL(config.RecordTTL),
		dnspin.WithDryRun(config.DryRun),
	}
	if config.Email != "" {
		options = append(options, dnspin.UsingCloudflareKey(key, config.Email))
	} else {
		options = append(options, dnspin.UsingCloudflare(key))
	}
	if config.IP != "" {
		r, err := dnspin.FromString(config.IP)
		if err != nil {
			return err
		}
		options = append(options, dnspin.UsingResolver(r))
	} else if config.Iface != "" {
		options = append(options, dnspin.UsingResolver(dnspin.InterfaceResolver(splitList(config.Iface)...)))
	} else if config.IPSources != "" {
		options = append(options, dnspin.UsingWebResolver(splitList(config.IPSources)...))
	}
	if config.DNSServers != "" {
		options = append(options, dnspin.UsingLookup(dnspin.NewLookupClient(splitList(config.DNSServers)...)))
	}

	ctrl, err := dnspin.New(target, options...)
	if err != nil {
		return fmt.Errorf("error creating dnspin controller: %w", err)
	}

	outcome, err := ctrl.Run(context.Background())
	if err != nil {
		return fmt.Errorf("%s: %w", target.Hostname, err)
	}
	switch outcome {
	case dnspin.OutcomeUpdated:
		fmt.Printf("%s updated and verified\n", target.Hostname)
	case dnspin.OutcomeWouldUpdate:
		fmt.Printf("%s: update needed (dry run, nothing changed)\n", target.Hostname)
	case dnspin.OutcomeNoChange:
		logger.Printf("%s: no change needed", target.Hostname)
	}
	return nil
}

func validate() error {
	if config.Hostname == "" {
		return errors.New("hostname cannot be empty")
	}
	if config.Zone == "" {
		// fall back to the registrable part of the hostname
		sl := strings.Split(config.Hostname, ".")
		if len(sl) < 2 {
			return errors.New("zone cannot be derived from a relative hostname; pass -z")
		}
		config.Zone = strings.Join(sl[len(sl)-2:], ".")
	}
	return nil
}

// credential returns the API token, preferring the environment over the key
// file. An absent key file triggers interactive setup.
func credential() (string, error) {
	if token := os.Getenv("CLOUDFLARE_API_TOKEN"); token != "" {
		return token, nil
	}

	_, err := os.Stat(config.KeyFile)
	if os.IsNotExist(err) {
		logger.Printf("key file %q does not exist\n", config.KeyFile)
		if err := runSetup(); err != nil {
			return "", fmt.Errorf("setup: %w", err)
		}
	}
	if err := verifyPermissions(config.KeyFile); err != nil {
		return "", err
	}
	return readKey(config.KeyFile)
}

func runSetup() error {
	logger.Println("running setup")
	time.Sleep(200 * time.Millisecond) // dirty timer hack to try to get stderr and stdout output lines to display in order
	fmt.Printf("Enter Cloudflare API Key: \n")
	bytekey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("runSetup: error reading from stdin: %w", err)
	}
	key := string(bytekey)

	api, err := cloudflare.NewWithAPIToken(key)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Println("verifying token...")
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got %q", result.Status)
	}
	logger.Println("token verified successfully")

	logger.Printf("creating key file at %q\n", config.KeyFile)
	f, err := os.OpenFile(config.KeyFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", config.KeyFile, err)
	}
	defer f.Close()
	fmt.Fprintln(f, key)
	logger.Printf("token written to %q\n", config.KeyFile)
	return nil
}

func env(envvar string, defaultvalue string) string {
	e, found := os.LookupEnv(envvar)
	if found {
		return e
	}
	return defaultvalue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func readKey(path string) (key string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	return string(keyb), nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking keyfile permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for %q: expected file permissions \"-rw-------\"; found %q", path, fs.FileMode(perms))
	}

	return nil
}
