// Command fedifinder finds the fediverse accounts of the people you follow.
//
// Usage:
//
//	fedifinder following.json                  # Twitter API v2 following response
//	fedifinder -format csv following.json > follows.csv
//	cat profiles.yaml | fedifinder -format markdown -
//	fedifinder -verify @alice@mastodon.social
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/codeGROOVE-dev/fedifinder/pkg/fedifinder"
	"github.com/codeGROOVE-dev/fedifinder/pkg/httpcache"
	"github.com/codeGROOVE-dev/fedifinder/pkg/profile"
	"github.com/codeGROOVE-dev/fedifinder/pkg/report"
	"github.com/codeGROOVE-dev/fedifinder/pkg/source"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fedifinder", flag.ContinueOnError)
	fs.SetOutput(stderr)
	debug := fs.Bool("debug", false, "enable debug logging")
	verbose := fs.Bool("v", false, "verbose logging (same as -debug)")
	noCache := fs.Bool("no-cache", false, "disable HTTP caching (enabled by default with 24h TTL)")
	cacheTTL := fs.Duration("cache-ttl", 24*time.Hour, "cache time-to-live")
	cacheDir := fs.String("cache-dir", "", "cache directory (default: user cache dir/fedifinder)")
	timeout := fs.Duration("timeout", 5*time.Second, "per-request WebFinger timeout")
	concurrency := fs.Int("concurrency", 0, "maximum lookups in flight (0 = unlimited)")
	retries := fs.Uint("retries", 0, "extra attempts for transient lookup failures")
	domainDelay := fs.Duration("domain-delay", 0, "minimum delay between requests to the same server")
	tlsOnly := fs.Bool("tls-only", false, "never fall back to plain http")
	noHostMeta := fs.Bool("no-host-meta", false, "disable the host-meta fallback")
	format := fs.String("format", "text", "output format: text, json, markdown or csv")
	verifiedOnly := fs.Bool("verified-only", false, "only print verified handles")
	verifyID := fs.String("verify", "", "verify a single handle and exit (status 0 when verified)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *verifyID == "" && fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: fedifinder [options] <profiles.json|profiles.yaml|->")
		fmt.Fprintln(stderr, "       fedifinder -verify @user@server.tld")
		fmt.Fprintln(stderr, "\nOptions:")
		fs.PrintDefaults()
		fmt.Fprintln(stderr, "\nInput:")
		fmt.Fprintln(stderr, "  - a Twitter API v2 users/:id/following response (JSON), requested with")
		fmt.Fprintln(stderr, "    expansions=pinned_tweet_id&user.fields=description,location,url,entities")
		fmt.Fprintln(stderr, "  - a JSON or YAML list of profiles (username, name, description, location, url)")
		fmt.Fprintln(stderr, "\nThe csv format can be imported in Mastodon under Preferences > Import and export.")
		return 1
	}

	outFormat, err := report.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Setup logger
	logLevel := slog.LevelInfo
	if *debug || *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel}))

	// Setup cache
	var httpCache *httpcache.Cache
	if !*noCache {
		if *cacheDir != "" {
			httpCache, err = httpcache.NewWithPath(*cacheTTL, *cacheDir)
		} else {
			httpCache, err = httpcache.New(*cacheTTL)
		}
		if err != nil {
			logger.Warn("failed to initialize cache, continuing without cache", "error", err)
			httpCache = nil
		} else {
			defer func() {
				if err := httpCache.Close(); err != nil {
					logger.Warn("failed to close cache", "error", err)
				}
			}()
			logger.Debug("HTTP cache initialized", "ttl", cacheTTL.String())
		}
	}

	// Build options
	opts := []fedifinder.Option{
		fedifinder.WithLogger(logger),
		fedifinder.WithTimeout(*timeout),
		fedifinder.WithConcurrency(*concurrency),
		fedifinder.WithAttempts(*retries + 1),
		fedifinder.WithDomainDelay(*domainDelay),
	}
	if httpCache != nil {
		opts = append(opts, fedifinder.WithHTTPCache(httpCache))
	}
	if *tlsOnly {
		opts = append(opts, fedifinder.WithTLSOnly())
	}
	if *noHostMeta {
		opts = append(opts, fedifinder.WithoutHostMeta())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *verifyID != "" {
		if !fedifinder.Verify(ctx, *verifyID, opts...) {
			fmt.Fprintf(stdout, "%s: not verified\n", *verifyID)
			return 2
		}
		fmt.Fprintf(stdout, "%s: verified\n", *verifyID)
		return 0
	}

	var profiles []*profile.Profile
	if input := fs.Arg(0); input == "-" {
		profiles, err = source.Read(stdin)
	} else {
		profiles, err = source.Load(input)
	}
	if err != nil {
		if errors.Is(err, profile.ErrNoProfiles) {
			logger.Warn("input contains no profiles", "input", fs.Arg(0))
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	rep := fedifinder.Find(ctx, profiles, opts...)
	if *verifiedOnly {
		rep = rep.VerifiedOnly()
	}
	if err := report.Write(stdout, rep, outFormat); err != nil {
		fmt.Fprintf(stderr, "Output error: %v\n", err)
		return 1
	}
	return 0
}
