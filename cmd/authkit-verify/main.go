// Command authkit-verify verifies a bearer token against a configured
// identity provider and prints the mapped user details. Useful for debugging
// provider configuration without a full host application.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"authkit/internal/identity"
	"authkit/internal/observability"
	"authkit/internal/provider"
	"authkit/internal/verifier"
)

func main() {
	logCfg := observability.ConfigFromEnv()
	logger := observability.NewLogger(logCfg)

	configPath := flag.String("config", "", "path to YAML provider configuration")
	providerName := flag.String("provider", "", "provider name (optional when only one is configured)")
	token := flag.String("token", "", "token to verify (defaults to stdin)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      envOr("AUTHKIT_SENTRY_ENVIRONMENT", "development"),
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	pcfg, ok := cfg.Provider(*providerName)
	if !ok {
		logger.Error("provider not found in configuration", "provider", *providerName)
		os.Exit(1)
	}

	tokenString := strings.TrimSpace(*token)
	if tokenString == "" {
		tokenString = readTokenFromStdin(logger)
	}
	if tokenString == "" {
		logger.Error("no token provided; pass -token or pipe it on stdin")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cache := provider.NewMetadataCache(
		provider.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		provider.WithLogger(logger),
	)
	verify := verifier.New(cache)

	claims, err := verify.Verify(ctx, tokenString, pcfg)
	if err != nil {
		logger.Error("token verification failed", "provider", pcfg.Name, "error", err)
		os.Exit(1)
	}

	details := identity.FromClaims(claims)

	out := struct {
		Provider string               `json:"provider"`
		Details  identity.UserDetails `json:"details"`
		Claims   verifier.Claims      `json:"claims"`
	}{Provider: pcfg.Name, Details: details, Claims: claims}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encoding output failed", "error", err)
		os.Exit(1)
	}
}

func readTokenFromStdin(logger observability.Logger) string {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return ""
	}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading stdin failed", "error", err)
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
