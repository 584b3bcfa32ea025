/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Command repofetcher serves public GitHub repository and project listings
// using GitHub App credentials.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/mikelane/repofetcher/internal/auth"
	"github.com/mikelane/repofetcher/internal/config"
	"github.com/mikelane/repofetcher/internal/credentials"
	"github.com/mikelane/repofetcher/internal/github"
	"github.com/mikelane/repofetcher/internal/guard"
	"github.com/mikelane/repofetcher/internal/health"
	"github.com/mikelane/repofetcher/internal/maintenance"
	"github.com/mikelane/repofetcher/internal/projects"
	"github.com/mikelane/repofetcher/internal/server"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file.")
	opts := zap.Options{
		Development: false,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if err := run(ctrl.SetupSignalHandler(), configPath); err != nil {
		setupLog.Error(err, "repofetcher exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	creds, err := loadCredentials(ctx, cfg.Credentials)
	if err != nil {
		return err
	}

	upstreamOpts := github.Options{
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   cfg.Upstream.Timeout.Std(),
		UserAgent: cfg.Upstream.UserAgent,
	}

	appClient, err := github.NewAppClient(upstreamOpts)
	if err != nil {
		return fmt.Errorf("failed to create GitHub App client: %w", err)
	}
	provider, err := auth.NewProvider(creds, appClient)
	if err != nil {
		return err
	}
	// Derive the first credential eagerly so degraded mode shows up at startup.
	if err := provider.Refresh(ctx); err != nil {
		return err
	}
	setupLog.Info("GitHub App credential ready", "mode", provider.Status().Mode)

	upstream, err := github.NewClient(provider, upstreamOpts)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	upstream = github.NewRetryingClient(upstream, github.DefaultRetryConfig(cfg.Upstream.MaxRetries))

	service := projects.NewService(upstream, cfg.Cache.TTL.Std())
	requestGuard := guard.NewGuard(
		guard.NewSlidingWindow(cfg.RateLimit.Window.Std(), cfg.RateLimit.MaxRequests),
		guard.Limits{
			MaxURLLength:   cfg.RateLimit.MaxURLLength,
			MaxQueryLength: cfg.RateLimit.MaxQueryLength,
			MaxQueryParams: cfg.RateLimit.MaxQueryParams,
		},
	)
	monitor := health.NewMonitor(upstream, health.WithAuthStatus(provider), health.WithVersion(cfg.Server.Version))

	serverOpts := server.Options{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout.Std(),
		WriteTimeout:    cfg.Server.WriteTimeout.Std(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Std(),
		Version:         cfg.Server.Version,
	}
	if cfg.Metrics.Enabled {
		serverOpts.Metrics = promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{})
	}
	apiServer := server.NewServer(serverOpts, requestGuard, service, monitor)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.Start(ctx)
	})
	if interval := cfg.Maintenance.Interval.Std(); interval > 0 {
		scheduler := maintenance.NewScheduler(interval,
			maintenance.NewTask("refresh-token", provider.Refresh),
			maintenance.NewTask("purge-cache", func(context.Context) error {
				service.Purge()
				return nil
			}),
			maintenance.NewTask("sweep-rate-limits", func(context.Context) error {
				requestGuard.Sweep()
				return nil
			}),
		)
		g.Go(func() error {
			return scheduler.Start(ctx)
		})
	}

	return g.Wait()
}

// loadCredentials reads the GitHub App credentials from the configured source.
func loadCredentials(ctx context.Context, cfg config.CredentialsConfig) (*credentials.AppCredentials, error) {
	if cfg.Source != config.CredentialsFromSecret {
		return credentials.FromEnv()
	}

	restConfig, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get Kubernetes config: %w", err)
	}
	k8sClient, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	setupLog.Info("Loading GitHub App credentials from Secret", "namespace", cfg.SecretNamespace, "name", cfg.SecretName)
	return credentials.FromSecret(ctx, k8sClient, types.NamespacedName{
		Namespace: cfg.SecretNamespace,
		Name:      cfg.SecretName,
	})
}
