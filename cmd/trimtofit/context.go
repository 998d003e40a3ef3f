package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/maauso/trimtofit/internal/bootstrap"
	"github.com/maauso/trimtofit/internal/client"
	"github.com/maauso/trimtofit/internal/config"
	"github.com/maauso/trimtofit/internal/job"
	"github.com/maauso/trimtofit/internal/progress"
)

type commandContext struct {
	logLevel  *string
	quiet     *bool
	serverURL *string

	depsOnce sync.Once
	deps     *bootstrap.Dependencies
	depsErr  error
}

func newCommandContext(logLevel *string, quiet *bool, serverURL *string) *commandContext {
	return &commandContext{
		logLevel:  logLevel,
		quiet:     quiet,
		serverURL: serverURL,
	}
}

// dependencies loads configuration from the environment and builds the
// services once per invocation. Logs go to stderr so stdout stays clean.
func (c *commandContext) dependencies(cmd *cobra.Command) (*bootstrap.Dependencies, error) {
	c.depsOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.depsErr = fmt.Errorf("load config: %w", err)
			return
		}
		if c.logLevel != nil && strings.TrimSpace(*c.logLevel) != "" {
			cfg.LogLevel = *c.logLevel
		}
		logger := cfg.NewLoggerTo(cmd.ErrOrStderr())

		deps, err := bootstrap.NewDependencies(cfg, logger)
		if err != nil {
			c.depsErr = fmt.Errorf("initialize dependencies: %w", err)
			return
		}
		c.deps = deps
	})
	return c.deps, c.depsErr
}

func (c *commandContext) close() error {
	if c.deps == nil {
		return nil
	}
	return c.deps.Close()
}

func (c *commandContext) isQuiet() bool {
	return c.quiet != nil && *c.quiet
}

func (c *commandContext) remote() bool {
	return c.serverURL != nil && strings.TrimSpace(*c.serverURL) != ""
}

func (c *commandContext) client() (*client.Client, error) {
	if !c.remote() {
		return nil, errors.New("--server or TRIMTOFIT_SERVER is required")
	}
	return client.New(*c.serverURL)
}

type jobRunner func(ctx context.Context, svc *job.Service, sink progress.Sink) (*job.Job, error)

// runJob runs one job with a progress bar on stderr and prints the outcome
// to stdout. With a server configured, req is submitted there and polled;
// otherwise local runs it in-process.
func (c *commandContext) runJob(cmd *cobra.Command, description string, req job.Request, local jobRunner) error {
	if c.remote() {
		return c.runRemote(cmd, description, req)
	}

	deps, err := c.dependencies(cmd)
	if err != nil {
		return err
	}

	sink, finish := newProgressSink(cmd.ErrOrStderr(), description, c.isQuiet())
	j, err := local(cmd.Context(), deps.Service, sink)
	finish()
	if err != nil {
		return err
	}

	printJobSummary(cmd.OutOrStdout(), j)
	return nil
}

func (c *commandContext) runRemote(cmd *cobra.Command, description string, req job.Request) error {
	cl, err := c.client()
	if err != nil {
		return err
	}

	created, err := cl.Submit(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "submitted %s\n", created.ID)

	sink, finish := newProgressSink(cmd.ErrOrStderr(), description, c.isQuiet())
	resp, err := cl.Wait(cmd.Context(), created.ID, sink)
	finish()
	if err != nil {
		return err
	}

	printJobSummary(cmd.OutOrStdout(), jobFromResponse(resp))
	return nil
}

// stdinInput copies standard input into a temp file when path is "-".
// The returned cleanup removes it.
func (c *commandContext) stdinInput(cmd *cobra.Command, path, format string) (string, func(), error) {
	if path != "-" {
		return path, func() {}, nil
	}
	if c.remote() {
		return "", nil, errors.New("stdin input is not supported with --server")
	}

	deps, err := c.dependencies(cmd)
	if err != nil {
		return "", nil, err
	}

	ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	if ext == "" {
		ext = "wav"
	}

	tmp, err := deps.Storage.SaveTemp(cmd.Context(), "stdin."+ext, cmd.InOrStdin())
	if err != nil {
		return "", nil, fmt.Errorf("buffer stdin: %w", err)
	}
	cleanup := func() {
		_ = deps.Storage.CleanupTemp(context.WithoutCancel(cmd.Context()), []string{tmp})
	}
	return tmp, cleanup, nil
}
