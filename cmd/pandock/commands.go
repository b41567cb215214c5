package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/pandock/internal/bridge"
	"github.com/ZebulonRouseFrantzich/pandock/internal/service"
)

// errConversionFailed marks a pandoc run that exited non-zero. Its message
// has already been shown as an event.
var errConversionFailed = errors.New("conversion failed")

func (c *cli) installCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Download and install the managed pandoc if it is missing",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string, s *session) error {
			state, err := s.app.ResolveOrInstallBinary(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(state)
			}
			if state.Fresh {
				fmt.Fprintf(c.stdout, "✓ Installed pandoc at %s\n", state.BinaryPath)
			} else {
				fmt.Fprintf(c.stdout, "✓ pandoc already installed at %s\n", state.BinaryPath)
			}
			return nil
		}),
	}
}

func (c *cli) pathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the path of the managed pandoc",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string, s *session) error {
			path, ok := s.app.GetInstalledBinaryPathIfAny()
			if c.jsonOutput {
				return c.printJSON(struct {
					Installed  bool   `json:"installed"`
					BinaryPath string `json:"binary_path,omitempty"`
				}{ok, path})
			}
			if !ok {
				return fmt.Errorf("%w (run 'pandock install')", service.ErrNoBinary)
			}
			fmt.Fprintln(c.stdout, path)
			return nil
		}),
	}
}

func (c *cli) convertCommand() *cobra.Command {
	var format string
	var noInstall bool

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a document next to its source",
		Long: "Convert runs pandoc on <file> and writes <name>.<format> in the same directory.\n" +
			"Without --binary the managed pandoc is used and installed on first use.",
		Args: cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()

			if _, err := s.app.ResolveBinary(); errors.Is(err, service.ErrNoBinary) && !noInstall {
				if _, err := s.app.ResolveOrInstallBinary(ctx); err != nil {
					return err
				}
			}

			result, err := s.app.ConvertDocument(ctx, "", args[0], format)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				if err := c.printJSON(result); err != nil {
					return err
				}
			} else if result.Success {
				fmt.Fprintln(c.stdout, result.OutputPath)
			}
			if !result.Success {
				return fmt.Errorf("%w: %s", errConversionFailed, result.Error)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&format, "to", "t", "html", "output format")
	cmd.Flags().BoolVar(&noInstall, "no-install", false, "fail instead of installing pandoc when none is available")
	return cmd
}

func (c *cli) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that pandoc starts and answers --version",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string, s *session) error {
			path, err := s.app.ResolveBinary()
			if err != nil {
				return err
			}
			usable, err := s.app.CheckBinaryUsable(cmd.Context(), path)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(struct {
					BinaryPath string `json:"binary_path"`
					Usable     bool   `json:"usable"`
				}{path, usable})
			}
			if !usable {
				return fmt.Errorf("pandoc at %s is not usable", path)
			}
			fmt.Fprintf(c.stdout, "✓ pandoc at %s is usable\n", path)
			return nil
		}),
	}
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pandoc-version",
		Short: "Print the output of pandoc --version",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string, s *session) error {
			version, err := s.app.FetchVersionString(cmd.Context(), "")
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(map[string]string{"version": version})
			}
			fmt.Fprint(c.stdout, version)
			return nil
		}),
	}
}

func (c *cli) formatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the output formats offered by the UI",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string, s *session) error {
			formats := s.app.OutputFormats()
			if c.jsonOutput {
				return c.printJSON(formats)
			}
			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FORMAT\tLABEL\tCATEGORY")
			for _, f := range formats {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Value, f.Label, f.Category)
			}
			return tw.Flush()
		}),
	}
}

func (c *cli) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the host commands and event stream over HTTP",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string, s *session) error {
			if addr == "" {
				addr = s.app.Settings().Bridge.Addr
			}
			srv := bridge.NewServer(s.app, s.bus, s.logger)
			return srv.ListenAndServe(cmd.Context(), addr)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from settings, 127.0.0.1:7345)")
	return cmd
}
