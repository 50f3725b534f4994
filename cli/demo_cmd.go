package cli

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ooyala/my-sequel-synchrony/internal"
	"github.com/ooyala/my-sequel-synchrony/pool"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func DemoCommand() *cobra.Command {
	var workers int
	var holdMs int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a contention demo against a loopback TCP backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetPoolConfig(cmd)
			if cfg == nil {
				return fmt.Errorf("pool config unavailable")
			}
			policy, err := pool.ParseRecyclingPolicy(cfg.RecyclingPolicy)
			if err != nil {
				return err
			}

			// Loopback listener standing in for the real backends.
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				return fmt.Errorf("start demo listener: %w", err)
			}
			defer ln.Close()
			go func() {
				for {
					c, err := ln.Accept()
					if err != nil {
						return
					}
					go func(c net.Conn) {
						// Hold the conn open until the dialer closes it.
						buf := make([]byte, 1)
						for {
							if _, err := c.Read(buf); err != nil {
								c.Close()
								return
							}
						}
					}(c)
				}
			}()

			factory := func(ctx context.Context, backend string) (pool.Conn, error) {
				var d net.Dialer
				c, err := d.DialContext(ctx, "tcp", ln.Addr().String())
				if err != nil {
					return nil, err
				}
				internal.Debug("dialed demo backend", internal.Fields{
					internal.FieldBackend: backend,
				})
				return c, nil
			}

			router, err := pool.NewRouter(factory, pool.RouterOptions{
				Options: pool.Options{
					MaxSize: cfg.MaxSize,
					Policy:  policy,
				},
				DefaultBackend: cfg.DefaultBackend,
				Backends:       cfg.Backends,
			})
			if err != nil {
				return err
			}
			defer router.Disconnect()

			backends := router.Backends()
			hold := time.Duration(holdMs) * time.Millisecond

			var wg sync.WaitGroup
			start := time.Now()
			for i := 0; i < workers; i++ {
				wg.Add(1)
				backend := backends[i%len(backends)]
				go func(n int, backend string) {
					defer wg.Done()
					caller := pool.NewCallerID()
					err := router.Hold(cmd.Context(), backend, caller, func(c pool.Conn) error {
						time.Sleep(hold)
						return nil
					})
					if err != nil {
						internal.Error("demo worker failed", internal.Fields{
							internal.FieldBackend: backend,
							internal.FieldError:   err.Error(),
						})
					}
				}(i, backend)
			}
			wg.Wait()

			rows := pterm.TableData{{"Backend", "Size", "Capacity"}}
			for _, name := range backends {
				rows = append(rows, []string{
					name,
					strconv.Itoa(router.Size(name)),
					strconv.Itoa(cfg.MaxSize),
				})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
				return err
			}

			pterm.Success.Printfln("%d workers finished in %s", workers, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 8, "Number of concurrent borrowers")
	cmd.Flags().IntVar(&holdMs, "hold-ms", 50, "How long each borrower holds its connection")
	return cmd
}

func ConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective pool configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetPoolConfig(cmd)
			if cfg == nil {
				return fmt.Errorf("pool config unavailable")
			}

			rows := pterm.TableData{
				{"Setting", "Value"},
				{"max_size", strconv.Itoa(cfg.MaxSize)},
				{"recycling_policy", cfg.RecyclingPolicy},
				{"default_backend", cfg.DefaultBackend},
				{"backends", fmt.Sprintf("%v", cfg.Backends)},
				{"log_level", cfg.LogLevel},
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}
}
