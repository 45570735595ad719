package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"macrostudio/api"
	"macrostudio/clipboard"
	"macrostudio/config"
	"macrostudio/generator"
	"macrostudio/service"
	"macrostudio/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var configPath string

// setupLogging creates a log file in logDir with timestamp
// Returns the log file handle (caller should defer Close())
func setupLogging(logDir string) (*os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Create log file with timestamp: log/2025-12-08_21-52-35.log
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, timestamp+".log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Write to both console and file
	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multiWriter)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	log.Printf("📝 Logging to: %s", logPath)
	return logFile, nil
}

func main() {
	root := &cobra.Command{
		Use:          "macrostudio",
		Short:        "Backend for the macro editor, playback visualizer and action generator",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "macro_studio.yaml", "Path to the configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and websocket server",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		exportCommand(),
		importCommand(),
		&cobra.Command{
			Use:   "normalize [file]",
			Short: "Normalize a JSON array of loosely shaped actions (stdin if no file)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runNormalize,
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Server.LogDir != "" {
		logFile, err := setupLogging(cfg.Server.LogDir)
		if err != nil {
			log.Printf("Warning: Failed to setup file logging: %v", err)
		} else {
			defer logFile.Close()
		}
	}

	log.Println("Starting Macro Studio backend...")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	gen, err := generator.New(generator.Config{
		Provider: cfg.Generator.Provider,
		Model:    cfg.Generator.Model,
		APIKey:   cfg.Generator.APIKey,
		BaseURL:  cfg.Generator.BaseURL,
	})
	if err != nil {
		return err
	}
	if cfg.Generator.APIKey == "" {
		log.Printf("⚠️ No API key for %s, generation is disabled", gen.Name())
	}

	wsHub := api.NewWebSocketHub()
	go wsHub.Run()
	defer wsHub.Close()

	player := service.NewPlayer(nil, wsHub)
	playback := service.NewPlaybackService(store, player)
	defer playback.Close()

	router := gin.Default()
	api.SetupRoutes(router, api.Services{
		Store:      store,
		Playback:   playback,
		Generation: service.NewGenerationService(gen, store),
		Hub:        wsHub,
	})

	server := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on http://localhost%s", cfg.Server.Addr)
	log.Printf("WebSocket server on ws://localhost%s/ws", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

// openStore opens the database and loads the macro collection from it.
func openStore(ctx context.Context, cfg *config.Config) (*service.MacroStore, func(), error) {
	db, err := config.InitDatabase(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	store := service.NewMacroStore(storage.NewSQLiteStore(db))
	if err := store.Load(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, func() { db.Close() }, nil
}

func exportCommand() *cobra.Command {
	var toClipboard bool
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the macro collection as JSON (default " + config.ExportFileName + ", '-' for stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, closeDB, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			data, err := store.Export()
			if err != nil {
				return err
			}

			if toClipboard {
				if err := clipboard.Copy(cmd.Context(), string(data)); err == nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "Copied macro configuration to clipboard")
					return nil
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Clipboard unavailable, writing to stdout")
				_, err := cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}

			path := config.ExportFileName
			if len(args) == 1 {
				path = args[0]
			}
			if path == "-" {
				_, err := cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&toClipboard, "clipboard", false, "Copy to the system clipboard instead of a file")
	return cmd
}

func importCommand() *cobra.Command {
	var fromClipboard bool
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the macro collection with a JSON document (stdin if no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			switch {
			case fromClipboard:
				var text string
				text, err = clipboard.Paste(cmd.Context())
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "Clipboard unavailable, paste the JSON and press Ctrl-D:")
					data, err = io.ReadAll(cmd.InOrStdin())
				} else {
					data = []byte(text)
				}
			case len(args) == 1:
				data, err = os.ReadFile(args[0])
			default:
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, closeDB, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := store.Import(cmd.Context(), data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d macros\n", len(store.List()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromClipboard, "clipboard", false, "Read the document from the system clipboard")
	return cmd
}

func runNormalize(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(service.NormalizeJSON(data), "", "  ")
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(out, '\n'))
	return err
}
