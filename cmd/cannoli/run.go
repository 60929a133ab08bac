package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/DeabLabs/cannoli-sub001/canvas"
	"github.com/DeabLabs/cannoli-sub001/engine"
	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/fetch"
	"github.com/DeabLabs/cannoli-sub001/persist"
	"github.com/DeabLabs/cannoli-sub001/providers"
	"github.com/DeabLabs/cannoli-sub001/store/sqlite"
	"github.com/DeabLabs/cannoli-sub001/viz"
)

const exitInterrupted = 130

type runFlags struct {
	args     []string
	configs  []string
	provider string
	model    string
	baseURL  string
	envFile  string
	record   string
	mermaid  bool
	mock     bool
	quiet    bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <canvas.json>",
		Short: "Execute a canvas file and print its named results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanvas(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().StringArrayVar(&flags.args, "arg", nil, "input override as name=value, repeatable")
	cmd.Flags().StringArrayVar(&flags.configs, "config", nil, "run config as key=value, repeatable")
	cmd.Flags().StringVar(&flags.provider, "provider", "openai", "LLM provider (openai, azure_openai, ollama, anthropic, groq, gemini)")
	cmd.Flags().StringVar(&flags.model, "model", "", "model name, defaults to the provider's")
	cmd.Flags().StringVar(&flags.baseURL, "base-url", "", "provider base URL override")
	cmd.Flags().StringVar(&flags.envFile, "env", "", "dotenv file with provider keys")
	cmd.Flags().StringVar(&flags.record, "record", "", "sqlite path to record run transitions to")
	cmd.Flags().BoolVar(&flags.mermaid, "mermaid", false, "print the compiled graph as Mermaid and exit")
	cmd.Flags().BoolVar(&flags.mock, "mock", false, "run against the echoing mock provider")
	cmd.Flags().BoolVar(&flags.quiet, "quiet", false, "suppress progress output")

	return cmd
}

func runCanvas(ctx context.Context, path string, flags runFlags) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if flags.mermaid {
		data, err := canvas.Parse(raw)
		if err != nil {
			return err
		}
		graph, err := factory.Compile(data, factory.Options{})
		if err != nil {
			return err
		}
		fmt.Print(viz.Mermaid(graph))
		return nil
	}

	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil {
			return fmt.Errorf("loading %s: %w", flags.envFile, err)
		}
	}

	args, err := parsePairs(flags.args)
	if err != nil {
		return err
	}
	config, err := parsePairs(flags.configs)
	if err != nil {
		return err
	}

	params := engine.RunParams{
		CanvasJSON: raw,
		Args:       args,
		Config:     config,
		IsMock:     flags.mock,
		Fetcher:    fetch.NewHTTP(),
	}
	if !flags.mock {
		params.LLMConfigs = []providers.Config{{
			Provider: providers.ProviderName(flags.provider),
			Model:    flags.model,
			APIKey:   providerKey(flags.provider),
			BaseURL:  flags.baseURL,
		}}
	}

	var persistors persist.Multi
	if !flags.quiet {
		persistors = append(persistors, viz.NewProgress(os.Stderr))
	}
	var recorder *persist.Recorder
	if flags.record != "" {
		s, err := sqlite.New(sqlite.Options{Path: flags.record})
		if err != nil {
			return err
		}
		defer s.Close()
		recorder = persist.NewRecorder(path, s)
		persistors = append(persistors, recorder)
	}
	if len(persistors) > 0 {
		params.Persistor = persistors
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	results, stop, err := engine.RunWithControl(context.Background(), params)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		stop()
	}()

	stoppage := <-results
	if recorder != nil {
		format := providers.NewChatFormat("")
		if err := recorder.SaveTranscript(context.Background(), format.Render(stoppage.Messages)); err != nil {
			return err
		}
	}

	switch stoppage.Reason {
	case engine.ReasonError:
		return fmt.Errorf("run failed: %s", stoppage.Description)
	case engine.ReasonStopped:
		os.Exit(exitInterrupted)
	}

	printResults(stoppage.Results)
	return nil
}

func printResults(results map[string]string) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if len(names) > 1 {
			fmt.Printf("## %s\n\n%s\n\n", name, results[name])
			continue
		}
		fmt.Println(results[name])
	}
}

func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", p)
		}
		out[name] = value
	}
	return out, nil
}

// providerKey resolves the API key from the conventional environment
// variable for each provider.
func providerKey(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "azure_openai":
		return os.Getenv("AZURE_OPENAI_API_KEY")
	case "ollama":
		return ""
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}
