// lazyaider-plan generates a plan from a feature description file without
// the TUI. It is the scripting entry point for the same pipeline the sidebar
// drives interactively.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lazyaider/lazyaider/internal/config"
	"github.com/lazyaider/lazyaider/internal/llm"
	"github.com/lazyaider/lazyaider/internal/logging"
	"github.com/lazyaider/lazyaider/internal/plan"
	"github.com/lazyaider/lazyaider/internal/planner"
)

func main() {
	planFile := flag.String("plan-file", "", "File holding the feature description (required)")
	dumpPrompt := flag.String("dump-prompt", "", "Write the rendered prompt to this file before calling the model")
	useRepomix := flag.Bool("use-repomix", false, "Build the repository map with repomix instead of aider")
	sessionName := flag.String("session", "", "Session whose prompt override and plan binding apply")
	configPath := flag.String("config", "", "Config file path")
	regenerate := flag.Bool("regenerate", false, "Overwrite an existing plan with the same slug")

	flag.Usage = func() {
		fmt.Println("Usage: lazyaider-plan --plan-file FILE [options]")
		fmt.Println()
		fmt.Println("Generate a step-by-step aider plan from a feature description.")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  lazyaider-plan --plan-file feature.md")
		fmt.Println("  lazyaider-plan --plan-file feature.md --use-repomix --dump-prompt prompt.md")
	}
	flag.Parse()

	if *planFile == "" {
		fmt.Fprintln(os.Stderr, "Error: --plan-file is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Debug:      os.Getenv("LAZYAIDER_DEBUG") != "",
		LogDir:     config.LogDir(),
		Level:      "debug",
		Format:     "json",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 10,
		Compress:   true,
	})
	defer logging.Shutdown()

	description, err := os.ReadFile(*planFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	method := planner.MethodAider
	if *useRepomix {
		method = planner.MethodRepomix
	}

	client := llm.New(cfg.Settings.LLMModel, cfg.Settings.LLMAPIKey)
	plans := plan.NewStore(config.PlansDir())
	proto := planner.New(cfg, client, plans, planner.Options{
		Session:        *sessionName,
		ContextMethod:  method,
		DumpPromptPath: *dumpPrompt,
		Regenerate:     *regenerate,
	})

	if err := proto.Submit(string(description)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Ctrl+C abandons the request without leaving a partial plan behind.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generated, err := proto.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *sessionName != "" {
		if err := cfg.BindPlan(*sessionName, generated.Slug); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Plan %q saved (%d sections)\n", generated.Slug, len(generated.Sections))
	var titles []string
	for _, sec := range generated.Sections {
		titles = append(titles, fmt.Sprintf("  %d. %s", sec.Index+1, sec.Title))
	}
	fmt.Println(strings.Join(titles, "\n"))
}

func loadConfig(path string) (*config.Store, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}
