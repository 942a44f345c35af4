package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/lazyaider/lazyaider/internal/config"
	"github.com/lazyaider/lazyaider/internal/dispatch"
	"github.com/lazyaider/lazyaider/internal/llm"
	"github.com/lazyaider/lazyaider/internal/logging"
	"github.com/lazyaider/lazyaider/internal/plan"
	"github.com/lazyaider/lazyaider/internal/planner"
	"github.com/lazyaider/lazyaider/internal/tmux"
	"github.com/lazyaider/lazyaider/internal/ui"
)

const Version = "0.3.0"

func init() {
	initColorProfile()
}

// initColorProfile configures lipgloss for the terminal. Prefers TrueColor,
// falls back to ANSI256. LAZYAIDER_COLOR overrides detection.
func initColorProfile() {
	switch strings.ToLower(os.Getenv("LAZYAIDER_COLOR")) {
	case "truecolor", "true", "24bit":
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	case "256", "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
		return
	case "16", "ansi", "basic":
		lipgloss.SetColorProfile(termenv.ANSI)
		return
	case "none", "off", "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	if ct := os.Getenv("COLORTERM"); ct == "truecolor" || ct == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	termName := os.Getenv("TERM")
	for _, t := range []string{"xterm-256color", "screen-256color", "tmux-256color", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(termName, t) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	loadSession := flag.String("load-session", "", "Attach to this managed session, skipping the selector")
	runInPane := flag.Bool("run-in-tmux-pane", false, "Run the sidebar inside a tmux pane (internal)")
	targetPane := flag.String("target-pane", "", "Shell pane target for the sidebar (internal)")
	sessionName := flag.String("session-name", "", "Session name for the sidebar (internal)")
	configPath := flag.String("config", "", "Config file path (default: ./"+config.FileName+" then ~/"+config.FileName+")")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Println("Usage: lazyaider [options]")
		fmt.Println()
		fmt.Println("tmux session manager with plan-driven aider dispatch.")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  lazyaider                         # pick a session, then attach")
		fmt.Println("  lazyaider --load-session backend  # attach directly")
	}
	flag.Parse()

	if *version {
		fmt.Printf("lazyaider v%s\n", Version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	initLogging(*debug)
	defer logging.Shutdown()

	ui.InitTheme(
		ui.ResolveTheme(cfg.Settings.ThemeName),
		cfg.Settings.LabelColorCompleted,
		cfg.Settings.LabelColorCurrent,
	)

	if *runInPane {
		if *sessionName == "" || *targetPane == "" {
			fmt.Fprintln(os.Stderr, "Error: --run-in-tmux-pane requires --session-name and --target-pane")
			os.Exit(1)
		}
		runSidebar(cfg, *sessionName, *targetPane)
		return
	}

	if err := tmux.IsAvailable(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: tmux not found in PATH")
		fmt.Fprintln(os.Stderr, "\nlazyaider requires tmux. Install with your package manager, e.g.:")
		fmt.Fprintln(os.Stderr, "  brew install tmux")
		os.Exit(1)
	}
	if os.Getenv("TMUX") != "" {
		fmt.Fprintln(os.Stderr, "Error: already inside a tmux session. Detach first.")
		os.Exit(1)
	}

	name := *loadSession
	if name == "" {
		name = runSelector(cfg)
		if name == "" {
			return
		}
	}

	if err := bootstrap(cfg, name, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Store, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

func initLogging(debug bool) {
	logging.Init(logging.Config{
		Debug:      debug || os.Getenv("LAZYAIDER_DEBUG") != "",
		LogDir:     config.LogDir(),
		Level:      "debug",
		Format:     "json",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 10,
		Compress:   true,
	})
}

// runSelector shows the session picker. Returns "" when the user quit.
func runSelector(cfg *config.Store) string {
	selector := ui.NewSelector(cfg)
	p := tea.NewProgram(selector, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	result := selector.Result()
	if result == nil {
		return ""
	}
	return result.Name
}

// bootstrap ensures the managed session exists in the config and in tmux,
// splits off the sidebar pane, and attaches.
func bootstrap(cfg *config.Store, name, configPath string) error {
	if _, err := cfg.SelectOrCreate(name); err != nil {
		return err
	}

	session := tmux.NewSession(name)
	width, height := 0, 0
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width, height = w, h
	}
	if err := session.Create(width, height); err != nil {
		return err
	}

	if !session.PaneExists(session.SidebarPane()) {
		percent := cfg.Settings.SidepanePercentWidth
		if err := session.SplitSidebar(percent); err != nil {
			return err
		}
		if err := launchSidebar(session, name, configPath); err != nil {
			return err
		}
	}

	_ = tmux.SetGlobalOption("mouse", "on")
	_ = tmux.SetGlobalOption("pane-border-lines", "heavy")
	if err := session.SelectPane(session.ShellPane()); err != nil {
		return err
	}
	return session.Attach()
}

// launchSidebar execs this binary in sidebar mode inside the right pane.
func launchSidebar(session *tmux.Session, name, configPath string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	cmd := fmt.Sprintf("exec %q --run-in-tmux-pane --session-name %q --target-pane %q",
		self, name, session.ShellPane())
	if configPath != "" {
		cmd += fmt.Sprintf(" --config %q", configPath)
	}
	if err := session.SendKeys(session.SidebarPane(), cmd); err != nil {
		return err
	}
	return session.SendEnter(session.SidebarPane())
}

// runSidebar is the in-pane mode: the sidebar TUI wired to the shell pane.
func runSidebar(cfg *config.Store, name, target string) {
	session := tmux.NewSession(name)
	plans := plan.NewStore(config.PlansDir())

	watcher, err := plan.NewWatcher(plans.Dir())
	if err == nil {
		go watcher.Start()
		defer watcher.Stop()
	} else {
		watcher = nil
	}

	settle := time.Duration(cfg.Settings.DelaySendInput * float64(time.Second))
	bridge := dispatch.New(dispatch.NewTmuxPane(session, target), settle)

	newProtocol := func(method planner.ContextMethod) *planner.Protocol {
		client := llm.New(cfg.Settings.LLMModel, cfg.Settings.LLMAPIKey)
		return planner.New(cfg, client, plans, planner.Options{
			Session:       name,
			ContextMethod: method,
		})
	}

	var themeWatch *ui.ThemeWatcher
	if cfg.Settings.ThemeName == "system" {
		themeWatch = ui.NewThemeWatcher(context.Background())
		if themeWatch != nil {
			defer themeWatch.Close()
		}
	}

	sidebar := ui.NewSidebar(ui.SidebarDeps{
		Config:      cfg,
		Plans:       plans,
		Watcher:     watcher,
		Bridge:      bridge,
		Session:     session,
		NewProtocol: newProtocol,
		ThemeWatch:  themeWatch,
	})

	p := tea.NewProgram(sidebar, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
