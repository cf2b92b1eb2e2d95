package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/go-scripts/gsexport/internal/browser"
	"github.com/go-scripts/gsexport/internal/discover"
	"github.com/go-scripts/gsexport/internal/export"
	"github.com/go-scripts/gsexport/internal/gradescope"
	"github.com/go-scripts/gsexport/internal/progress"
	"github.com/go-scripts/gsexport/internal/session"
)

// CLIFlags holds the command line flags.
type CLIFlags struct {
	All     bool          `help:"Export every online assignment of a course." short:"a"`
	Folder  string        `help:"Existing folder to write PDFs into." default:"pdf" short:"f"`
	Cookies string        `help:"Path of the saved session file." default:"cookies.json"`
	Chrome  string        `help:"Path to the Chrome/Chromium binary." env:"GRADESCOPE_CHROME"`
	Email   string        `help:"Account email (prompted when empty)." env:"GRADESCOPE_EMAIL"`
	Pass    string        `help:"Account password (prompted when empty)." env:"GRADESCOPE_PASSWORD" name:"password"`
	Timeout time.Duration `help:"Timeout for each browser operation." default:"300s"`
}

func main() {
	var flags CLIFlags
	kong.Parse(&flags,
		kong.Name("gsexport"),
		kong.Description("Export Gradescope online assignments as PDFs."))

	logger := log.New(os.Stderr)

	info, err := os.Stat(flags.Folder)
	if err != nil || !info.IsDir() {
		logger.Fatal("output folder does not exist", "folder", flags.Folder)
	}

	store := session.NewStore(flags.Cookies)
	client, err := gradescope.NewClient(gradescope.BaseURL, store)
	if err != nil {
		logger.Fatal("could not build platform client", "err", err)
	}

	bridge := browser.New(browser.Config{
		ExecPath: flags.Chrome,
		Timeout:  flags.Timeout,
		RootURL:  gradescope.BaseURL,
		LoggedIn: gradescope.IsAuthenticated,
	})
	if err := bridge.Start(context.Background()); err != nil {
		logger.Fatal("could not launch browser", "err", err)
	}
	defer bridge.Close()

	login := loginPrompt(client, flags, logger)
	if err := export.EstablishSession(bridge, store, login, logger); err != nil {
		logger.Fatal("could not establish a session", "err", err)
	}

	disc, err := discover.New(bridge, gradescope.BaseURL, logger)
	if err != nil {
		logger.Fatal("bad base url", "err", err)
	}
	orch := export.New(bridge, disc, flags.Folder, logger)

	if flags.All {
		runBulk(orch, logger)
		return
	}
	runSingle(orch, logger)
}

func runBulk(orch *export.Orchestrator, logger *log.Logger) {
	courseURL := promptLine("Course URL: ")
	summary, err := orch.ExportAll(courseURL)
	if err != nil {
		logger.Fatal("export failed", "err", err)
	}
	for _, res := range summary.Results {
		if res.State == export.StateFailed {
			logger.Error("not exported", "name", res.Assignment.Name, "err", res.Err)
		}
	}
	// Per-target failures are reported above; only config and login problems
	// fail the run itself.
	logger.Info("done", "exported", summary.Succeeded(), "failed", summary.Failed())
}

func runSingle(orch *export.Orchestrator, logger *log.Logger) {
	outlineURL := promptLine("Assignment outline URL: ")
	filename := promptLine("Output file name: ")
	if err := orch.ExportOne(outlineURL, filename); err != nil {
		if errors.Is(err, export.ErrNotOutline) {
			logger.Fatal("this is not an online assignment; give the outline page URL ending in /outline/edit")
		}
		logger.Fatal("export failed", "err", err)
	}
}

// loginPrompt returns the interactive login handshake, invoked only when no
// saved session works. Credentials come from flags/env when set, otherwise
// from the terminal.
func loginPrompt(client *gradescope.Client, flags CLIFlags, logger *log.Logger) export.LoginFunc {
	return func() (session.Identity, error) {
		email := flags.Email
		if email == "" {
			email = promptLine("Email: ")
		}
		password := flags.Pass
		if password == "" {
			password = promptPassword("Password: ")
		}

		status := progress.NewStatus("logging in")
		status.Start()
		id, err := client.Login(context.Background(), email, password)
		status.Stop()
		if err != nil {
			return session.Identity{}, err
		}
		logger.Info("logged in", "email", email)
		return id, nil
	}
}

func promptLine(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return promptLine("")
	}
	return strings.TrimSpace(string(raw))
}
