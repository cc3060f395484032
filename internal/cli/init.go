// init.go implements the "fleet init" command with optional --guided flag.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillfleet/fleet/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize fleet in the current project",
	Long: `Create .fleet/config.yaml with default settings and make sure
fleet's runtime files are ignored by git.`,
	RunE: runInit,
}

var guidedFlag bool

func init() {
	initCmd.Flags().BoolVar(&guidedFlag, "guided", false, "Interactive prompts for configuration overrides")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	// Check for an existing config.
	cfgPath := filepath.Join(config.Dir(dir), "config.yaml")
	if _, statErr := os.Stat(cfgPath); statErr == nil {
		fmt.Fprintln(out, "Warning: .fleet/config.yaml already exists.")
		fmt.Fprint(out, "Overwrite? [y/N]: ")
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if guidedFlag {
		guidedOverrides(out, reader, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.WriteConfig(dir, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Ensure .gitignore exists with sensible defaults.
	if err := ensureGitignore(dir); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to set up .gitignore: %v\n", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Fleet initialized")
	fmt.Fprintf(out, "  API: %s\n", cfg.API.BaseURL)
	fmt.Fprintln(out, "Configuration written to .fleet/config.yaml")
	fmt.Fprintln(out, "Put secrets such as FLEET_API_TOKEN in .env")
	return nil
}

// guidedOverrides prompts the user for optional configuration overrides.
// An empty answer keeps the default.
func guidedOverrides(out io.Writer, reader *bufio.Reader, cfg *config.Config) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "--- Guided Configuration ---")

	fmt.Fprintf(out, "API base URL [%s]: ", cfg.API.BaseURL)
	if url, err := reader.ReadString('\n'); err == nil {
		if url = strings.TrimSpace(url); url != "" {
			cfg.API.BaseURL = url
		}
	}

	fmt.Fprintf(out, "Poll interval in ms [%d]: ", cfg.Polling.JobInterval)
	if v, err := reader.ReadString('\n'); err == nil {
		var ms int
		if _, scanErr := fmt.Sscanf(strings.TrimSpace(v), "%d", &ms); scanErr == nil && ms > 0 {
			cfg.Polling.JobInterval = ms
		}
	}

	fmt.Fprintf(out, "Keep history [%t]: ", cfg.History.Enabled)
	if v, err := reader.ReadString('\n'); err == nil {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "n", "no", "false":
			cfg.History.Enabled = false
		case "y", "yes", "true":
			cfg.History.Enabled = true
		}
	}

	fmt.Fprintln(out, "--- End Guided Configuration ---")
}

// ensureGitignore creates or appends to .gitignore with the entries that
// should never be committed. Entries already present are left alone.
func ensureGitignore(dir string) error {
	gitignorePath := filepath.Join(dir, ".gitignore")

	// config.yaml IS committed
	requiredEntries := []string{
		".env",
		".fleet/log.jsonl",
		".fleet/debug.log",
		".fleet/history.db",
	}

	existing := ""
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}

	var missing []string
	for _, entry := range requiredEntries {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var toAppend strings.Builder
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		toAppend.WriteString("\n")
	}
	if existing != "" {
		toAppend.WriteString("\n# Added by fleet init\n")
	}
	for _, entry := range missing {
		toAppend.WriteString(entry + "\n")
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening .gitignore: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(toAppend.String()); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}
