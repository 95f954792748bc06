package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envSection groups the flags sharing a name prefix in .env.example.
type envSection struct {
	title  string
	prefix string
	hint   string
}

var envSections = []envSection{
	{"SPOTIFY CONFIGURATION - Required", "spotify-",
		"Get these from https://developer.spotify.com/dashboard and add the redirect URL to the app"},
	{"TOKEN STORE", "store-",
		"memory forgets tokens on restart; file and sqlite use --store-path; postgres uses --store-dsn"},
	{"PLAYBACK DEVICE", "player-",
		"The device lives in the /player page, which must stay open during a blind test"},
	{"BLIND TEST", "quiz-", ""},
	{"RECOMMENDATIONS", "recommend-", ""},
	{"HTTP SERVER", "server-", ""},
}

var skipEnvFlags = map[string]bool{
	"config":               true,
	"generate-env-example": true,
	"help":                 true,
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# SpotyFusion Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	fmt.Fprintf(&content, "# Format: %s_<SECTION>_<SETTING>=value\n", envPrefix)
	content.WriteString("# CLI equivalent: --<section>-<setting>\n")
	content.WriteString("#\n\n")

	flags := cmd.Root().PersistentFlags()
	written := make(map[string]bool)

	for _, section := range envSections {
		writeSectionHeader(&content, section.title, section.hint)
		flags.VisitAll(func(f *pflag.Flag) {
			if strings.HasPrefix(f.Name, section.prefix) {
				writeEnvLine(&content, f)
				written[f.Name] = true
			}
		})
		content.WriteString("\n")
	}

	writeSectionHeader(&content, "APPLICATION SETTINGS", "")
	flags.VisitAll(func(f *pflag.Flag) {
		if !written[f.Name] && !skipEnvFlags[f.Name] {
			writeEnvLine(&content, f)
		}
	})

	return content.String()
}

func writeSectionHeader(content *strings.Builder, title, hint string) {
	content.WriteString("# =============================================================================\n")
	fmt.Fprintf(content, "# %s\n", title)
	content.WriteString("# =============================================================================\n")
	if hint != "" {
		fmt.Fprintf(content, "# %s\n", hint)
	}
}

func writeEnvLine(content *strings.Builder, f *pflag.Flag) {
	fmt.Fprintf(content, "%s=%s  # %s (default: %q)\n", flagToEnvVar(f.Name), f.DefValue, f.Usage, f.DefValue)
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
