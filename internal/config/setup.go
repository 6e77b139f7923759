package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard guides the user through first-time configuration.
func RunSetupWizard(cfg *Config, in io.Reader, out io.Writer) error {
	return runWizard(cfg, bufio.NewReader(in), out)
}

func runWizard(cfg *Config, reader *bufio.Reader, out io.Writer) error {
	p := prompter{r: reader, w: out}

	fmt.Fprintln(out, "╔══════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║          cubelink - First Run Setup          ║")
	fmt.Fprintln(out, "╚══════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	client := cfg.GetClientData()
	app := cfg.GetApplicationData()

	fmt.Fprintln(out, "── Server ──")
	client.ServerHost = p.String("Server host", client.ServerHost)
	client.ServerPort = p.Int("Server port", client.ServerPort)
	client.ProtocolVersion = p.String("Protocol version ("+SupportedVersionList()+")", client.ProtocolVersion)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Account ──")
	client.Username = p.String("Username", client.Username)
	client.OnlineMode = p.Bool("Online mode (authenticate with session server)", client.OnlineMode)
	if client.OnlineMode {
		client.ProfileID = p.String("Profile id", client.ProfileID)
		client.AccessToken = p.Secret("Access token")
		client.SessionServerURL = p.String("Session server URL", client.SessionServerURL)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── REST API ──")
	app.API.Enabled = p.Bool("Enable REST API", app.API.Enabled)
	if app.API.Enabled {
		app.API.Port = p.Int("REST API port", app.API.Port)
		app.Security.APIToken = p.String("API token (blank for none)", app.Security.APIToken)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Notifications ──")
	app.Webhook.URL = p.String("Webhook URL (blank to disable)", app.Webhook.URL)
	app.MQTT.Enabled = p.Bool("Enable MQTT telemetry", app.MQTT.Enabled)
	if app.MQTT.Enabled {
		app.MQTT.BrokerURL = p.String("MQTT broker host", app.MQTT.BrokerURL)
		app.MQTT.Port = p.Int("MQTT broker port", app.MQTT.Port)
	}

	cfg.SetClientData(client)
	cfg.SetApplicationData(app)

	// Validate before saving
	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Fprintln(out, "\n⚠ Configuration has errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - [%s] %s\n", e.Field, e.Message)
		}
		if strings.ToLower(p.String("Would you like to try again? (yes/no)", "yes")) == "yes" {
			return runWizard(cfg, reader, out)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "✓ Configuration saved successfully!")
	fmt.Fprintln(out)
	return nil
}

type prompter struct {
	r *bufio.Reader
	w io.Writer
}

func (p prompter) line() string {
	input, _ := p.r.ReadString('\n')
	return strings.TrimSpace(input)
}

func (p prompter) String(prompt, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(p.w, "  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(p.w, "  %s: ", prompt)
	}
	if input := p.line(); input != "" {
		return input
	}
	return defaultVal
}

func (p prompter) Secret(prompt string) string {
	fmt.Fprintf(p.w, "  %s: ", prompt)
	return p.line()
}

func (p prompter) Int(prompt string, defaultVal int) int {
	fmt.Fprintf(p.w, "  %s [%d]: ", prompt, defaultVal)
	input := p.line()
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(p.w, "    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func (p prompter) Bool(prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}
	fmt.Fprintf(p.w, "  %s [%s]: ", prompt, defaultStr)
	input := strings.ToLower(p.line())
	if input == "" {
		return defaultVal
	}
	return input == "yes" || input == "y" || input == "true" || input == "1"
}
