// Command telebrief-session creates the MTProto user session interactively.
// Run it once on a trusted machine; the daemon then reuses the session file
// without any interactive prompt.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

func main() {
	var sessionPath string
	flag.StringVar(&sessionPath, "session", "./sessions/user.json", "path to the session file to create")
	flag.Parse()

	apiID, err := strconv.Atoi(strings.TrimSpace(os.Getenv("TELEBRIEF_API_ID")))
	if err != nil || apiID == 0 {
		fatal("TELEBRIEF_API_ID is not set (get credentials at https://my.telegram.org)")
	}
	apiHash := strings.TrimSpace(os.Getenv("TELEBRIEF_API_HASH"))
	if apiHash == "" {
		fatal("TELEBRIEF_API_HASH is not set")
	}

	if err := os.MkdirAll(filepath.Dir(sessionPath), 0o755); err != nil {
		fatal(err.Error())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath},
	})

	err = client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(terminalAuth{in: bufio.NewReader(os.Stdin)}, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return err
		}
		self, err := client.Self(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Authorized as %s %s (@%s)\n", self.FirstName, self.LastName, self.Username)
		fmt.Printf("Session saved to %s\n", sessionPath)
		return nil
	})
	if err != nil {
		fatal(err.Error())
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	os.Exit(1)
}

// terminalAuth prompts on stdin for phone, code and the optional 2FA
// password.
type terminalAuth struct {
	in *bufio.Reader
}

func (t terminalAuth) Phone(_ context.Context) (string, error) {
	return t.prompt("Phone number (international format, e.g. +15551234567): ")
}

func (t terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return t.prompt("Verification code: ")
}

func (t terminalAuth) Password(_ context.Context) (string, error) {
	return t.prompt("Two-factor password: ")
}

func (t terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign-up is not supported; use an existing account")
}

func (t terminalAuth) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (t terminalAuth) prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := t.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
