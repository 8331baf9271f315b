package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/auth"
	"github.com/DonovanMods/lion-launcher/internal/core"
	"github.com/DonovanMods/lion-launcher/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Minecraft accounts",
	Long: `Manage the accounts used to launch the game.

Use 'lion auth login' to sign in with a Microsoft account.
Use 'lion auth offline <name>' to add an offline account for singleplayer.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a Microsoft account",
	Long: `Sign in with a Microsoft account using a device code.

lion prints a code and a web address. Open the address in any browser, enter the code
and approve the sign-in. The account must own Minecraft: Java Edition.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authOfflineCmd = &cobra.Command{
	Use:   "offline <name>",
	Short: "Add an offline account",
	Long: `Add an offline account. Offline accounts work for singleplayer and servers in
offline mode. Names are 1-16 letters, digits or underscores.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthOffline,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

var authSwitchCmd = &cobra.Command{
	Use:   "switch <account>",
	Short: "Make an account the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthSwitch,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove <account>",
	Short: "Remove an account and its stored tokens",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh [account]",
	Short: "Refresh a Microsoft account's tokens",
	Long:  `Refresh a Microsoft account's tokens now. Defaults to the active account.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthRefresh,
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authOfflineCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authSwitchCmd)
	authCmd.AddCommand(authRemoveCmd)
	authCmd.AddCommand(authRefreshCmd)
	rootCmd.AddCommand(authCmd)
}

type accountJSON struct {
	UUID      string    `json:"uuid"`
	Username  string    `json:"username"`
	Kind      string    `json:"kind"`
	Active    bool      `json:"active"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func toAccountJSON(a domain.Account) accountJSON {
	return accountJSON{
		UUID:      a.UUID,
		Username:  a.Username,
		Kind:      a.Kind.String(),
		Active:    a.Active,
		ExpiresAt: a.ExpiresAt,
	}
}

// findAccount resolves an account by uuid (with or without dashes) or case-insensitive username
func findAccount(accounts []domain.Account, ref string) (*domain.Account, error) {
	id := strings.ToLower(strings.ReplaceAll(ref, "-", ""))
	var byName []domain.Account
	for _, a := range accounts {
		if a.UUID == id {
			return &a, nil
		}
		if strings.EqualFold(a.Username, ref) {
			byName = append(byName, a)
		}
	}
	switch len(byName) {
	case 0:
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, ref)
	case 1:
		return &byName[0], nil
	default:
		return nil, fmt.Errorf("%q matches a Microsoft and an offline account; use the uuid", ref)
	}
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	attempt, err := svc.Auth().BeginLogin(ctx)
	if err != nil {
		return fmt.Errorf("starting sign-in: %w", err)
	}

	fmt.Printf("Open %s and enter the code %s\n", attempt.VerificationURI, colorYellow(attempt.UserCode))
	fmt.Printf("Waiting for approval (code expires %s)...\n", humanize.Time(attempt.ExpiresAt))

	result := <-attempt.Poll(ctx)
	switch {
	case result.State == auth.LoginAuthorized:
		if jsonOutput {
			return printJSON(toAccountJSON(*result.Account))
		}
		fmt.Printf("%s Signed in as %s\n", colorGreen("✓"), result.Account.Username)
		return nil
	case errors.Is(result.Err, context.Canceled):
		return ErrCancelled
	case result.Err != nil:
		return fmt.Errorf("sign-in %s: %w", result.State, result.Err)
	default:
		return fmt.Errorf("sign-in %s", result.State)
	}
}

func runAuthOffline(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	acct, err := svc.Auth().AddOffline(args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(toAccountJSON(*acct))
	}
	fmt.Printf("%s Added offline account %s; it is now active\n", colorGreen("✓"), acct.Username)
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	accounts, err := svc.Auth().Accounts()
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}

	if jsonOutput {
		out := make([]accountJSON, 0, len(accounts))
		for _, a := range accounts {
			out = append(out, toAccountJSON(a))
		}
		return printJSON(out)
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts. Sign in with 'lion auth login' or add one with 'lion auth offline <name>'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tKIND\tUUID\tACTIVE")
	fmt.Fprintln(w, "--------\t----\t----\t------")
	for _, a := range accounts {
		active := ""
		if a.Active {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Username, a.Kind, a.UUID, active)
	}
	return w.Flush()
}

func runAuthSwitch(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	acct, err := lookupAccount(svc, args[0])
	if err != nil {
		return err
	}
	if err := svc.Auth().SetActive(acct.UUID); err != nil {
		return fmt.Errorf("switching account: %w", err)
	}
	fmt.Printf("%s Active account: %s\n", colorGreen("✓"), acct.Username)
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	acct, err := lookupAccount(svc, args[0])
	if err != nil {
		return err
	}
	next, err := svc.Auth().Remove(acct.UUID)
	if err != nil {
		return fmt.Errorf("removing account: %w", err)
	}

	fmt.Printf("%s Removed %s\n", colorGreen("✓"), acct.Username)
	if acct.Active {
		if next == "" {
			fmt.Println("No accounts left; sign in again before launching.")
		} else if active, err := svc.Auth().Active(); err == nil {
			fmt.Printf("Active account is now %s\n", active.Username)
		}
	}
	return nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	var acct *domain.Account
	if len(args) == 0 {
		acct, err = svc.Auth().Active()
	} else {
		acct, err = lookupAccount(svc, args[0])
	}
	if err != nil {
		return err
	}

	refreshed, err := svc.Auth().Refresh(context.Background(), acct.UUID)
	if err != nil {
		return fmt.Errorf("refreshing %s: %w", acct.Username, err)
	}

	if jsonOutput {
		return printJSON(toAccountJSON(*refreshed))
	}
	if refreshed.Kind == domain.AccountOffline {
		fmt.Printf("%s is an offline account; nothing to refresh\n", refreshed.Username)
		return nil
	}
	fmt.Printf("%s Refreshed %s (valid until %s)\n", colorGreen("✓"), refreshed.Username, refreshed.ExpiresAt.Local().Format(time.Kitchen))
	return nil
}

func lookupAccount(svc *core.Service, ref string) (*domain.Account, error) {
	accounts, err := svc.Auth().Accounts()
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return findAccount(accounts, ref)
}
