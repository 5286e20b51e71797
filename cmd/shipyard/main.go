package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	apiclient "github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
	"github.com/QSchlegel/OrchWiz-sub000/pkg/console"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
}

var buildVersion = "dev"

const defaultAPIBase = "http://localhost:4100"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "signup":
		err = commandAuth(args, true)
	case "login":
		err = commandAuth(args, false)
	case "launch":
		err = commandLaunch(args)
	case "fleet":
		err = commandFleet(args)
	case "ops":
		err = commandOps(args)
	case "ships":
		err = commandShips(args)
	case "crew":
		err = commandCrew(args)
	case "secrets":
		err = commandSecrets(args)
	case "sessions":
		err = commandSessions(args)
	case "billing":
		err = commandBilling(args)
	case "transfer":
		err = commandTransfer(args)
	case "snapshot":
		err = commandSnapshot(args)
	case "watch":
		err = commandWatch(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError renders API errors with their code and suggested follow-ups.
func printError(err error) {
	var apiErr apiclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code != "" {
			fmt.Fprintf(os.Stderr, "error (%s): %s\n", apiErr.Code, apiErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "error: %s\n", apiErr.Message)
		}
		for _, cmd := range apiErr.SuggestedCommands {
			fmt.Fprintf(os.Stderr, "  try: %s\n", cmd)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func commandAuth(args []string, signup bool) error {
	name := "login"
	if signup {
		name = "signup"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}

	secret := strings.TrimSpace(*password)
	if secret == "" {
		fmt.Print("Password: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		secret = string(bytes)
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	} else if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}

	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var resp apiclient.LoginResponse
	if signup {
		resp, err = client.Signup(ctx, *email, secret)
	} else {
		resp, err = client.Login(ctx, *email, secret)
	}
	if err != nil {
		return err
	}
	cfg.AccessToken = resp.Tokens.AccessToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("%s successful for %s\n", name, resp.User.Email)
	return nil
}

// stringList collects repeatable flags.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func commandLaunch(args []string) error {
	fs := flag.NewFlagSet("launch", flag.ExitOnError)
	name := fs.String("name", "", "Ship name")
	node := fs.String("node", "", "Node identifier")
	nodeType := fs.String("node-type", "", "Node type")
	profile := fs.String("profile", "local_dock", "Deployment profile (local_dock|cloud_shipyard)")
	infra := fs.String("infra", "existing_k8s", "Infrastructure kind (existing_k8s|provision_new)")
	apps := fs.String("apps", "", "Comma-separated bootstrap apps (default: catalog defaults)")
	var crewFlags stringList
	fs.Var(&crewFlags, "crew", "Crew prompt override role=content (repeatable)")
	var secretFlags stringList
	fs.Var(&secretFlags, "secret", "Profile secret key=value (repeatable)")
	yes := fs.Bool("yes", false, "Skip the review confirmation")
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}

	con := console.New(client, token, console.Placeholders{})
	form := con.Wizard.Form()
	form.Name = *name
	form.NodeID = *node
	form.NodeType = *nodeType
	con.Wizard.SetProfile(*profile)
	con.Wizard.SetInfraKind(*infra)
	if trimmed := strings.TrimSpace(*apps); trimmed != "" {
		form.Apps = strings.Split(trimmed, ",")
	}
	for _, pair := range crewFlags {
		role, content, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --crew value %q, expected role=content", pair)
		}
		form.CrewContent[strings.TrimSpace(role)] = content
	}
	for _, pair := range secretFlags {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --secret value %q, expected key=value", pair)
		}
		form.Secrets = append(form.Secrets, apiclient.SecretEntry{Key: strings.TrimSpace(key), Value: value})
	}

	if !con.Wizard.CanAdvance() {
		return errors.New("a ship name (--name) or node id (--node) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	catalog, err := client.GetCatalog(ctx, token)
	if err != nil {
		return err
	}
	var quote *apiclient.Quote
	if q, err := client.GetQuote(ctx, token, form.Profile, form.Apps); err == nil {
		quote = &q
	}

	summary := console.BuildReviewLaunchSummary(con.Wizard, catalog.Apps, 6, quote)
	for _, line := range summary.Lines() {
		fmt.Println(line)
	}
	if !*yes {
		fmt.Print("Launch? [y/N]: ")
		var answer string
		fmt.Scanln(&answer)
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Println("launch aborted")
			return nil
		}
	}

	resp, err := con.SubmitLaunch(ctx)
	if err != nil {
		return err
	}
	for _, notice := range con.Notices() {
		fmt.Printf("[%s] %s\n", notice.Level, notice.Text)
	}
	fmt.Printf("ship %s launched: id=%s status=%s\n", resp.Deployment.Name, resp.Deployment.ID, resp.Deployment.Status)
	return nil
}

func commandFleet(args []string) error {
	fs := flag.NewFlagSet("fleet", flag.ExitOnError)
	status := fs.String("status", "", "Filter by ship status")
	search := fs.String("search", "", "Search by name or node")
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	view := console.NewFleetView(client, token)
	view.SetStatusFilter(*status)
	view.SetSearch(*search)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	state := view.Refresh(ctx)
	if state.ShipsErr != nil {
		return state.ShipsErr
	}

	roster, empty := view.Roster()
	if empty != console.EmptyNone {
		fmt.Println(empty)
		return nil
	}
	for _, ship := range roster {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n", ship.ID, ship.Name, ship.Status, ship.Profile, humanize.Time(ship.UpdatedAt))
	}
	if state.SnapshotErr == nil {
		fmt.Printf("\nopen sessions: %d, pending tasks: %d, running tasks: %d\n",
			state.Snapshot.OpenSessions, state.Snapshot.PendingTasks, state.Snapshot.RunningTasks)
	}
	return nil
}

func commandOps(args []string) error {
	fs := flag.NewFlagSet("ops", flag.ExitOnError)
	shipID := fs.String("ship", "", "Ship identifier")
	fs.Parse(args)
	if strings.TrimSpace(*shipID) == "" {
		return errors.New("--ship is required")
	}

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ship, err := client.GetShip(ctx, token, *shipID)
	if err != nil {
		return err
	}
	panel := console.NewOpsPanel(client, token)
	state := panel.Load(ctx, ship)

	fmt.Printf("ship %s (%s)\n\n", ship.Name, ship.Status)
	if state.CrewPanel.Err != nil {
		fmt.Printf("crew: unavailable (%v)\n", state.CrewPanel.Err)
	} else {
		fmt.Println("crew:")
		for _, member := range state.Crew {
			fmt.Printf("  %s\t%s\t%s\t%s\n", member.Callsign, member.Role, member.Name, member.Status)
		}
	}
	if state.ConnectionPanel.Err != nil {
		fmt.Printf("connection: unavailable (%v)\n", state.ConnectionPanel.Err)
	} else {
		fmt.Printf("connection: %s (namespace %s)\n", state.Connection.ClusterEndpoint, state.Connection.Namespace)
		fmt.Printf("  %s\n", state.Connection.KubeconfigHint)
	}
	if state.QuotePanel.Err != nil {
		fmt.Printf("quote: unavailable (%v)\n", state.QuotePanel.Err)
	} else {
		fmt.Printf("launch quote: %s milli%s\n", humanize.Comma(state.Quote.AmountMilli), state.Quote.Currency)
	}
	for _, u := range state.MonitoringURLs {
		fmt.Printf("monitoring: %s\n", u)
	}
	return nil
}

func commandShips(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: shipyard ships [kubeconfig|overview|events|scrap] <ship-id>")
	}
	sub, shipID := args[0], args[1]

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch sub {
	case "kubeconfig":
		summary, err := client.GetConnection(ctx, token, shipID)
		if err != nil {
			return err
		}
		fmt.Printf("endpoint:  %s\n", summary.ClusterEndpoint)
		fmt.Printf("namespace: %s\n", summary.Namespace)
		fmt.Printf("hint:      %s\n", summary.KubeconfigHint)
		return nil
	case "overview":
		overview, err := client.GetShipOverview(ctx, token, shipID)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", overview.Ship.ID, overview.Ship.Name, overview.Ship.Status)
		fmt.Printf("crew: %d\n", len(overview.Crew))
		for status, count := range overview.FleetByStatus {
			fmt.Printf("fleet %s: %d\n", status, count)
		}
		return nil
	case "events":
		events, err := client.ShipEvents(ctx, token, shipID, 50)
		if err != nil {
			return err
		}
		for _, event := range events {
			fmt.Printf("%s\t%s\n", event.OccurredAt.Format(time.RFC3339), event.Type)
		}
		return nil
	case "scrap":
		if err := client.ScrapShip(ctx, token, shipID); err != nil {
			return err
		}
		fmt.Println("ship scrapped")
		return nil
	default:
		return fmt.Errorf("unknown ships command: %s", sub)
	}
}

func commandCrew(args []string) error {
	fs := flag.NewFlagSet("crew", flag.ExitOnError)
	shipID := fs.String("ship", "", "Ship identifier")
	fs.Parse(args)
	if strings.TrimSpace(*shipID) == "" {
		return errors.New("--ship is required")
	}

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	crew, err := client.ListCrew(ctx, token, *shipID)
	if err != nil {
		return err
	}
	for _, member := range crew {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n", member.ID, member.Callsign, member.Role, member.Name, member.Status)
	}
	return nil
}

func commandSecrets(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: shipyard secrets [list|set|delete]")
	}
	sub := args[0]
	fs := flag.NewFlagSet("secrets "+sub, flag.ExitOnError)
	profile := fs.String("profile", "local_dock", "Deployment profile")
	key := fs.String("key", "", "Secret key (delete)")
	var pairs stringList
	fs.Var(&pairs, "entry", "Secret key=value (set, repeatable)")
	fs.Parse(args[1:])

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch sub {
	case "list":
		secrets, err := client.ListSecrets(ctx, token, *profile)
		if err != nil {
			return err
		}
		for _, secret := range secrets {
			fmt.Printf("%s\t%s\t%s\n", secret.Key, secret.Masked, humanize.Time(secret.UpdatedAt))
		}
		return nil
	case "set":
		if len(pairs) == 0 {
			return errors.New("at least one --entry key=value is required")
		}
		entries := make([]apiclient.SecretEntry, 0, len(pairs))
		for _, pair := range pairs {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid --entry value %q, expected key=value", pair)
			}
			entries = append(entries, apiclient.SecretEntry{Key: strings.TrimSpace(k), Value: v})
		}
		if err := client.PutSecrets(ctx, token, *profile, entries); err != nil {
			return err
		}
		fmt.Printf("%d secret(s) stored for %s\n", len(entries), *profile)
		return nil
	case "delete":
		if strings.TrimSpace(*key) == "" {
			return errors.New("--key is required")
		}
		if err := client.DeleteSecret(ctx, token, *profile, *key); err != nil {
			return err
		}
		fmt.Println("secret deleted")
		return nil
	default:
		return fmt.Errorf("unknown secrets command: %s", sub)
	}
}

func commandSessions(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: shipyard sessions [list|open|prompt]")
	}
	sub := args[0]
	fs := flag.NewFlagSet("sessions "+sub, flag.ExitOnError)
	shipID := fs.String("ship", "", "Ship identifier")
	crewID := fs.String("crew", "", "Crew member identifier (open)")
	sessionID := fs.String("session", "", "Session identifier (prompt)")
	status := fs.String("status", "", "Filter by status (list)")
	fs.Parse(args[1:])

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch sub {
	case "list":
		sessions, err := client.ListSessions(ctx, token, *status)
		if err != nil {
			return err
		}
		for _, session := range sessions {
			fmt.Printf("%s\t%s\t%s\t%s\n", session.ID, session.DeploymentID, session.Status, humanize.Time(session.StartedAt))
		}
		return nil
	case "open":
		if strings.TrimSpace(*shipID) == "" {
			return errors.New("--ship is required")
		}
		session, err := client.OpenSession(ctx, token, *shipID, *crewID)
		if err != nil {
			return err
		}
		fmt.Printf("session %s opened on ship %s\n", session.ID, session.DeploymentID)
		return nil
	case "prompt":
		if strings.TrimSpace(*sessionID) == "" {
			return errors.New("--session is required")
		}
		if err := client.PromptSession(ctx, token, *sessionID, *shipID); err != nil {
			return err
		}
		fmt.Printf("session %s prompted\n", *sessionID)
		return nil
	default:
		return fmt.Errorf("unknown sessions command: %s", sub)
	}
}

func commandBilling(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: shipyard billing [wallet|quote|topup|transactions]")
	}
	sub := args[0]
	fs := flag.NewFlagSet("billing "+sub, flag.ExitOnError)
	profile := fs.String("profile", "local_dock", "Deployment profile (quote)")
	apps := fs.String("apps", "", "Comma-separated apps (quote)")
	amount := fs.Int64("amount", 0, "Top-up amount in millicredits")
	reference := fs.String("reference", "", "Top-up reference")
	fs.Parse(args[1:])

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch sub {
	case "wallet":
		wallet, err := client.GetWallet(ctx, token)
		if err != nil {
			return err
		}
		fmt.Printf("balance: %s millicredits\n", humanize.Comma(wallet.BalanceMilli))
		return nil
	case "quote":
		var appList []string
		if trimmed := strings.TrimSpace(*apps); trimmed != "" {
			appList = strings.Split(trimmed, ",")
		}
		quote, err := client.GetQuote(ctx, token, *profile, appList)
		if err != nil {
			return err
		}
		fmt.Printf("%s launch: %s milli%s\n", quote.Profile, humanize.Comma(quote.AmountMilli), quote.Currency)
		return nil
	case "topup":
		if *amount <= 0 {
			return errors.New("--amount must be positive")
		}
		wallet, err := client.TopUp(ctx, token, *amount, *reference)
		if err != nil {
			return err
		}
		fmt.Printf("balance: %s millicredits\n", humanize.Comma(wallet.BalanceMilli))
		return nil
	case "transactions":
		txns, err := client.ListTransactions(ctx, token)
		if err != nil {
			return err
		}
		for _, txn := range txns {
			fmt.Printf("%s\t%s\t%s\t%s\n", txn.ID, txn.Kind, humanize.Comma(txn.AmountMilli), humanize.Time(txn.CreatedAt))
		}
		return nil
	default:
		return fmt.Errorf("unknown billing command: %s", sub)
	}
}

func commandTransfer(args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	shipID := fs.String("ship", "", "Ship identifier")
	target := fs.String("to", "", "Target operator email")
	fs.Parse(args)

	if strings.TrimSpace(*shipID) == "" {
		return errors.New("--ship is required")
	}
	if strings.TrimSpace(*target) == "" {
		return errors.New("--to is required")
	}

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := client.TransferOwnership(ctx, token, *shipID, *target)
	if err != nil {
		return err
	}
	fmt.Printf("ship %s transferred to %s\n", result.ShipID, result.NewOwnerEmail)
	return nil
}

func commandSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snapshot, err := client.GetRuntimeSnapshot(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("open sessions: %d\n", snapshot.OpenSessions)
	fmt.Printf("pending tasks: %d\n", snapshot.PendingTasks)
	fmt.Printf("running tasks: %d\n", snapshot.RunningTasks)
	for status, count := range snapshot.ShipsByStatus {
		fmt.Printf("ships %s: %d\n", status, count)
	}
	return nil
}

func commandWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	shipID := fs.String("ship", "", "Scope the stream to one ship")
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	fmt.Println("watching fleet events, press Ctrl-C to stop")
	opts := apiclient.StreamOptions{ShipID: *shipID}
	return client.SubscribeEvents(ctx, token, opts, func(event apiclient.Event) error {
		ship := event.ShipID
		if ship == "" {
			ship = "-"
		}
		fmt.Printf("%s\t%s\t%s\n", event.OccurredAt.Format(time.RFC3339), event.Type, ship)
		return nil
	})
}

func authedClient() (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, "", errors.New("please login first using 'shipyard login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "shipyard", "config.json"), nil
}

func printUsage() {
	fmt.Printf("shipyard CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	shipyard signup --email user@example.com [--password secret] [--api http://localhost:4100]
	shipyard login --email user@example.com [--password secret] [--api http://localhost:4100]
	shipyard launch [--name <name>] [--node <node-id>] [--profile local_dock|cloud_shipyard] [--infra existing_k8s|provision_new] [--apps a,b] [--crew role=content] [--secret key=value] [--yes]
	shipyard fleet [--status <status>] [--search <query>]
	shipyard ops --ship <ship-id>
	shipyard ships kubeconfig|overview|events|scrap <ship-id>
	shipyard crew --ship <ship-id>
	shipyard secrets list|set|delete [--profile p] [--entry key=value] [--key k]
	shipyard sessions list|open|prompt [--ship <ship-id>] [--crew <crew-id>] [--session <session-id>] [--status <status>]
	shipyard billing wallet|quote|topup|transactions [--profile p] [--apps a,b] [--amount n]
	shipyard transfer --ship <ship-id> --to <email>
	shipyard snapshot
	shipyard watch [--ship <ship-id>]
	shipyard version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
