// Command ledger_audit replays the token events recorded in the outbox
// and rebuilds account balances from scratch. Module-internal transfers
// (pack purchases, swaps, loan legs) surface as their own event types, so
// the per-account snapshot is advisory; the hard check is supply
// conservation: replayed mints minus burns must equal the last reported
// supply. It writes a balance snapshot CSV plus a findings CSV
// (unparseable payloads, supply drift). Exit code 1 when findings exist.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dbURL  string
	table  string
	outDir string
}

type tokenEvent struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Supply  string `json:"supply"`
}

type finding struct {
	EventID string
	Kind    string
	Detail  string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "ledger_audit: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", os.Getenv("DATABASE_URL"), "postgres connection string")
	flag.StringVar(&cfg.table, "table", "event_outbox", "outbox table name")
	flag.StringVar(&cfg.outDir, "out", "ledger_audit_out", "output directory")
	flag.Parse()
	return cfg
}

func run(cfg config) error {
	if cfg.dbURL == "" {
		return fmt.Errorf("missing -db / DATABASE_URL")
	}
	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	balances := make(map[string]*big.Int)
	var findings []finding
	var lastSupply *big.Int

	query := fmt.Sprintf(`
SELECT event_id, event_type, payload
FROM %s
WHERE status = 'sent'
  AND event_type IN ('application.TokensMinted', 'application.TokensBurned', 'application.TokensTransferred')
ORDER BY created_at, id`, cfg.table)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	replayed := 0
	for rows.Next() {
		var eventID, eventType string
		var raw []byte
		if err := rows.Scan(&eventID, &eventType, &raw); err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		var envelope struct {
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			findings = append(findings, finding{eventID, "bad-envelope", err.Error()})
			continue
		}
		var event tokenEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			findings = append(findings, finding{eventID, "bad-payload", err.Error()})
			continue
		}
		amount, ok := new(big.Int).SetString(event.Amount, 10)
		if !ok {
			findings = append(findings, finding{eventID, "bad-amount", event.Amount})
			continue
		}

		switch eventType {
		case "application.TokensMinted":
			credit(balances, event.Account, amount)
			lastSupply = parseSupply(event.Supply, lastSupply)
		case "application.TokensBurned":
			debit(balances, event.Account, amount)
			lastSupply = parseSupply(event.Supply, lastSupply)
		case "application.TokensTransferred":
			debit(balances, event.From, amount)
			credit(balances, event.To, amount)
		}
		replayed++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate: %w", err)
	}

	total := new(big.Int)
	for _, balance := range balances {
		total.Add(total, balance)
	}
	if lastSupply != nil && total.Cmp(lastSupply) != 0 {
		findings = append(findings, finding{"", "supply-drift",
			fmt.Sprintf("replayed=%s reported=%s", total, lastSupply)})
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		return fmt.Errorf("mkdir out: %w", err)
	}
	if err := writeBalances(filepath.Join(cfg.outDir, "balances.csv"), balances); err != nil {
		return err
	}
	if err := writeFindings(filepath.Join(cfg.outDir, "findings.csv"), findings); err != nil {
		return err
	}

	fmt.Printf("replayed %d events across %d accounts; %d findings\n", replayed, len(balances), len(findings))
	if len(findings) > 0 {
		return fmt.Errorf("%d findings, see %s", len(findings), cfg.outDir)
	}
	return nil
}

func credit(balances map[string]*big.Int, account string, amount *big.Int) {
	v := balances[account]
	if v == nil {
		v = new(big.Int)
		balances[account] = v
	}
	v.Add(v, amount)
}

func debit(balances map[string]*big.Int, account string, amount *big.Int) {
	v := balances[account]
	if v == nil {
		v = new(big.Int)
		balances[account] = v
	}
	v.Sub(v, amount)
}

func parseSupply(value string, fallback *big.Int) *big.Int {
	supply, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return fallback
	}
	return supply
}

func writeBalances(path string, balances map[string]*big.Int) error {
	accounts := make([]string, 0, len(balances))
	for account := range balances {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"account", "balance"}); err != nil {
		return err
	}
	for _, account := range accounts {
		if err := w.Write([]string{account, balances[account].String()}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeFindings(path string, findings []finding) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"event_id", "kind", "detail"}); err != nil {
		return err
	}
	for _, item := range findings {
		if err := w.Write([]string{item.EventID, item.Kind, item.Detail}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
