package apihttp

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"ento-core/internal/audit"
	"ento-core/internal/auth"
)

// Handlers bundles the API surface for router assembly.
type Handlers struct {
	Ledger     *LedgerHandler
	Packs      *PacksHandler
	Usage      *UsageHandler
	Exchange   *ExchangeHandler
	Loans      *LoansHandler
	Governance *GovernanceHandler
	Statements *StatementExportHandler
}

// NewRouter assembles the API mux with audit logging on mutating calls.
// Auth wrapping happens outside, so audit sees the resolved identity.
func NewRouter(h Handlers, auditor audit.Logger, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", HealthzHandler{})
	if h.Ledger != nil {
		mux.Handle("/api/v1/ledger/", h.Ledger)
	}
	if h.Packs != nil {
		mux.Handle("/api/v1/packs", h.Packs)
		mux.Handle("/api/v1/packs/", h.Packs)
	}
	if h.Usage != nil {
		mux.Handle("/api/v1/usage", h.Usage)
		mux.Handle("/api/v1/usage/", h.Usage)
	}
	if h.Exchange != nil {
		mux.Handle("/api/v1/exchange/", h.Exchange)
	}
	if h.Loans != nil {
		mux.Handle("/api/v1/loans", h.Loans)
		mux.Handle("/api/v1/loans/", h.Loans)
	}
	if h.Governance != nil {
		mux.Handle("/api/v1/governance/", h.Governance)
	}
	if h.Statements != nil {
		mux.Handle("/api/v1/statements/", h.Statements)
	}
	return auditMiddleware(mux, auditor, logger)
}

func auditMiddleware(next http.Handler, auditor audit.Logger, logger *log.Logger) http.Handler {
	if auditor == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		var payload []byte
		if r.Body != nil {
			payload, _ = io.ReadAll(io.LimitReader(r.Body, 1<<20))
			r.Body = io.NopCloser(bytes.NewReader(payload))
		}

		next.ServeHTTP(w, r)

		entry := audit.Entry{
			Actor:         auth.AccountFromContext(r.Context()),
			Role:          string(auth.RoleFromContext(r.Context())),
			Action:        r.Method + " " + r.URL.Path,
			ResourceType:  "http",
			ResourceID:    r.URL.Path,
			PayloadDigest: audit.DigestJSON(payload),
			IP:            r.RemoteAddr,
			UserAgent:     r.UserAgent(),
			CreatedAt:     time.Now().UTC(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := auditor.Log(ctx, entry); err != nil && logger != nil {
			logger.Printf("audit log failed: %v", err)
		}
	})
}
