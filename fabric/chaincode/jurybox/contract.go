// jurybox chaincode: confidential jury deliberation on Fabric.
//
// A convener opens a legal case, certified jurors are authorized onto it,
// and each juror casts a single commitment-bound vote whose 0/1 choice is
// encrypted before it ever touches the ledger. Two encrypted counters
// (guilty, innocent) are updated homomorphically on every accepted vote, so
// no intermediate state reveals an individual choice. After voting closes
// the convener reveals the aggregate tallies and verdict; only then does any
// vote-derived plaintext exist, and only as totals.
//
// The chaincode does not expose any HTTP endpoints. A gateway/service is
// expected to invoke these contract functions and subscribe to emitted
// events.
package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"

	"github.com/DayanaMraz/legal-decision-making/internal/homenc"
)

/* Keys & constants (single namespace for this chaincode) */

const (
	// Private data collection holding the per-juror vote records.
	votesPDC = "jury_votes_pdc"

	// World state keys (public)
	keyParams      = "PARAMS"      // Runtime parameters JSON
	keyCaseSeq     = "CASESEQ"     // Last assigned case id (decimal)
	keyCasePrefix  = "CASE::"      // CASE::<id, zero-padded> → LegalCase JSON
	keyJurorPrefix = "JUROR::"     // JUROR::<identity> → JurorRecord JSON

	// Principal the contract grants itself on every ciphertext it creates;
	// the only principal the reveal path decrypts for.
	selfPrincipal = "jurybox"
)

const (
	eventJurorCertified  = "JurorCertified"
	eventCaseCreated     = "CaseCreated"
	eventJurorAuthorized = "JurorAuthorized"
	eventVoteCast        = "VoteCast"
	eventVotingClosed    = "VotingClosed"
	eventVerdictRevealed = "VerdictRevealed"
	eventParamsUpdated   = "ParamsUpdated"
)

// JuryContract implements the case lifecycle state machine and the encrypted
// vote-accumulation engine.
//
// Responsibilities:
// - Maintain the juror directory (certification, reputation).
// - Create cases and drive the open → closed → revealed lifecycle.
// - Admit exactly one commitment-bound encrypted vote per authorized juror
//   and fold it into the running encrypted tallies.
// - Reveal aggregate tallies and verdict, crediting participating jurors.
type JuryContract struct {
	contractapi.Contract
	enc homenc.Scheme
}

// NewJuryContract builds the contract around an encryption capability.
func NewJuryContract(enc homenc.Scheme) *JuryContract {
	return &JuryContract{enc: enc}
}

// Params contains runtime limits and toggles used by the contract.
//
// Values are stored on-chain (PARAMS) and merged over compiled-in defaults.
type Params struct {
	MinJurySize      int    `json:"MIN_JURY_SIZE"`      // Lower bound for jury size and reveal quorum
	MaxJurySize      int    `json:"MAX_JURY_SIZE"`      // Upper bound for jury size
	VotingWindowSecs int64  `json:"VOTING_WINDOW_SECS"` // closesAt = openedAt + window
	EmitEvents       bool   `json:"EMIT_EVENTS"`        // Default true: emit events
	AdminID          string `json:"ADMIN_ID"`           // Certification administrator, set by Bootstrap
}

func defaultParams() *Params {
	return &Params{
		MinJurySize:      3,
		MaxJurySize:      12,
		VotingWindowSecs: 3 * 24 * 60 * 60,
		EmitEvents:       true,
	}
}

// getParams reads the contract runtime parameters from world state, falling
// back to defaults when unset or unparsable.
func getParams(ctx contractapi.TransactionContextInterface) (*Params, error) {
	p := defaultParams()
	if b, err := ctx.GetStub().GetState(keyParams); err == nil && b != nil {
		var on Params
		if json.Unmarshal(b, &on) == nil {
			return &on, nil
		}
	}
	return p, nil
}

// Bootstrap captures the calling identity as the certification administrator.
// The first caller wins; afterwards only the current administrator may call
// it again (admin handover to itself is a no-op).
func (c *JuryContract) Bootstrap(ctx contractapi.TransactionContextInterface) error {
	params, err := getParams(ctx)
	if err != nil {
		return err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	if params.AdminID != "" && params.AdminID != caller {
		return fmt.Errorf("%w: bootstrap", ErrNotAdministrator)
	}
	params.AdminID = caller
	return ctx.GetStub().PutState(keyParams, mustJSON(params))
}

// SetParams merges updated runtime parameters over the stored ones. Only the
// administrator may call it once Bootstrap has run.
func (c *JuryContract) SetParams(ctx contractapi.TransactionContextInterface, paramsJSON string) error {
	cur, err := getParams(ctx)
	if err != nil {
		return err
	}
	if cur.AdminID != "" {
		caller, err := callerID(ctx)
		if err != nil {
			return err
		}
		if caller != cur.AdminID {
			return fmt.Errorf("%w: set params", ErrNotAdministrator)
		}
	}

	jsCur, _ := json.Marshal(cur)
	var merged map[string]any
	_ = json.Unmarshal(jsCur, &merged)

	var upd map[string]any
	if err := json.Unmarshal([]byte(paramsJSON), &upd); err != nil {
		return fmt.Errorf("%w: bad params json: %v", ErrInvalidInput, err)
	}
	for k, v := range upd {
		merged[k] = v
	}

	js, _ := json.Marshal(merged)
	var check Params
	if err := json.Unmarshal(js, &check); err != nil {
		return fmt.Errorf("%w: params do not merge: %v", ErrInvalidInput, err)
	}
	if check.MinJurySize < 1 || check.MaxJurySize < check.MinJurySize || check.VotingWindowSecs <= 0 {
		return fmt.Errorf("%w: inconsistent jury bounds or window", ErrInvalidInput)
	}
	if err := ctx.GetStub().PutState(keyParams, js); err != nil {
		return err
	}

	if check.EmitEvents {
		keys := make([]string, 0, len(upd))
		for k := range upd {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		_ = ctx.GetStub().SetEvent(eventParamsUpdated, mustJSON(map[string]any{
			"keys": keys,
			"time": nowRFC3339(ctx),
		}))
	}
	return nil
}

// GetParams reads back the stored runtime parameters.
func (c *JuryContract) GetParams(ctx contractapi.TransactionContextInterface) (*Params, error) {
	return getParams(ctx)
}

/* Health */

// Ping is a simple health check used by deployment tooling and test harnesses.
func (c *JuryContract) Ping(ctx contractapi.TransactionContextInterface) (string, error) {
	return "OK:" + ctx.GetStub().GetTxID(), nil
}

/* Small helpers */

// callerID returns the calling principal's identity string.
func callerID(ctx contractapi.TransactionContextInterface) (string, error) {
	ci := ctx.GetClientIdentity()
	if ci == nil {
		return "", fmt.Errorf("no client identity in transaction context")
	}
	id, err := ci.GetID()
	if err != nil {
		return "", fmt.Errorf("client identity: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("empty client identity")
	}
	return id, nil
}

// txUnix returns the transaction timestamp as unix seconds. Every time
// comparison in the contract uses this deterministic clock.
func txUnix(ctx contractapi.TransactionContextInterface) int64 {
	ts, _ := ctx.GetStub().GetTxTimestamp()
	if ts == nil {
		return 0
	}
	return ts.Seconds
}

// nowRFC3339 returns the transaction timestamp as an RFC3339 UTC string.
func nowRFC3339(ctx contractapi.TransactionContextInterface) string {
	return time.Unix(txUnix(ctx), 0).UTC().Format(time.RFC3339)
}

// mustJSON marshals v and ignores errors (used for events and small writes).
func mustJSON(v any) []byte { b, _ := json.Marshal(v); return b }
