package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"

	"github.com/DayanaMraz/legal-decision-making/internal/homenc"
)

// CaseState is the lifecycle state of a case. Transitions run strictly
// open → closed → revealed and never backward.
type CaseState string

const (
	CaseOpen     CaseState = "open"
	CaseClosed   CaseState = "closed"
	CaseRevealed CaseState = "revealed"
)

// ordinal gives states their lifecycle rank for monotonicity checks.
func (s CaseState) ordinal() int {
	switch s {
	case CaseOpen:
		return 0
	case CaseClosed:
		return 1
	case CaseRevealed:
		return 2
	}
	return -1
}

// LegalCase is the full on-chain case record. The registry is append-only:
// records are created by CreateCase and mutated only through the operations
// in this chaincode, never deleted.
type LegalCase struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EvidenceRef string    `json:"evidenceRef"` // Opaque content reference
	Convener    string    `json:"convener"`
	OpenedAt    int64     `json:"openedAt"` // Unix seconds
	ClosesAt    int64     `json:"closesAt"`
	JurySize    int       `json:"requiredJurySize"`
	State       CaseState `json:"state"`

	// Authorization set: certified jurors permitted to vote, ≤ JurySize.
	Authorized []string `json:"authorizedJurors"`
	// Jurors who cast a vote, in acceptance order. The vote records
	// themselves live in the private data collection.
	Voters []string `json:"voters"`

	// Encrypted running tallies, WidthTally, initialized to Enc(0).
	EncGuilty   homenc.Value `json:"encGuilty"`
	EncInnocent homenc.Value `json:"encInnocent"`

	// Set once, at reveal.
	Verdict       *bool   `json:"verdict,omitempty"`
	GuiltyTally   *uint64 `json:"guiltyTally,omitempty"`
	InnocentTally *uint64 `json:"innocentTally,omitempty"`
}

func (lc *LegalCase) isAuthorized(juror string) bool {
	for _, j := range lc.Authorized {
		if j == juror {
			return true
		}
	}
	return false
}

func (lc *LegalCase) hasVoted(juror string) bool {
	for _, j := range lc.Voters {
		if j == juror {
			return true
		}
	}
	return false
}

// CaseInfo is the public snapshot returned by reads. Verdict and tallies
// appear only once the case is revealed; ciphertext handles are not part of
// the snapshot (see GetEncryptedTallies).
type CaseInfo struct {
	ID            uint64    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	EvidenceRef   string    `json:"evidenceRef"`
	Convener      string    `json:"convener"`
	OpenedAt      int64     `json:"openedAt"`
	ClosesAt      int64     `json:"closesAt"`
	JurySize      int       `json:"requiredJurySize"`
	State         CaseState `json:"state"`
	Authorized    []string  `json:"authorizedJurors"`
	VotesCast     int       `json:"votesCast"`
	Verdict       *bool     `json:"verdict,omitempty"`
	GuiltyTally   *uint64   `json:"guiltyTally,omitempty"`
	InnocentTally *uint64   `json:"innocentTally,omitempty"`
}

// CasePage is one page of the case listing, in creation order.
type CasePage struct {
	Cases  []CaseInfo `json:"cases"`
	Offset int        `json:"offset"`
	Total  int        `json:"total"`
}

// caseKey zero-pads the id so lexicographic range scans walk cases in
// creation order.
func caseKey(id uint64) string { return fmt.Sprintf("%s%012d", keyCasePrefix, id) }

func loadCase(ctx contractapi.TransactionContextInterface, id uint64) (*LegalCase, error) {
	raw, err := ctx.GetStub().GetState(caseKey(id))
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: case %d", ErrNotFound, id)
	}
	var lc LegalCase
	if err := json.Unmarshal(raw, &lc); err != nil {
		return nil, fmt.Errorf("case json: %w", err)
	}
	return &lc, nil
}

func putCase(ctx contractapi.TransactionContextInterface, lc *LegalCase) error {
	return ctx.GetStub().PutState(caseKey(lc.ID), mustJSON(lc))
}

// caseCount reads the number of cases ever created.
func caseCount(ctx contractapi.TransactionContextInterface) (uint64, error) {
	raw, err := ctx.GetStub().GetState(keyCaseSeq)
	if err != nil {
		return 0, fmt.Errorf("get case seq: %w", err)
	}
	if raw == nil {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("case seq parse: %w", err)
	}
	return n, nil
}

func (lc *LegalCase) snapshot() CaseInfo {
	return CaseInfo{
		ID:            lc.ID,
		Title:         lc.Title,
		Description:   lc.Description,
		EvidenceRef:   lc.EvidenceRef,
		Convener:      lc.Convener,
		OpenedAt:      lc.OpenedAt,
		ClosesAt:      lc.ClosesAt,
		JurySize:      lc.JurySize,
		State:         lc.State,
		Authorized:    append([]string(nil), lc.Authorized...),
		VotesCast:     len(lc.Voters),
		Verdict:       lc.Verdict,
		GuiltyTally:   lc.GuiltyTally,
		InnocentTally: lc.InnocentTally,
	}
}

// CreateCase opens a new case owned by the calling convener. The voting
// window and the jury-size bounds come from Params; both encrypted tallies
// start at Enc(0) with the contract granted decrypt access.
func (c *JuryContract) CreateCase(ctx contractapi.TransactionContextInterface, title, description, evidenceRef string, jurySize int) (uint64, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return 0, fmt.Errorf("%w: title empty", ErrInvalidInput)
	}
	if description == "" {
		return 0, fmt.Errorf("%w: description empty", ErrInvalidInput)
	}
	params, err := getParams(ctx)
	if err != nil {
		return 0, err
	}
	if jurySize < params.MinJurySize || jurySize > params.MaxJurySize {
		return 0, fmt.Errorf("%w: jury size %d outside [%d,%d]", ErrInvalidInput, jurySize, params.MinJurySize, params.MaxJurySize)
	}
	convener, err := callerID(ctx)
	if err != nil {
		return 0, err
	}

	encZero := func() (homenc.Value, error) {
		v, err := c.enc.Encrypt(0, homenc.WidthTally)
		if err != nil {
			return homenc.Value{}, fmt.Errorf("init tally: %w", err)
		}
		return c.enc.Grant(v, selfPrincipal), nil
	}
	guilty, err := encZero()
	if err != nil {
		return 0, err
	}
	innocent, err := encZero()
	if err != nil {
		return 0, err
	}

	seq, err := caseCount(ctx)
	if err != nil {
		return 0, err
	}
	id := seq + 1
	now := txUnix(ctx)
	lc := &LegalCase{
		ID:          id,
		Title:       title,
		Description: description,
		EvidenceRef: strings.TrimSpace(evidenceRef),
		Convener:    convener,
		OpenedAt:    now,
		ClosesAt:    now + params.VotingWindowSecs,
		JurySize:    jurySize,
		State:       CaseOpen,
		EncGuilty:   guilty,
		EncInnocent: innocent,
	}
	if err := putCase(ctx, lc); err != nil {
		return 0, err
	}
	if err := ctx.GetStub().PutState(keyCaseSeq, []byte(strconv.FormatUint(id, 10))); err != nil {
		return 0, err
	}

	if params.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventCaseCreated, mustJSON(map[string]any{
			"caseID":   id,
			"title":    title,
			"convener": convener,
			"openedAt": lc.OpenedAt,
			"closesAt": lc.ClosesAt,
			"jurySize": jurySize,
		}))
	}
	return id, nil
}

// CloseVoting transitions a case from open to closed. The convener may close
// at any time; anyone may close once the voting window has elapsed or a full
// jury's worth of votes has been cast.
func (c *JuryContract) CloseVoting(ctx contractapi.TransactionContextInterface, caseID uint64) error {
	lc, err := loadCase(ctx, caseID)
	if err != nil {
		return err
	}
	if lc.State != CaseOpen {
		return fmt.Errorf("%w: case %d is %s", ErrAlreadyClosed, caseID, lc.State)
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	now := txUnix(ctx)
	windowElapsed := now > lc.ClosesAt
	fullTurnout := len(lc.Voters) >= lc.JurySize
	if caller != lc.Convener && !windowElapsed && !fullTurnout {
		return fmt.Errorf("%w: close before deadline or full turnout", ErrNotConvener)
	}

	lc.State = CaseClosed
	if err := putCase(ctx, lc); err != nil {
		return err
	}

	if params, _ := getParams(ctx); params.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventVotingClosed, mustJSON(map[string]any{
			"caseID":    caseID,
			"votesCast": len(lc.Voters),
			"time":      nowRFC3339(ctx),
		}))
	}
	return nil
}

// GetCase returns the public snapshot of a case.
func (c *JuryContract) GetCase(ctx contractapi.TransactionContextInterface, caseID uint64) (*CaseInfo, error) {
	lc, err := loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	info := lc.snapshot()
	return &info, nil
}

// ListCases returns up to limit case snapshots starting at offset, in
// creation order. Offsets beyond the end yield an empty page, never an
// error; the limit is clamped to the remaining count.
func (c *JuryContract) ListCases(ctx contractapi.TransactionContextInterface, offset, limit int) (*CasePage, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: negative offset or limit", ErrInvalidInput)
	}
	total64, err := caseCount(ctx)
	if err != nil {
		return nil, err
	}
	total := int(total64)
	page := &CasePage{Cases: []CaseInfo{}, Offset: offset, Total: total}
	if offset >= total || limit == 0 {
		return page, nil
	}
	if remaining := total - offset; limit > remaining {
		limit = remaining
	}

	it, err := ctx.GetStub().GetStateByRange(caseKey(uint64(offset)+1), keyCasePrefix+"~")
	if err != nil {
		return nil, fmt.Errorf("case range: %w", err)
	}
	defer it.Close()

	for it.HasNext() && len(page.Cases) < limit {
		kv, err := it.Next()
		if err != nil {
			return nil, err
		}
		var lc LegalCase
		if err := json.Unmarshal(kv.Value, &lc); err != nil {
			return nil, fmt.Errorf("case json at %s: %w", kv.Key, err)
		}
		page.Cases = append(page.Cases, lc.snapshot())
	}
	return page, nil
}
