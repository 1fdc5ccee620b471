package main

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
)

// RevealedResult is the public outcome of a revealed case.
type RevealedResult struct {
	CaseID        uint64 `json:"caseID"`
	Verdict       bool   `json:"verdict"` // true = guilty
	GuiltyCount   uint64 `json:"guiltyCount"`
	InnocentCount uint64 `json:"innocentCount"`
	TotalVoters   int    `json:"totalVoters"`
}

// RevealVerdict transitions a closed case to revealed: it decrypts both
// accumulators, fixes the verdict, stores the plaintext tallies and credits
// reputation to every juror who voted. This is the only point where any
// vote-derived plaintext appears, and it is always an aggregate.
//
// A tie resolves to not guilty. The quorum check runs against votes cast,
// not the nominal jury size, so a case may reveal short-handed as long as
// the configured minimum is met.
func (c *JuryContract) RevealVerdict(ctx contractapi.TransactionContextInterface, caseID uint64) error {
	lc, err := loadCase(ctx, caseID)
	if err != nil {
		return err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	if caller != lc.Convener {
		return fmt.Errorf("%w: reveal on case %d", ErrNotConvener, caseID)
	}
	switch lc.State {
	case CaseOpen:
		return fmt.Errorf("%w: case %d", ErrVotingStillOpen, caseID)
	case CaseRevealed:
		return fmt.Errorf("%w: case %d", ErrAlreadyRevealed, caseID)
	}
	params, err := getParams(ctx)
	if err != nil {
		return err
	}
	votes := len(lc.Voters)
	if votes < params.MinJurySize {
		return fmt.Errorf("%w: %d of %d required", ErrInsufficientJurors, votes, params.MinJurySize)
	}

	guilty, err := c.enc.Decrypt(lc.EncGuilty, selfPrincipal)
	if err != nil {
		return fmt.Errorf("decrypt guilty tally: %w", err)
	}
	innocent, err := c.enc.Decrypt(lc.EncInnocent, selfPrincipal)
	if err != nil {
		return fmt.Errorf("decrypt innocent tally: %w", err)
	}
	if guilty+innocent != uint64(votes) {
		return fmt.Errorf("%w: %d + %d != %d", ErrTallyMismatch, guilty, innocent, votes)
	}

	verdict := guilty > innocent
	lc.State = CaseRevealed
	lc.Verdict = &verdict
	lc.GuiltyTally = &guilty
	lc.InnocentTally = &innocent
	if err := putCase(ctx, lc); err != nil {
		return err
	}

	// Participation credit, applied exactly once: reveal itself runs once
	// per case, guarded by the state transition above.
	for _, juror := range lc.Voters {
		rec, err := loadJuror(ctx, juror)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("voter %q missing from juror directory", juror)
		}
		rec.Reputation += participationCredit
		if err := putJuror(ctx, juror, rec); err != nil {
			return err
		}
	}

	if params.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventVerdictRevealed, mustJSON(map[string]any{
			"caseID":        caseID,
			"verdict":       verdict,
			"guiltyCount":   guilty,
			"innocentCount": innocent,
			"totalVoters":   votes,
			"time":          nowRFC3339(ctx),
		}))
	}
	return nil
}

// GetVerdict returns the revealed outcome of a case, failing while the case
// is still open or closed.
func (c *JuryContract) GetVerdict(ctx contractapi.TransactionContextInterface, caseID uint64) (*RevealedResult, error) {
	lc, err := loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if lc.State != CaseRevealed || lc.Verdict == nil || lc.GuiltyTally == nil || lc.InnocentTally == nil {
		return nil, fmt.Errorf("%w: case %d is %s", ErrNotRevealed, caseID, lc.State)
	}
	return &RevealedResult{
		CaseID:        caseID,
		Verdict:       *lc.Verdict,
		GuiltyCount:   *lc.GuiltyTally,
		InnocentCount: *lc.InnocentTally,
		TotalVoters:   len(lc.Voters),
	}, nil
}
