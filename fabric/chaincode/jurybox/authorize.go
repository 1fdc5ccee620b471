package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
)

// checkAuthorizable applies the per-juror authorization rules against the
// in-memory case record without writing anything.
func checkAuthorizable(ctx contractapi.TransactionContextInterface, lc *LegalCase, jurorID string) error {
	rec, err := loadJuror(ctx, jurorID)
	if err != nil {
		return err
	}
	if rec == nil || !rec.Certified {
		return fmt.Errorf("%w: %q", ErrNotCertified, jurorID)
	}
	if lc.isAuthorized(jurorID) {
		return fmt.Errorf("%w: %q on case %d", ErrAlreadyAuthorized, jurorID, lc.ID)
	}
	if len(lc.Authorized) >= lc.JurySize {
		return fmt.Errorf("%w: case %d holds %d jurors", ErrJuryFull, lc.ID, lc.JurySize)
	}
	return nil
}

// AuthorizeJuror adds one certified juror to a case's authorization set.
// Only the case convener may call it; the set is bounded by the required
// jury size and admits each juror once.
func (c *JuryContract) AuthorizeJuror(ctx contractapi.TransactionContextInterface, caseID uint64, jurorID string) error {
	jurorID = strings.TrimSpace(jurorID)
	if jurorID == "" {
		return fmt.Errorf("%w: jurorID empty", ErrInvalidInput)
	}
	lc, err := loadCase(ctx, caseID)
	if err != nil {
		return err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	if caller != lc.Convener {
		return fmt.Errorf("%w: authorize on case %d", ErrNotConvener, caseID)
	}
	if err := checkAuthorizable(ctx, lc, jurorID); err != nil {
		return err
	}

	lc.Authorized = append(lc.Authorized, jurorID)
	if err := putCase(ctx, lc); err != nil {
		return err
	}

	if params, _ := getParams(ctx); params.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventJurorAuthorized, mustJSON(map[string]any{
			"caseID": caseID,
			"juror":  jurorID,
			"time":   nowRFC3339(ctx),
		}))
	}
	return nil
}

// AuthorizeJurors authorizes every juror in a JSON array onto a case. The
// whole call fails, with no partial authorization, if the combined size
// would exceed the required jury size or any single juror fails a check.
func (c *JuryContract) AuthorizeJurors(ctx contractapi.TransactionContextInterface, caseID uint64, jurorsJSON string) error {
	var ids []string
	if err := json.Unmarshal([]byte(jurorsJSON), &ids); err != nil {
		return fmt.Errorf("%w: parse juror IDs: %v", ErrInvalidInput, err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: empty juror list", ErrInvalidInput)
	}
	lc, err := loadCase(ctx, caseID)
	if err != nil {
		return err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	if caller != lc.Convener {
		return fmt.Errorf("%w: authorize on case %d", ErrNotConvener, caseID)
	}
	if len(lc.Authorized)+len(ids) > lc.JurySize {
		return fmt.Errorf("%w: %d + %d exceeds jury size %d", ErrJuryFull, len(lc.Authorized), len(ids), lc.JurySize)
	}

	// Validate the whole batch against the in-memory set before the single
	// write, so a late failure leaves nothing behind.
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("%w: blank jurorID at index %d", ErrInvalidInput, i)
		}
		if err := checkAuthorizable(ctx, lc, id); err != nil {
			return err
		}
		lc.Authorized = append(lc.Authorized, id)
	}
	if err := putCase(ctx, lc); err != nil {
		return err
	}

	if params, _ := getParams(ctx); params.EmitEvents {
		for _, id := range lc.Authorized[len(lc.Authorized)-len(ids):] {
			_ = ctx.GetStub().SetEvent(eventJurorAuthorized, mustJSON(map[string]any{
				"caseID": caseID,
				"juror":  id,
				"time":   nowRFC3339(ctx),
			}))
		}
	}
	return nil
}

// IsAuthorized reports whether a juror is in the case's authorization set.
func (c *JuryContract) IsAuthorized(ctx contractapi.TransactionContextInterface, caseID uint64, jurorID string) (bool, error) {
	lc, err := loadCase(ctx, caseID)
	if err != nil {
		return false, err
	}
	return lc.isAuthorized(jurorID), nil
}
