package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
)

// Initial reputation granted on first certification, and the credit applied
// to every juror who voted in a case when its verdict is revealed.
const (
	initialReputation   = 100
	participationCredit = 5
)

// JurorRecord is the public directory entry for an identity. Records are
// created on certification and never destroyed.
type JurorRecord struct {
	Certified  bool   `json:"certified"`
	Reputation uint64 `json:"reputation"`
}

func jurorKey(id string) string { return keyJurorPrefix + id }

// loadJuror returns the stored record for an identity, or nil when the
// identity has never been certified.
func loadJuror(ctx contractapi.TransactionContextInterface, id string) (*JurorRecord, error) {
	raw, err := ctx.GetStub().GetState(jurorKey(id))
	if err != nil {
		return nil, fmt.Errorf("get juror: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var rec JurorRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("juror json: %w", err)
	}
	return &rec, nil
}

func putJuror(ctx contractapi.TransactionContextInterface, id string, rec *JurorRecord) error {
	return ctx.GetStub().PutState(jurorKey(id), mustJSON(rec))
}

// requireAdmin rejects callers other than the bootstrapped administrator.
func requireAdmin(ctx contractapi.TransactionContextInterface, params *Params) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	if params.AdminID == "" || caller != params.AdminID {
		return fmt.Errorf("%w: certification requires the administrator", ErrNotAdministrator)
	}
	return nil
}

// certifyOne applies the idempotent certification rule to a single identity
// and reports whether this was a first certification.
func certifyOne(ctx contractapi.TransactionContextInterface, id string) (bool, error) {
	rec, err := loadJuror(ctx, id)
	if err != nil {
		return false, err
	}
	if rec != nil && rec.Certified {
		// Repeat certification leaves reputation untouched.
		return false, nil
	}
	if rec == nil {
		rec = &JurorRecord{Reputation: initialReputation}
	}
	rec.Certified = true
	return true, putJuror(ctx, id, rec)
}

// CertifyJuror marks an identity as eligible to ever serve on a jury. First
// certification seeds the default reputation; repeats are no-ops. Only the
// administrator may call it.
func (c *JuryContract) CertifyJuror(ctx contractapi.TransactionContextInterface, jurorID string) error {
	jurorID = strings.TrimSpace(jurorID)
	if jurorID == "" {
		return fmt.Errorf("%w: jurorID empty", ErrInvalidInput)
	}
	params, err := getParams(ctx)
	if err != nil {
		return err
	}
	if err := requireAdmin(ctx, params); err != nil {
		return err
	}
	first, err := certifyOne(ctx, jurorID)
	if err != nil {
		return err
	}
	if first && params.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventJurorCertified, mustJSON(map[string]string{
			"juror": jurorID,
			"time":  nowRFC3339(ctx),
		}))
	}
	return nil
}

// CertifyJurors certifies every identity in a JSON array. The whole call is
// validated before any write so it either applies to all members or to none.
func (c *JuryContract) CertifyJurors(ctx contractapi.TransactionContextInterface, jurorsJSON string) error {
	params, err := getParams(ctx)
	if err != nil {
		return err
	}
	if err := requireAdmin(ctx, params); err != nil {
		return err
	}
	var ids []string
	if err := json.Unmarshal([]byte(jurorsJSON), &ids); err != nil {
		return fmt.Errorf("%w: parse juror IDs: %v", ErrInvalidInput, err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: empty juror list", ErrInvalidInput)
	}
	for i, id := range ids {
		ids[i] = strings.TrimSpace(id)
		if ids[i] == "" {
			return fmt.Errorf("%w: blank jurorID at index %d", ErrInvalidInput, i)
		}
	}
	for _, id := range ids {
		first, err := certifyOne(ctx, id)
		if err != nil {
			return err
		}
		if first && params.EmitEvents {
			_ = ctx.GetStub().SetEvent(eventJurorCertified, mustJSON(map[string]string{
				"juror": id,
				"time":  nowRFC3339(ctx),
			}))
		}
	}
	return nil
}

// ReputationOf returns a juror's reputation score, 0 for identities that
// were never certified.
func (c *JuryContract) ReputationOf(ctx contractapi.TransactionContextInterface, jurorID string) (uint64, error) {
	rec, err := loadJuror(ctx, jurorID)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return rec.Reputation, nil
}

// GetJuror returns the full directory record for a certified identity.
func (c *JuryContract) GetJuror(ctx contractapi.TransactionContextInterface, jurorID string) (*JurorRecord, error) {
	rec, err := loadJuror(ctx, jurorID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: juror %q", ErrNotFound, jurorID)
	}
	return rec, nil
}
