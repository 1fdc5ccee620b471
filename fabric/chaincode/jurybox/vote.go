package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"

	"github.com/DayanaMraz/legal-decision-making/internal/homenc"
)

// Per-case single-entry guard for the vote-and-accumulate sequence. A call
// re-entering CastVote for the same case while one is in flight is rejected
// outright instead of double counting.
var voteInFlight sync.Map // case id → struct{}

// JurorVote is the private record of one juror's vote, written exactly once
// per (case, juror) pair and immutable afterwards. The choice ciphertext is
// never decrypted; the commitment is retained for off-band verification.
type JurorVote struct {
	EncryptedChoice homenc.Value `json:"encryptedChoice"`
	Commitment      string       `json:"commitment"`
	SubmittedAt     int64        `json:"submittedAt"` // Unix seconds
	TxID            string       `json:"txID"`
}

// voteKey builds the private-data key for a vote (VOTE::<case>::<juror>).
func voteKey(caseID uint64, juror string) string {
	return fmt.Sprintf("VOTE::%d::%s", caseID, juror)
}

// commitmentOK validates the caller-supplied commitment: well-formed hex
// with at least one non-zero byte. The contract never verifies it against a
// revealed secret; it only refuses vacuous commitments.
func commitmentOK(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return "", fmt.Errorf("%w: bad hex", ErrInvalidCommitment)
	}
	for _, x := range b {
		if x != 0 {
			return strings.ToLower(s), nil
		}
	}
	return "", fmt.Errorf("%w: zero hash", ErrInvalidCommitment)
}

// CastVote records the calling juror's single confidential vote on a case
// and folds it into both encrypted tallies.
//
// The choice is encrypted narrow, widened to the accumulator width, and
// added to the guilty counter; the complementary value Enc(1) - Enc(choice),
// still encrypted, is added to the innocent counter. That construction
// keeps guilty + innocent == votesCast by definition with a single encrypted
// input feeding both counters, without ever decrypting the choice. All
// guards run before the first write.
func (c *JuryContract) CastVote(ctx contractapi.TransactionContextInterface, caseID uint64, choice int, commitmentHex string) error {
	if _, busy := voteInFlight.LoadOrStore(caseID, struct{}{}); busy {
		return fmt.Errorf("%w: case %d", ErrVoteInProgress, caseID)
	}
	defer voteInFlight.Delete(caseID)

	lc, err := loadCase(ctx, caseID)
	if err != nil {
		return err
	}
	now := txUnix(ctx)
	if lc.State != CaseOpen {
		return fmt.Errorf("%w: case %d is %s", ErrVotingClosed, caseID, lc.State)
	}
	if now < lc.OpenedAt || now > lc.ClosesAt {
		return fmt.Errorf("%w: outside the voting window", ErrVotingClosed)
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	rec, err := loadJuror(ctx, caller)
	if err != nil {
		return err
	}
	if rec == nil || !rec.Certified || !lc.isAuthorized(caller) {
		return fmt.Errorf("%w: case %d", ErrNotAuthorized, caseID)
	}
	if lc.hasVoted(caller) {
		return fmt.Errorf("%w: case %d", ErrAlreadyVoted, caseID)
	}
	commitment, err := commitmentOK(commitmentHex)
	if err != nil {
		return err
	}
	if choice != 0 && choice != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidChoice, choice)
	}

	// Encrypt narrow, grant the contract, then build both tally deltas.
	bit, err := c.enc.Encrypt(uint64(choice), homenc.WidthBit)
	if err != nil {
		return fmt.Errorf("encrypt choice: %w", err)
	}
	bit = c.enc.Grant(bit, selfPrincipal)
	wide, err := c.enc.Widen(bit, homenc.WidthTally)
	if err != nil {
		return fmt.Errorf("widen choice: %w", err)
	}
	oneWide, err := c.enc.Encrypt(1, homenc.WidthTally)
	if err != nil {
		return fmt.Errorf("encrypt unit: %w", err)
	}
	complement, err := c.enc.Sub(c.enc.Grant(oneWide, selfPrincipal), wide)
	if err != nil {
		return fmt.Errorf("complement: %w", err)
	}
	if lc.EncGuilty, err = c.enc.Add(lc.EncGuilty, wide); err != nil {
		return fmt.Errorf("accumulate guilty: %w", err)
	}
	if lc.EncInnocent, err = c.enc.Add(lc.EncInnocent, complement); err != nil {
		return fmt.Errorf("accumulate innocent: %w", err)
	}

	vote := &JurorVote{
		EncryptedChoice: bit,
		Commitment:      commitment,
		SubmittedAt:     now,
		TxID:            ctx.GetStub().GetTxID(),
	}
	if err := ctx.GetStub().PutPrivateData(votesPDC, voteKey(caseID, caller), mustJSON(vote)); err != nil {
		return fmt.Errorf("store vote: %w", err)
	}
	lc.Voters = append(lc.Voters, caller)
	if err := putCase(ctx, lc); err != nil {
		return err
	}

	// The event names the voter and time only; the choice stays opaque.
	if params, _ := getParams(ctx); params.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventVoteCast, mustJSON(map[string]any{
			"caseID": caseID,
			"juror":  caller,
			"time":   nowRFC3339(ctx),
		}))
	}
	return nil
}

// HasVoted reports whether a juror already cast a vote on a case.
func (c *JuryContract) HasVoted(ctx contractapi.TransactionContextInterface, caseID uint64, jurorID string) (bool, error) {
	lc, err := loadCase(ctx, caseID)
	if err != nil {
		return false, err
	}
	return lc.hasVoted(jurorID), nil
}

// GetEncryptedTallies returns the current accumulator ciphertexts as hex.
// A transparency read for auditors: the handles leak nothing without the
// decryption capability.
func (c *JuryContract) GetEncryptedTallies(ctx contractapi.TransactionContextInterface, caseID uint64) (map[string]string, error) {
	lc, err := loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"guilty":   lc.EncGuilty.C,
		"innocent": lc.EncInnocent.C,
	}, nil
}
