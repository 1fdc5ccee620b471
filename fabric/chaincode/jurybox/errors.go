package main

import "errors"

// Failure classes returned by the contract. Every guard runs before any
// state write, so a returned error always means the transaction left the
// ledger untouched. Call sites wrap these with fmt.Errorf("%w: …") so
// callers can branch on errors.Is while still seeing context.
var (
	// Input validation
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidChoice     = errors.New("choice must be 0 or 1")
	ErrInvalidCommitment = errors.New("commitment must be a non-zero hash")

	// Authorization
	ErrNotAdministrator = errors.New("caller is not the administrator")
	ErrNotConvener      = errors.New("caller is not the case convener")
	ErrNotCertified     = errors.New("juror is not certified")
	ErrNotAuthorized    = errors.New("caller is not authorized for this case")

	// State conflicts
	ErrAlreadyAuthorized  = errors.New("juror already authorized")
	ErrJuryFull           = errors.New("jury is full")
	ErrAlreadyVoted       = errors.New("juror has already voted")
	ErrVotingClosed       = errors.New("voting is closed")
	ErrAlreadyClosed      = errors.New("voting already closed")
	ErrVotingStillOpen    = errors.New("voting is still open")
	ErrAlreadyRevealed    = errors.New("results already revealed")
	ErrInsufficientJurors = errors.New("insufficient jurors voted")
	ErrNotRevealed        = errors.New("results not revealed")
	ErrVoteInProgress     = errors.New("a vote for this case is already in progress")

	// Absent / corrupt data
	ErrNotFound      = errors.New("not found")
	ErrTallyMismatch = errors.New("decrypted tallies do not match vote count")
)
