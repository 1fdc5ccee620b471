// authorize_test.go
//
// Tests for the per-case authorization set: convener gating, certification
// requirement, duplicate and capacity rules, atomic batch behavior.

package main

import "testing"

func TestAuthorize_ConvenerOnly(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(testJurorA)
	id := h.createCase(3)

	h.setCaller(testJurorA)
	requireErrIs(t, h.cc.AuthorizeJuror(h.ctx, id, testJurorA), ErrNotConvener)

	h.setCaller(testConvener)
	requireNoErr(t, h.cc.AuthorizeJuror(h.ctx, id, testJurorA))

	ok, err := h.cc.IsAuthorized(h.ctx, id, testJurorA)
	requireNoErr(t, err)
	if !ok {
		t.Fatalf("juror not authorized after authorize")
	}
	ok, err = h.cc.IsAuthorized(h.ctx, id, testJurorB)
	requireNoErr(t, err)
	if ok {
		t.Fatalf("unauthorized juror reported authorized")
	}
}

func TestAuthorize_RequiresCertification(t *testing.T) {
	h := newHarness(t)
	h.bootstrap() // nobody certified
	id := h.createCase(3)

	h.setCaller(testConvener)
	requireErrIs(t, h.cc.AuthorizeJuror(h.ctx, id, testJurorA), ErrNotCertified)
}

func TestAuthorize_DuplicateAndCapacity(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(testJurorA, testJurorB, testJurorC, testJurorD)
	id := h.createCase(3)
	h.authorizeAll(id, testJurorA, testJurorB)

	h.setCaller(testConvener)
	requireErrIs(t, h.cc.AuthorizeJuror(h.ctx, id, testJurorA), ErrAlreadyAuthorized)

	requireNoErr(t, h.cc.AuthorizeJuror(h.ctx, id, testJurorC))
	requireErrIs(t, h.cc.AuthorizeJuror(h.ctx, id, testJurorD), ErrJuryFull)
}

func TestAuthorize_BatchAtomic(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(testJurorA, testJurorB) // C deliberately not certified
	id := h.createCase(3)

	h.setCaller(testConvener)
	err := h.cc.AuthorizeJurors(h.ctx, id, `["`+testJurorA+`","`+testJurorB+`","`+testJurorC+`"]`)
	requireErrIs(t, err, ErrNotCertified)

	// No partial authorization happened.
	for _, j := range []string{testJurorA, testJurorB, testJurorC} {
		ok, err := h.cc.IsAuthorized(h.ctx, id, j)
		requireNoErr(t, err)
		if ok {
			t.Fatalf("juror %s authorized despite batch failure", j)
		}
	}

	// Combined size beyond the jury bound rejects up front.
	h.setCaller(testAdmin)
	requireNoErr(t, h.cc.CertifyJuror(h.ctx, testJurorC))
	requireNoErr(t, h.cc.CertifyJuror(h.ctx, testJurorD))
	h.setCaller(testConvener)
	err = h.cc.AuthorizeJurors(h.ctx, id,
		`["`+testJurorA+`","`+testJurorB+`","`+testJurorC+`","`+testJurorD+`"]`)
	requireErrIs(t, err, ErrJuryFull)

	// A duplicate inside the batch is also atomic-rejected.
	err = h.cc.AuthorizeJurors(h.ctx, id, `["`+testJurorA+`","`+testJurorA+`"]`)
	requireErrIs(t, err, ErrAlreadyAuthorized)

	// A clean batch lands everyone.
	requireNoErr(t, h.cc.AuthorizeJurors(h.ctx, id, `["`+testJurorA+`","`+testJurorB+`","`+testJurorC+`"]`))
	for _, j := range []string{testJurorA, testJurorB, testJurorC} {
		ok, err := h.cc.IsAuthorized(h.ctx, id, j)
		requireNoErr(t, err)
		if !ok {
			t.Fatalf("juror %s missing after clean batch", j)
		}
	}

	requireErrIs(t, h.cc.AuthorizeJurors(h.ctx, 77, `["`+testJurorA+`"]`), ErrNotFound)
}
