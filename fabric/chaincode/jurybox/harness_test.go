// harness_test.go
//
// Minimal, deterministic test harness for the jurybox chaincode: an
// in-memory world-state/private-data "ledger" behind a hand-rolled
// ChaincodeStub, a settable caller identity and transaction clock, and
// focused helpers to drive the contract without real peers, orderers or
// crypto material. Only the stub methods the contract exercises are
// implemented; anything else panics via the embedded interface.

package main

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/hyperledger/fabric-chaincode-go/v2/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/v2/shim"
	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
	"github.com/hyperledger/fabric-protos-go-apiv2/ledger/queryresult"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/DayanaMraz/legal-decision-making/internal/homenc"
)

const (
	testAdmin    = "x509::admin"
	testConvener = "x509::convener"
	testJurorA   = "x509::juror-a"
	testJurorB   = "x509::juror-b"
	testJurorC   = "x509::juror-c"
	testJurorD   = "x509::juror-d"

	testTitle    = "State v. Doe"
	testDesc     = "Alleged breach of covenant"
	testEvidence = "cid:QmEvidenceBundle01"
	testCommit   = "deadbeefcafef00d"

	testEpochStart int64 = 1_700_000_000
)

/* in-memory WS/PDC harness */

// memWorld is a tiny in-memory ledger used by the stub. It tracks world
// state (ws), private data (pdc), emitted events, and op counts.
type memWorld struct {
	ws     map[string][]byte
	pdc    map[string]map[string][]byte
	events []struct {
		name    string
		payload []byte
	}
	opsCounts struct {
		getState, putState int
		getPDC, putPDC     int
		setEvent           int
	}
}

func newMemWorld() *memWorld {
	return &memWorld{ws: make(map[string][]byte), pdc: make(map[string]map[string][]byte)}
}

func (m *memWorld) getState(key string) ([]byte, error) {
	m.opsCounts.getState++
	if v, ok := m.ws[key]; ok {
		return append([]byte(nil), v...), nil // Copy for safety
	}
	return nil, nil
}

func (m *memWorld) putState(key string, val []byte) error {
	m.opsCounts.putState++
	m.ws[key] = append([]byte(nil), val...) // Copy for safety
	return nil
}

func (m *memWorld) getPDC(coll, key string) ([]byte, error) {
	m.opsCounts.getPDC++
	if c, ok := m.pdc[coll]; ok {
		if v, ok2 := c[key]; ok2 {
			return append([]byte(nil), v...), nil
		}
	}
	return nil, nil
}

func (m *memWorld) putPDC(coll, key string, val []byte) error {
	m.opsCounts.putPDC++
	c := m.pdc[coll]
	if c == nil {
		c = make(map[string][]byte)
		m.pdc[coll] = c
	}
	c[key] = append([]byte(nil), val...)
	return nil
}

func (m *memWorld) setEvent(name string, payload []byte) error {
	m.opsCounts.setEvent++
	m.events = append(m.events, struct {
		name    string
		payload []byte
	}{name: name, payload: append([]byte(nil), payload...)})
	return nil
}

// eventNames lists emitted event names in order, for assertions.
func (m *memWorld) eventNames() []string {
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.name)
	}
	return out
}

// memIter iterates a pre-materialized slice of KV pairs; the subset of
// shim.StateQueryIteratorInterface the contract uses.
type memIter struct {
	keys []string
	vals [][]byte
	i    int
}

func (it *memIter) HasNext() bool { return it.i < len(it.keys) }

func (it *memIter) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, fmt.Errorf("iterator exhausted")
	}
	kv := &queryresult.KV{Key: it.keys[it.i], Value: it.vals[it.i]}
	it.i++
	return kv, nil
}

func (it *memIter) Close() error { return nil }

// iterWSRange materializes a [start, end) range scan over world state with
// deterministic key order, matching Fabric semantics.
func (m *memWorld) iterWSRange(start, end string) *memIter {
	var keys []string
	for k := range m.ws {
		if (start == "" || k >= start) && (end == "" || k < end) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	vals := make([][]byte, len(keys))
	for i, k := range keys {
		vals[i] = append([]byte(nil), m.ws[k]...)
	}
	return &memIter{keys: keys, vals: vals}
}

/* stub + tx context (no mocking framework) */

// memStub implements the stub methods the contract touches over memWorld.
// The embedded interface covers the rest of the surface; reaching an
// unimplemented method panics, which is exactly what a test should do.
type memStub struct {
	shim.ChaincodeStubInterface
	mem  *memWorld
	txID string
	now  int64
}

func (s *memStub) GetState(key string) ([]byte, error)        { return s.mem.getState(key) }
func (s *memStub) PutState(key string, val []byte) error      { return s.mem.putState(key, val) }
func (s *memStub) GetPrivateData(c, k string) ([]byte, error) { return s.mem.getPDC(c, k) }
func (s *memStub) PutPrivateData(c, k string, v []byte) error { return s.mem.putPDC(c, k, v) }
func (s *memStub) SetEvent(name string, payload []byte) error { return s.mem.setEvent(name, payload) }
func (s *memStub) GetTxID() string                            { return s.txID }
func (s *memStub) GetChannelID() string                       { return "jurychan-01" }

func (s *memStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return &timestamppb.Timestamp{Seconds: s.now}, nil
}

func (s *memStub) GetStateByRange(start, end string) (shim.StateQueryIteratorInterface, error) {
	return s.mem.iterWSRange(start, end), nil
}

// fakeIdentity satisfies cid.ClientIdentity with a fixed principal id.
type fakeIdentity struct {
	id string
}

func (f *fakeIdentity) GetID() (string, error)                         { return f.id, nil }
func (f *fakeIdentity) GetMSPID() (string, error)                      { return "JuryMSP", nil }
func (f *fakeIdentity) GetX509Certificate() (*x509.Certificate, error) { return nil, nil }
func (f *fakeIdentity) GetAttributeValue(string) (string, bool, error) { return "", false, nil }
func (f *fakeIdentity) AssertAttributeValue(string, string) error      { return nil }

// simpleTxCtx adapts the stub and identity to a contractapi transaction
// context; the contract only needs the two getters.
type simpleTxCtx struct {
	s  shim.ChaincodeStubInterface
	id *fakeIdentity
}

func (c *simpleTxCtx) GetStub() shim.ChaincodeStubInterface  { return c.s }
func (c *simpleTxCtx) GetClientIdentity() cid.ClientIdentity { return c.id }

/* test harness */

// testHarness bundles the in-mem ledger, stub, identity and the contract
// under test, with setters for caller, txID and the transaction clock.
type testHarness struct {
	ctx  contractapi.TransactionContextInterface
	stub *memStub
	id   *fakeIdentity
	mem  *memWorld
	cc   *JuryContract
	t    *testing.T
}

// newHarness builds a harness over the plaintext scheme, which behaves like
// integer arithmetic under the opaque handle and needs no key material.
func newHarness(t *testing.T) *testHarness {
	return newHarnessWith(t, homenc.NewPlain())
}

func newHarnessWith(t *testing.T, enc homenc.Scheme) *testHarness {
	t.Helper()
	mem := newMemWorld()
	stub := &memStub{mem: mem, txID: "tx-0001", now: testEpochStart}
	id := &fakeIdentity{id: testAdmin}
	return &testHarness{
		ctx:  &simpleTxCtx{s: stub, id: id},
		stub: stub,
		id:   id,
		mem:  mem,
		cc:   NewJuryContract(enc),
		t:    t,
	}
}

func (h *testHarness) setCaller(id string) { h.id.id = id }
func (h *testHarness) setTxID(id string)   { h.stub.txID = id }
func (h *testHarness) setNow(now int64)    { h.stub.now = now }
func (h *testHarness) advance(secs int64)  { h.stub.now += secs }

// bootstrap captures testAdmin as administrator and certifies the given
// jurors, restoring the previous caller afterwards.
func (h *testHarness) bootstrap(jurors ...string) {
	h.t.Helper()
	prev := h.id.id
	h.setCaller(testAdmin)
	requireNoErr(h.t, h.cc.Bootstrap(h.ctx))
	for _, j := range jurors {
		requireNoErr(h.t, h.cc.CertifyJuror(h.ctx, j))
	}
	h.setCaller(prev)
}

// createCase opens a case as testConvener and returns its id.
func (h *testHarness) createCase(jurySize int) uint64 {
	h.t.Helper()
	prev := h.id.id
	h.setCaller(testConvener)
	id, err := h.cc.CreateCase(h.ctx, testTitle, testDesc, testEvidence, jurySize)
	requireNoErr(h.t, err)
	h.setCaller(prev)
	return id
}

// authorizeAll authorizes the given jurors onto a case as testConvener.
func (h *testHarness) authorizeAll(caseID uint64, jurors ...string) {
	h.t.Helper()
	prev := h.id.id
	h.setCaller(testConvener)
	for _, j := range jurors {
		requireNoErr(h.t, h.cc.AuthorizeJuror(h.ctx, caseID, j))
	}
	h.setCaller(prev)
}

// vote casts a choice for the given juror with a distinct txID per cast.
func (h *testHarness) vote(caseID uint64, juror string, choice int) error {
	h.t.Helper()
	prev := h.id.id
	h.setCaller(juror)
	h.setTxID(fmt.Sprintf("tx-%d-%s", caseID, juror))
	err := h.cc.CastVote(h.ctx, caseID, choice, testCommit)
	h.setCaller(prev)
	return err
}

// readVote fetches the private vote record for a (case, juror) pair.
func (h *testHarness) readVote(caseID uint64, juror string) JurorVote {
	h.t.Helper()
	cm := h.mem.pdc[votesPDC]
	if cm == nil {
		h.t.Fatalf("PDC %s empty (want %s)", votesPDC, voteKey(caseID, juror))
	}
	raw, ok := cm[voteKey(caseID, juror)]
	if !ok {
		h.t.Fatalf("missing PDC key %s", voteKey(caseID, juror))
	}
	var v JurorVote
	if err := json.Unmarshal(raw, &v); err != nil {
		h.t.Fatalf("bad PDC json for %s: %v", voteKey(caseID, juror), err)
	}
	return v
}

/* assertion helpers */

func requireNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func requireErrIs(t *testing.T, err, want error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %v, got nil", want)
	}
	if !errors.Is(err, want) {
		t.Fatalf("error %q is not %q", err.Error(), want.Error())
	}
}

func requireErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", wantSubstr)
	}
	if wantSubstr != "" && !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(wantSubstr)) {
		t.Fatalf("error %q does not contain %q", err.Error(), wantSubstr)
	}
}
