package verification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
	"github.com/redmonkez12/nonprofit-portal/internal/verification/verificationtest"
)

type note struct {
	Subject string
	Message string
}

const (
	codeTemplate     = "inquiry_code"
	receivedTemplate = "inquiry_received"
)

type harness struct {
	machine  *verification.Machine[note]
	repo     *verificationtest.Repository[note]
	notifier *verificationtest.Notifier
	clock    *verificationtest.Clock
}

func newHarness(t *testing.T, flow verification.Flow[note], script ...string) *harness {
	t.Helper()

	clock := verificationtest.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := verificationtest.NewRepository[note]()
	notifier := verificationtest.NewNotifier()
	codes := verificationtest.NewCodes(clock, 15*time.Minute, script...)

	return &harness{
		machine:  verification.NewMachine(flow, repo, notifier, codes, logging.Discard()),
		repo:     repo,
		notifier: notifier,
		clock:    clock,
	}
}

func inquiryFlow() verification.Flow[note] {
	return verification.Flow[note]{
		Name:                 "inquiry",
		CreateOnDemand:       true,
		ReplacePayload:       true,
		ResetVerified:        true,
		MarkVerified:         true,
		CodeTemplate:         codeTemplate,
		ConfirmationTemplate: receivedTemplate,
	}
}

func TestMachine_NewInquiryVerifiesOnce(t *testing.T) {
	h := newHarness(t, inquiryFlow(), "482913")
	ctx := context.Background()

	receipt, err := h.machine.StartCycle(ctx, "a@x.com", note{Subject: "Hi", Message: "Hello"})
	require.NoError(t, err)
	assert.True(t, receipt.Created)
	assert.Equal(t, h.clock.Now().Add(15*time.Minute), receipt.ExpiresAt)

	sent := h.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, codeTemplate, sent[0].Template)
	assert.Equal(t, "a@x.com", sent[0].Message.To)
	assert.Equal(t, "482913", sent[0].Message.Code)

	stored, ok := h.repo.Get("a@x.com")
	require.True(t, ok)
	require.NotNil(t, stored.Pending)
	assert.NotEqual(t, "482913", stored.Pending.CodeHash, "code must not be stored in the clear")
	assert.False(t, stored.Verified)

	subject, err := h.machine.SubmitCode(ctx, "a@x.com", "482913")
	require.NoError(t, err)
	assert.True(t, subject.Verified)
	assert.Nil(t, subject.Pending)
	assert.Equal(t, "Hello", subject.Payload.Message)
	assert.Equal(t, 1, h.notifier.Count(receivedTemplate))

	_, err = h.machine.SubmitCode(ctx, "a@x.com", "482913")
	assert.ErrorIs(t, err, verification.ErrNoPendingCycle)
}

func TestMachine_CreateRaceLastWriteWins(t *testing.T) {
	h := newHarness(t, inquiryFlow(), "222222")
	ctx := context.Background()

	// another request stores the same sender between our lookup and insert
	first := &verification.Subject[note]{
		ID:       uuid.New(),
		Identity: "a@x.com",
		Email:    "a@x.com",
		Payload:  note{Subject: "First"},
		Pending:  &verification.PendingCode{CodeHash: verification.HashCode("111111"), ExpiresAt: h.clock.Now().Add(15 * time.Minute)},
		Verified: true,
	}
	h.repo.BeforeCreate = func() {
		h.repo.BeforeCreate = nil
		h.repo.Put(first)
	}

	receipt, err := h.machine.StartCycle(ctx, "a@x.com", note{Subject: "Second"})
	require.NoError(t, err)
	assert.False(t, receipt.Created)
	assert.Equal(t, first.ID, receipt.SubjectID)
	assert.Equal(t, 1, h.repo.Len())

	stored, ok := h.repo.Get("a@x.com")
	require.True(t, ok)
	assert.Equal(t, "Second", stored.Payload.Subject)
	assert.False(t, stored.Verified)

	_, err = h.machine.SubmitCode(ctx, "a@x.com", "111111")
	assert.ErrorIs(t, err, verification.ErrInvalidCode)

	subject, err := h.machine.SubmitCode(ctx, "a@x.com", "222222")
	require.NoError(t, err)
	assert.Equal(t, "Second", subject.Payload.Subject)
}

func TestMachine_OnlyLatestCodeValidates(t *testing.T) {
	h := newHarness(t, inquiryFlow(), "111111", "222222", "333333")
	ctx := context.Background()

	for range 3 {
		_, err := h.machine.StartCycle(ctx, "a@x.com", note{Subject: "Hi"})
		require.NoError(t, err)
	}

	for _, stale := range []string{"111111", "222222"} {
		_, err := h.machine.SubmitCode(ctx, "a@x.com", stale)
		assert.ErrorIs(t, err, verification.ErrInvalidCode, stale)
	}

	_, err := h.machine.SubmitCode(ctx, "a@x.com", "333333")
	assert.NoError(t, err)
}

func TestMachine_ExpiredCodeIsClearedLazily(t *testing.T) {
	h := newHarness(t, inquiryFlow(), "555000")
	ctx := context.Background()

	_, err := h.machine.StartCycle(ctx, "a@x.com", note{})
	require.NoError(t, err)

	h.clock.Advance(16 * time.Minute)

	_, err = h.machine.SubmitCode(ctx, "a@x.com", "555000")
	assert.ErrorIs(t, err, verification.ErrExpired)

	stored, _ := h.repo.Get("a@x.com")
	assert.Nil(t, stored.Pending)
	assert.False(t, stored.Verified)

	_, err = h.machine.SubmitCode(ctx, "a@x.com", "555000")
	assert.ErrorIs(t, err, verification.ErrNoPendingCycle)
}

func TestMachine_ExpiryBoundaryIsExclusive(t *testing.T) {
	h := newHarness(t, inquiryFlow(), "555000")
	ctx := context.Background()

	_, err := h.machine.StartCycle(ctx, "a@x.com", note{})
	require.NoError(t, err)

	h.clock.Advance(15 * time.Minute)

	_, err = h.machine.SubmitCode(ctx, "a@x.com", "555000")
	assert.ErrorIs(t, err, verification.ErrExpired)
}

func TestMachine_WrongCodeKeepsCycle(t *testing.T) {
	h := newHarness(t, inquiryFlow(), "482913")
	ctx := context.Background()

	_, err := h.machine.StartCycle(ctx, "a@x.com", note{})
	require.NoError(t, err)

	for _, guess := range []string{"000000", "111111", "not-a-code"} {
		_, err := h.machine.SubmitCode(ctx, "a@x.com", guess)
		assert.ErrorIs(t, err, verification.ErrInvalidCode)
	}

	stored, _ := h.repo.Get("a@x.com")
	require.NotNil(t, stored.Pending)

	h.clock.Advance(14 * time.Minute)
	subject, err := h.machine.SubmitCode(ctx, "A@X.com ", " 482913 ")
	require.NoError(t, err)
	assert.True(t, subject.Verified)
}

func TestMachine_DeliveryFailureRemovesNewSubject(t *testing.T) {
	h := newHarness(t, inquiryFlow())
	h.notifier.FailTemplate(codeTemplate, true)

	_, err := h.machine.StartCycle(context.Background(), "a@x.com", note{Subject: "Hi"})
	assert.ErrorIs(t, err, verification.ErrDeliveryFailed)
	assert.NotErrorIs(t, err, verificationtest.ErrDeliveryRefused, "transport errors stay inside the machine")

	_, ok := h.repo.Get("a@x.com")
	assert.False(t, ok)
	assert.Equal(t, 1, h.repo.Deletes)
}

func TestMachine_DeliveryFailureClearsExistingSubject(t *testing.T) {
	h := newHarness(t, inquiryFlow(), "123456")
	ctx := context.Background()

	_, err := h.machine.StartCycle(ctx, "a@x.com", note{Subject: "first"})
	require.NoError(t, err)

	h.notifier.FailTemplate(codeTemplate, true)
	_, err = h.machine.StartCycle(ctx, "a@x.com", note{Subject: "second"})
	require.ErrorIs(t, err, verification.ErrDeliveryFailed)

	stored, ok := h.repo.Get("a@x.com")
	require.True(t, ok)
	assert.Nil(t, stored.Pending)
	assert.Zero(t, h.repo.Deletes)

	_, err = h.machine.SubmitCode(ctx, "a@x.com", "123456")
	assert.ErrorIs(t, err, verification.ErrNoPendingCycle)
}

func TestMachine_ResubmissionReplacesPayload(t *testing.T) {
	h := newHarness(t, inquiryFlow(), "100001", "100002")
	ctx := context.Background()

	_, err := h.machine.StartCycle(ctx, "a@x.com", note{Subject: "draft", Message: "v1"})
	require.NoError(t, err)
	_, err = h.machine.StartCycle(ctx, "a@x.com", note{Subject: "final", Message: "v2"})
	require.NoError(t, err)

	subject, err := h.machine.SubmitCode(ctx, "a@x.com", "100002")
	require.NoError(t, err)
	assert.Equal(t, note{Subject: "final", Message: "v2"}, subject.Payload)

	stored, _ := h.repo.Get("a@x.com")
	assert.Equal(t, "v2", stored.Payload.Message)
}

func TestMachine_ResubmissionResetsVerified(t *testing.T) {
	h := newHarness(t, inquiryFlow(), "100001", "100002")
	ctx := context.Background()

	_, err := h.machine.StartCycle(ctx, "a@x.com", note{})
	require.NoError(t, err)
	_, err = h.machine.SubmitCode(ctx, "a@x.com", "100001")
	require.NoError(t, err)

	_, err = h.machine.StartCycle(ctx, "a@x.com", note{Subject: "again"})
	require.NoError(t, err)

	stored, _ := h.repo.Get("a@x.com")
	assert.False(t, stored.Verified)
}

func TestMachine_NoCreateOnDemand(t *testing.T) {
	flow := inquiryFlow()
	flow.CreateOnDemand = false
	h := newHarness(t, flow)

	_, err := h.machine.StartCycle(context.Background(), "ghost@x.com", note{})
	assert.ErrorIs(t, err, verification.ErrNotFound)
	assert.Empty(t, h.notifier.Sent())
}

func TestMachine_GuardErrorPassesThrough(t *testing.T) {
	errBlocked := errors.New("blocked")
	flow := inquiryFlow()
	flow.Guard = func(s *verification.Subject[note]) error {
		if s.Verified {
			return errBlocked
		}
		return nil
	}
	h := newHarness(t, flow)
	h.repo.Put(&verification.Subject[note]{Identity: "a@x.com", Email: "a@x.com", Verified: true})

	_, err := h.machine.StartCycle(context.Background(), "a@x.com", note{})
	assert.Same(t, errBlocked, err)
	assert.Empty(t, h.notifier.Sent())
}

func TestMachine_OTPFlowDoesNotTouchVerified(t *testing.T) {
	flow := verification.Flow[note]{Name: "login", CodeTemplate: "login_code"}
	h := newHarness(t, flow, "424242")
	h.repo.Put(&verification.Subject[note]{Identity: "member", Email: "m@x.com", Name: "Mia"})
	ctx := context.Background()

	_, err := h.machine.StartCycle(ctx, "Member", note{Subject: "ignored"})
	require.NoError(t, err)

	sent := h.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "m@x.com", sent[0].Message.To)
	assert.Equal(t, "Mia", sent[0].Message.Name)

	subject, err := h.machine.SubmitCode(ctx, "member", "424242")
	require.NoError(t, err)
	assert.False(t, subject.Verified)
	assert.Empty(t, subject.Payload.Subject)
	assert.Len(t, h.notifier.Sent(), 1, "no confirmation configured")
}

func TestMachine_ConfirmationFailureDoesNotFailVerification(t *testing.T) {
	h := newHarness(t, inquiryFlow(), "482913")
	ctx := context.Background()

	_, err := h.machine.StartCycle(ctx, "a@x.com", note{})
	require.NoError(t, err)

	h.notifier.FailTemplate(receivedTemplate, true)
	subject, err := h.machine.SubmitCode(ctx, "a@x.com", "482913")
	require.NoError(t, err)
	assert.True(t, subject.Verified)
}

func TestMachine_Validation(t *testing.T) {
	h := newHarness(t, inquiryFlow())
	ctx := context.Background()

	_, err := h.machine.StartCycle(ctx, "   ", note{})
	assert.ErrorIs(t, err, verification.ErrValidation)

	_, err = h.machine.SubmitCode(ctx, "a@x.com", " ")
	assert.ErrorIs(t, err, verification.ErrValidation)

	_, err = h.machine.SubmitCode(ctx, "nobody@x.com", "123456")
	assert.ErrorIs(t, err, verification.ErrNotFound)
}

func TestMachine_StoreFailuresAreUnknown(t *testing.T) {
	h := newHarness(t, inquiryFlow())
	dbErr := errors.New("pq: connection reset by peer")
	h.repo.FindErr = dbErr

	_, err := h.machine.StartCycle(context.Background(), "a@x.com", note{})
	assert.ErrorIs(t, err, verification.ErrUnknown)
	assert.NotErrorIs(t, err, dbErr)
	assert.NotContains(t, err.Error(), "connection reset")

	_, err = h.machine.SubmitCode(context.Background(), "a@x.com", "123456")
	assert.ErrorIs(t, err, verification.ErrUnknown)
}

func TestMachine_CustomCompose(t *testing.T) {
	flow := inquiryFlow()
	flow.Compose = func(s *verification.Subject[note]) verification.Message {
		return verification.Message{To: s.Email, Subject: s.Payload.Subject, Body: s.Payload.Message}
	}
	h := newHarness(t, flow, "482913")

	_, err := h.machine.StartCycle(context.Background(), "a@x.com", note{Subject: "Hi", Message: "Hello"})
	require.NoError(t, err)

	msg := h.notifier.Sent()[0].Message
	assert.Equal(t, "Hi", msg.Subject)
	assert.Equal(t, "Hello", msg.Body)
	assert.Equal(t, "482913", msg.Code)
}
