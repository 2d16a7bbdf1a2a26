package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContractStateTransitions(t *testing.T) {
	assert.True(t, ContractPending.CanTransition(ContractAccepted))
	assert.True(t, ContractPending.CanTransition(ContractDeclined))
	assert.True(t, ContractPending.CanTransition(ContractPending), "idempotent re-save")

	assert.False(t, ContractAccepted.CanTransition(ContractPending))
	assert.False(t, ContractAccepted.CanTransition(ContractDeclined))
	assert.False(t, ContractDeclined.CanTransition(ContractAccepted))
	assert.True(t, ContractDeclined.CanTransition(ContractDeclined))
}

func TestApplicationStateForwardOnly(t *testing.T) {
	assert.True(t, ApplicationCreated.CanTransition(ApplicationInterview))
	assert.True(t, ApplicationInterview.CanTransition(ApplicationApplied))
	assert.True(t, ApplicationApplied.CanTransition(ApplicationContract))
	assert.True(t, ApplicationContract.CanTransition(ApplicationEmployed))

	// No skipping.
	assert.False(t, ApplicationCreated.CanTransition(ApplicationApplied))
	assert.False(t, ApplicationInterview.CanTransition(ApplicationEmployed))

	// No going back.
	assert.False(t, ApplicationEmployed.CanTransition(ApplicationCreated))
	assert.False(t, ApplicationContract.CanTransition(ApplicationApplied))

	// Staying in place is always fine.
	for _, s := range []ApplicationState{ApplicationCreated, ApplicationInterview, ApplicationApplied, ApplicationContract, ApplicationEmployed} {
		assert.True(t, s.CanTransition(s), "state %s", s)
	}
}

func TestApplicationEffects(t *testing.T) {
	assert.Equal(t, []Effect{EffectGrantAuthentication}, ApplicationEffects(ApplicationApplied, ApplicationContract))
	assert.Equal(t, []Effect{EffectSendHiredNotification}, ApplicationEffects(ApplicationContract, ApplicationEmployed))
	assert.Empty(t, ApplicationEffects(ApplicationCreated, ApplicationInterview))
	assert.Empty(t, ApplicationEffects(ApplicationEmployed, ApplicationEmployed), "self-transition emits nothing")
}

func TestEmailChangeEffects(t *testing.T) {
	assert.Equal(t, []Effect{EffectReissueCredentials}, EmailChangeEffects(ApplicationContract))
	assert.Equal(t, []Effect{EffectReissueCredentials}, EmailChangeEffects(ApplicationEmployed))
	assert.Empty(t, EmailChangeEffects(ApplicationApplied))
}

func TestParseStates(t *testing.T) {
	if st, ok := ParseContractState("ACCEPTED"); assert.True(t, ok) {
		assert.Equal(t, ContractAccepted, st)
	}
	_, ok := ParseContractState("REOPENED")
	assert.False(t, ok)

	if st, ok := ParseApplicationState("EMPLOYED"); assert.True(t, ok) {
		assert.Equal(t, ApplicationEmployed, st)
	}
	_, ok = ParseApplicationState("FIRED")
	assert.False(t, ok)

	_, ok = ParseLeaveState("PENDING")
	assert.True(t, ok)
	_, ok = ParseLessonState("HELD")
	assert.True(t, ok)
}
