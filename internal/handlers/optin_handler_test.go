package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/introweave/introweave/internal/models"
)

// startConsentedIntro submits a same-tenant direct introduction and mints a
// consent token the test can present.
func startConsentedIntro(t *testing.T, stack *handlerStack) string {
	t.Helper()

	tenant := stack.createTenant(t)
	requester := stack.createMember(t, tenant.ID)
	target := stack.createMember(t, tenant.ID)

	result, err := stack.intros.Submit(context.Background(), requester.ID, target.ID, "")
	require.NoError(t, err)
	require.Equal(t, models.RouteDirect, result.Status)

	// Submit already pinged the target; only the target's mailbox holds
	// that token. Void it and mint one the test can present.
	require.NoError(t, stack.db.Where("introduction_id = ?", result.IntroductionID).
		Delete(&models.OptInRequest{}).Error)
	_, token, err := stack.optIn.StartConsent(context.Background(), result.IntroductionID)
	require.NoError(t, err)
	return token
}

func TestOptInHandlerRespondAccept(t *testing.T) {
	stack := newHandlerStack(t)
	handler := NewOptInHandler(stack.optIn)
	token := startConsentedIntro(t, stack)

	c, recorder := testRequest(t, gin.H{"token": token, "decision": "accept"})
	handler.Respond(c)

	require.Equal(t, http.StatusOK, recorder.Code)
	data := decodeResponse(t, recorder).Data.(map[string]any)
	require.Equal(t, models.IntroStatusScheduled, data["status"])
}

func TestOptInHandlerRespondReplayConflicts(t *testing.T) {
	stack := newHandlerStack(t)
	handler := NewOptInHandler(stack.optIn)
	token := startConsentedIntro(t, stack)

	c, recorder := testRequest(t, gin.H{"token": token, "decision": "decline"})
	handler.Respond(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	c2, recorder2 := testRequest(t, gin.H{"token": token, "decision": "accept"})
	handler.Respond(c2)
	require.Equal(t, http.StatusConflict, recorder2.Code)
}

func TestOptInHandlerRespondUnknownToken(t *testing.T) {
	stack := newHandlerStack(t)
	handler := NewOptInHandler(stack.optIn)

	c, recorder := testRequest(t, gin.H{"token": "not-a-token", "decision": "accept"})
	handler.Respond(c)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestOptInHandlerRespondValidatesDecision(t *testing.T) {
	stack := newHandlerStack(t)
	handler := NewOptInHandler(stack.optIn)

	c, recorder := testRequest(t, gin.H{"token": "whatever", "decision": "later"})
	handler.Respond(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
