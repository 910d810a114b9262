package fanout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"gigflow_backend/internal/email"
	"gigflow_backend/internal/events"
	"gigflow_backend/internal/models"
)

func outboxEvent(t *testing.T, topic string, payload any) *models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &models.OutboxEvent{
		ID:          "evt-1",
		Topic:       topic,
		Payload:     datatypes.JSON(raw),
		MaxAttempts: 5,
	}
}

var (
	ownerSnap  = events.UserSnapshot{ID: "owner", Email: "owner@test.com", Username: "owner", FullName: "Olga Owner"}
	aliceSnap  = events.UserSnapshot{ID: "alice", Email: "alice@test.com", Username: "alice"}
	bobSnap    = events.UserSnapshot{ID: "bob", Email: "bob@test.com", Username: "bob"}
	noMailSnap = events.UserSnapshot{ID: "ghost"}
	gigSnap    = events.GigSnapshot{ID: "gig", Title: "Logo design", Budget: 300}
)

func TestBuildPlan_Created(t *testing.T) {
	plan, err := BuildPlan(outboxEvent(t, events.TopicBidCreated, events.BidPayload{
		Bid:        events.BidSnapshot{ID: "bid", Price: 120, Message: "hello"},
		Freelancer: aliceSnap,
		Gig:        gigSnap,
		GigOwner:   ownerSnap,
	}))
	require.NoError(t, err)

	require.Len(t, plan.Notifications, 1)
	n := plan.Notifications[0]
	assert.Equal(t, "owner", n.UserID)
	assert.Equal(t, models.NotificationTypeNewBid, n.Type)
	assert.Equal(t, "New Bid Received", n.Title)
	assert.Equal(t, `alice placed a bid on "Logo design"`, n.Message)
	assert.Equal(t, "evt-1", n.EventID)

	require.Len(t, plan.Pushes, 1)
	assert.Equal(t, events.RealtimeNewBid, plan.Pushes[0].Event)

	require.Len(t, plan.Emails, 1)
	assert.Equal(t, email.TemplateBidCreated, plan.Emails[0].Template)
	assert.Equal(t, "owner@test.com", plan.Emails[0].ToEmail)

	var data map[string]any
	require.NoError(t, json.Unmarshal(plan.Emails[0].TemplateData, &data))
	assert.Equal(t, "Olga Owner", data["RecipientName"])
}

func TestBuildPlan_CreatedWithoutUsername(t *testing.T) {
	plan, err := BuildPlan(outboxEvent(t, events.TopicBidCreated, events.BidPayload{
		Freelancer: noMailSnap,
		Gig:        gigSnap,
		GigOwner:   ownerSnap,
	}))
	require.NoError(t, err)
	assert.Equal(t, `A freelancer placed a bid on "Logo design"`, plan.Notifications[0].Message)
}

func TestBuildPlan_Hired(t *testing.T) {
	plan, err := BuildPlan(outboxEvent(t, events.TopicBidHired, events.HirePayload{
		Bid:               events.BidSnapshot{ID: "bid", Price: 120},
		Freelancer:        aliceSnap,
		Gig:               gigSnap,
		Client:            ownerSnap,
		RejectedBidsCount: 2,
		RejectedBidders: []events.RejectedBidder{
			{BidID: "b2", Price: 90, Freelancer: bobSnap},
			{BidID: "b3", Price: 80, Freelancer: noMailSnap},
		},
	}))
	require.NoError(t, err)

	// нанятый + два отклоненных
	require.Len(t, plan.Notifications, 3)
	assert.Equal(t, models.NotificationTypeBidHired, plan.Notifications[0].Type)
	assert.Equal(t, "Bid Accepted!", plan.Notifications[0].Title)
	assert.Equal(t, `You have been hired for "Logo design"!`, plan.Notifications[0].Message)
	assert.Equal(t, models.NotificationTypeBidRejected, plan.Notifications[1].Type)
	assert.Equal(t, `Your bid for "Logo design" was not selected. Thanks for applying!`, plan.Notifications[1].Message)
	assert.Equal(t, "ghost", plan.Notifications[2].UserID)

	assert.Len(t, plan.Pushes, 3)

	// у ghost нет email: писем три, а не четыре
	templates := make([]string, 0, len(plan.Emails))
	for _, e := range plan.Emails {
		templates = append(templates, e.Template)
	}
	assert.ElementsMatch(t, []string{
		email.TemplateBidHired,
		email.TemplateHireConfirmation,
		email.TemplateBidRejected,
	}, templates)
}

func TestBuildPlan_UpdatedAndDeleted(t *testing.T) {
	payload := events.BidPayload{
		Bid:        events.BidSnapshot{ID: "bid", Price: 50},
		Freelancer: aliceSnap,
		Gig:        gigSnap,
		GigOwner:   ownerSnap,
	}

	plan, err := BuildPlan(outboxEvent(t, events.TopicBidUpdated, payload))
	require.NoError(t, err)
	assert.Empty(t, plan.Notifications)
	require.Len(t, plan.Pushes, 1)
	assert.Equal(t, events.RealtimeBidUpdated, plan.Pushes[0].Event)
	assert.Equal(t, "owner", plan.Pushes[0].UserID)
	require.Len(t, plan.Emails, 2)
	assert.Equal(t, email.TemplateBidUpdatedFreelancer, plan.Emails[0].Template)
	assert.Equal(t, email.TemplateBidUpdatedOwner, plan.Emails[1].Template)

	plan, err = BuildPlan(outboxEvent(t, events.TopicBidDeleted, payload))
	require.NoError(t, err)
	assert.Equal(t, events.RealtimeBidDeleted, plan.Pushes[0].Event)
	assert.Equal(t, `alice withdrew their bid on "Logo design"`, plan.Pushes[0].Payload.(PushPayload).Message)
	assert.Equal(t, email.TemplateBidDeletedOwner, plan.Emails[1].Template)
}

func TestBuildPlan_BadInput(t *testing.T) {
	_, err := BuildPlan(&models.OutboxEvent{Topic: "SOMETHING.ELSE", Payload: datatypes.JSON(`{}`)})
	assert.Error(t, err)

	_, err = BuildPlan(&models.OutboxEvent{Topic: events.TopicBidHired, Payload: datatypes.JSON(`{not json`)})
	assert.Error(t, err)
}
