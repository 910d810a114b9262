package fanout

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"gigflow_backend/internal/email"
	"gigflow_backend/internal/events"
	"gigflow_backend/internal/models"
)

// Plan - все, что нужно доставить по одному outbox-событию.
// Строится только из payload, без обращений к базе.
type Plan struct {
	EventID       string
	Notifications []*models.Notification
	Pushes        []Push
	Emails        []*models.EmailJob
}

// Push - realtime событие одному пользователю
type Push struct {
	UserID  string
	Event   string
	Payload any
}

// PushPayload - тело realtime события
type PushPayload struct {
	Message string         `json:"message"`
	Gig     map[string]any `json:"gig"`
	Bid     map[string]any `json:"bid"`
}

// BuildPlan раскладывает событие по каналам доставки
func BuildPlan(event *models.OutboxEvent) (*Plan, error) {
	plan := &Plan{EventID: event.ID}

	switch event.Topic {
	case events.TopicBidCreated:
		var p events.BidPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", event.Topic, err)
		}
		plan.buildCreated(&p)

	case events.TopicBidHired:
		var p events.HirePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", event.Topic, err)
		}
		plan.buildHired(&p)

	case events.TopicBidUpdated, events.TopicBidDeleted:
		var p events.BidPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", event.Topic, err)
		}
		plan.buildChanged(event.Topic, &p)

	default:
		return nil, fmt.Errorf("unknown outbox topic \"%s\"", event.Topic)
	}

	return plan, nil
}

// ============================================
// CREATED
// ============================================

func (p *Plan) buildCreated(pl *events.BidPayload) {
	owner := pl.GigOwner
	name := pl.Freelancer.Username
	if name == "" {
		name = "A freelancer"
	}
	message := fmt.Sprintf(`%s placed a bid on "%s"`, name, pl.Gig.Title)

	p.Notifications = append(p.Notifications, p.notification(owner.ID, models.NotificationTypeNewBid,
		"New Bid Received", message,
		map[string]any{
			"gig_id":          pl.Gig.ID,
			"gig_title":       pl.Gig.Title,
			"bid_id":          pl.Bid.ID,
			"price":           pl.Bid.Price,
			"freelancer_id":   pl.Freelancer.ID,
			"freelancer_name": pl.Freelancer.DisplayName(),
		}))

	p.Pushes = append(p.Pushes, Push{
		UserID: owner.ID,
		Event:  events.RealtimeNewBid,
		Payload: PushPayload{
			Message: message,
			Gig:     map[string]any{"id": pl.Gig.ID, "title": pl.Gig.Title},
			Bid:     map[string]any{"id": pl.Bid.ID, "price": pl.Bid.Price},
		},
	})

	p.addEmail(owner, email.TemplateBidCreated,
		fmt.Sprintf(`New bid on "%s"`, pl.Gig.Title),
		email.TemplateData{
			"FreelancerName": pl.Freelancer.DisplayName(),
			"GigTitle":       pl.Gig.Title,
			"Price":          pl.Bid.Price,
			"Message":        pl.Bid.Message,
		})
}

// ============================================
// HIRED
// ============================================

func (p *Plan) buildHired(pl *events.HirePayload) {
	hiredMessage := fmt.Sprintf(`You have been hired for "%s"!`, pl.Gig.Title)
	rejectedMessage := fmt.Sprintf(`Your bid for "%s" was not selected. Thanks for applying!`, pl.Gig.Title)

	p.Notifications = append(p.Notifications, p.notification(pl.Freelancer.ID, models.NotificationTypeBidHired,
		"Bid Accepted!", hiredMessage,
		map[string]any{
			"gig_id":    pl.Gig.ID,
			"gig_title": pl.Gig.Title,
			"bid_id":    pl.Bid.ID,
			"price":     pl.Bid.Price,
		}))

	p.Pushes = append(p.Pushes, Push{
		UserID: pl.Freelancer.ID,
		Event:  events.RealtimeBidHired,
		Payload: PushPayload{
			Message: hiredMessage,
			Gig:     map[string]any{"id": pl.Gig.ID, "title": pl.Gig.Title, "budget": pl.Gig.Budget},
			Bid:     map[string]any{"id": pl.Bid.ID, "price": pl.Bid.Price, "message": pl.Bid.Message},
		},
	})

	for _, r := range pl.RejectedBidders {
		if r.Freelancer.ID == "" {
			continue
		}
		p.Notifications = append(p.Notifications, p.notification(r.Freelancer.ID, models.NotificationTypeBidRejected,
			"Bid Not Selected", rejectedMessage,
			map[string]any{
				"gig_id":    pl.Gig.ID,
				"gig_title": pl.Gig.Title,
				"bid_id":    r.BidID,
				"price":     r.Price,
			}))

		p.Pushes = append(p.Pushes, Push{
			UserID: r.Freelancer.ID,
			Event:  events.RealtimeBidRejected,
			Payload: PushPayload{
				Message: rejectedMessage,
				Gig:     map[string]any{"id": pl.Gig.ID, "title": pl.Gig.Title},
				Bid:     map[string]any{"id": r.BidID, "price": r.Price},
			},
		})
	}

	p.addEmail(pl.Freelancer, email.TemplateBidHired,
		fmt.Sprintf(`You've been hired for "%s"`, pl.Gig.Title),
		email.TemplateData{
			"GigTitle":   pl.Gig.Title,
			"Price":      pl.Bid.Price,
			"ClientName": pl.Client.DisplayName(),
		})

	p.addEmail(pl.Client, email.TemplateHireConfirmation,
		fmt.Sprintf(`Hire confirmed for "%s"`, pl.Gig.Title),
		email.TemplateData{
			"FreelancerName": pl.Freelancer.DisplayName(),
			"GigTitle":       pl.Gig.Title,
			"Price":          pl.Bid.Price,
			"RejectedCount":  pl.RejectedBidsCount,
		})

	for _, r := range pl.RejectedBidders {
		p.addEmail(r.Freelancer, email.TemplateBidRejected,
			fmt.Sprintf(`Update on your bid for "%s"`, pl.Gig.Title),
			email.TemplateData{
				"GigTitle": pl.Gig.Title,
				"Price":    r.Price,
			})
	}
}

// ============================================
// UPDATED / DELETED
// ============================================

func (p *Plan) buildChanged(topic string, pl *events.BidPayload) {
	event, verb := events.RealtimeBidUpdated, "updated"
	freelancerTpl, ownerTpl := email.TemplateBidUpdatedFreelancer, email.TemplateBidUpdatedOwner
	if topic == events.TopicBidDeleted {
		event, verb = events.RealtimeBidDeleted, "withdrew"
		freelancerTpl, ownerTpl = email.TemplateBidDeletedFreelancer, email.TemplateBidDeletedOwner
	}

	var message string
	if verb == "updated" {
		message = fmt.Sprintf(`%s updated their bid on "%s"`, pl.Freelancer.DisplayName(), pl.Gig.Title)
	} else {
		message = fmt.Sprintf(`%s withdrew their bid on "%s"`, pl.Freelancer.DisplayName(), pl.Gig.Title)
	}

	p.Pushes = append(p.Pushes, Push{
		UserID: pl.GigOwner.ID,
		Event:  event,
		Payload: PushPayload{
			Message: message,
			Gig:     map[string]any{"id": pl.Gig.ID, "title": pl.Gig.Title},
			Bid:     map[string]any{"id": pl.Bid.ID, "price": pl.Bid.Price, "message": pl.Bid.Message},
		},
	})

	data := email.TemplateData{
		"FreelancerName": pl.Freelancer.DisplayName(),
		"GigTitle":       pl.Gig.Title,
		"Price":          pl.Bid.Price,
		"Message":        pl.Bid.Message,
	}
	if verb == "updated" {
		p.addEmail(pl.Freelancer, freelancerTpl, fmt.Sprintf(`Your bid on "%s" was updated`, pl.Gig.Title), data)
		p.addEmail(pl.GigOwner, ownerTpl, fmt.Sprintf(`A bid on "%s" was updated`, pl.Gig.Title), data)
	} else {
		p.addEmail(pl.Freelancer, freelancerTpl, fmt.Sprintf(`Your bid on "%s" was withdrawn`, pl.Gig.Title), data)
		p.addEmail(pl.GigOwner, ownerTpl, fmt.Sprintf(`A bid on "%s" was withdrawn`, pl.Gig.Title), data)
	}
}

// ============================================
// helpers
// ============================================

func (p *Plan) notification(userID string, typ models.NotificationType, title, message string, data map[string]any) *models.Notification {
	raw, _ := json.Marshal(data)
	return &models.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data:    datatypes.JSON(raw),
		EventID: p.EventID,
	}
}

// addEmail пропускает получателей без адреса
func (p *Plan) addEmail(to events.UserSnapshot, template, subject string, data email.TemplateData) {
	if to.Email == "" {
		return
	}
	data["RecipientName"] = to.DisplayName()

	raw, _ := json.Marshal(data)
	p.Emails = append(p.Emails, &models.EmailJob{
		EventID:      p.EventID,
		Template:     template,
		ToEmail:      to.Email,
		ToName:       to.DisplayName(),
		Subject:      subject,
		TemplateData: datatypes.JSON(raw),
	})
}
