package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/loterodev/swapmarket-backend/internal/fulfillment"
	"github.com/loterodev/swapmarket-backend/pkg/db/models"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
	"github.com/loterodev/swapmarket-backend/pkg/metrics"
)

const fallbackTitle = "your item"

// Publisher sends one message to a topic and waits for the server ack.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

type topicPublisher struct {
	pub *gcppubsub.Publisher
}

// NewTopicPublisher wraps a Pub/Sub publisher behind the Publisher interface.
func NewTopicPublisher(pub *gcppubsub.Publisher) Publisher {
	return topicPublisher{pub: pub}
}

func (p topicPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	result := p.pub.Publish(ctx, &gcppubsub.Message{Data: data, Attributes: attributes})
	_, err := result.Get(ctx)
	return err
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type productCatalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// pushMessage is the payload delivered to the push topic.
type pushMessage struct {
	UserID  uuid.UUID              `json:"user_id"`
	Title   string                 `json:"title"`
	Body    string                 `json:"body"`
	SaleID  uuid.UUID              `json:"sale_id"`
	OrderID uuid.UUID              `json:"order_id"`
	Type    enums.NotificationType `json:"type"`
}

// emailMessage is the payload delivered to the email topic. The template
// worker owns rendering; this carries the snapshot data it needs.
type emailMessage struct {
	Template    string         `json:"template"`
	RecipientID uuid.UUID      `json:"recipient_id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Data        map[string]any `json:"data"`
}

// Dispatcher fans committed transitions out to push, email and in-app
// channels. It implements the engine's notifier contract: nothing here ever
// fails a transition, failures are logged and dropped.
type Dispatcher struct {
	repo    Repository
	users   userDirectory
	catalog productCatalog
	push    Publisher
	email   Publisher
	logg    *logger.Logger
	metrics *metrics.FulfillmentMetrics
}

// NewDispatcher wires the notification fan-out.
func NewDispatcher(repo Repository, users userDirectory, catalog productCatalog, push, email Publisher, logg *logger.Logger, m *metrics.FulfillmentMetrics) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if push == nil {
		return nil, fmt.Errorf("push publisher required")
	}
	if email == nil {
		return nil, fmt.Errorf("email publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		repo:    repo,
		users:   users,
		catalog: catalog,
		push:    push,
		email:   email,
		logg:    logg,
		metrics: m,
	}, nil
}

type recipient struct {
	role   enums.UserRole
	userID uuid.UUID
}

// Dispatch sends the per-role notifications for one committed transition.
func (d *Dispatcher) Dispatch(ctx context.Context, notice fulfillment.TransitionNotice) {
	sale := notice.Sale
	if sale == nil {
		return
	}

	title, imageURL := d.saleTitle(ctx, sale)

	var errs error
	for _, target := range d.recipients(notice) {
		key := roleStatusKey(target.role, notice.Status)
		tpl, ok := lookupTemplate(key)
		if !ok {
			d.logg.Warn(d.logg.WithField(ctx, "notification_key", key), "no notification template for key")
			continue
		}

		if err := d.sendPush(ctx, target, tpl, title, sale); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("push %s: %w", key, err))
		} else {
			d.metrics.IncNotification(string(target.role), "push")
		}

		if err := d.persist(ctx, target, tpl, title, imageURL, notice.Status); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("persist %s: %w", key, err))
		} else {
			d.metrics.IncNotification(string(target.role), "in_app")
		}
	}

	if notice.Action == enums.FulfillmentActionShipped || notice.Action == enums.FulfillmentActionDelivered {
		errs = multierr.Append(errs, d.sendEmails(ctx, notice, title))
	}

	if errs != nil {
		d.logg.Error(ctx, "notification dispatch incomplete", errs)
	}
}

func (d *Dispatcher) recipients(notice fulfillment.TransitionNotice) []recipient {
	sale := notice.Sale
	targets := []recipient{{role: enums.UserRoleBuyer, userID: sale.BuyerID}}

	if notice.Status == enums.SaleStatusCompleted {
		targets = append(targets, recipient{role: enums.UserRoleSeller, userID: sale.SellerID})
	}

	if notice.Status == enums.SaleStatusPendingSwapSpotArrival || notice.Status == enums.SaleStatusPendingSwapSpotPickup {
		switch {
		case notice.SwapSpot != nil:
			targets = append(targets, recipient{role: enums.UserRoleSwapSpot, userID: notice.SwapSpot.SwapSpotID})
		case sale.SwapSpotID != nil:
			targets = append(targets, recipient{role: enums.UserRoleSwapSpot, userID: *sale.SwapSpotID})
		}
	}
	return targets
}

func (d *Dispatcher) sendPush(ctx context.Context, target recipient, tpl template, title string, sale *models.Sale) error {
	payload, err := json.Marshal(pushMessage{
		UserID:  target.userID,
		Title:   tpl.Title,
		Body:    fmt.Sprintf(tpl.Body, title),
		SaleID:  sale.ID,
		OrderID: sale.OrderID,
		Type:    tpl.Type,
	})
	if err != nil {
		return err
	}
	return d.push.Publish(ctx, payload, map[string]string{
		"user_id": target.userID.String(),
		"type":    string(tpl.Type),
	})
}

func (d *Dispatcher) persist(ctx context.Context, target recipient, tpl template, title string, imageURL *string, status enums.SaleStatus) error {
	record := &models.Notification{
		UserID:   target.userID,
		Type:     tpl.Type,
		Title:    tpl.Title,
		Message:  fmt.Sprintf(tpl.Body, title),
		ImageURL: imageURL,
	}
	if status == enums.SaleStatusCompleted {
		now := time.Now().UTC()
		record.DeliveredAt = &now
	}
	return d.repo.Create(ctx, record)
}

func (d *Dispatcher) sendEmails(ctx context.Context, notice fulfillment.TransitionNotice, title string) error {
	sale := notice.Sale

	tmpl := "sale_shipped"
	if notice.Action == enums.FulfillmentActionDelivered {
		tmpl = "sale_delivered"
	}

	data := map[string]any{
		"title":           title,
		"sale_id":         sale.ID.String(),
		"order_id":        sale.OrderID.String(),
		"products":        productBreakdown(sale),
		"seller_earnings": sellerEarnings(sale).StringFixed(2),
	}
	if sale.ShippingNumber != nil {
		data["tracking_number"] = *sale.ShippingNumber
	}

	var errs error
	for _, target := range []recipient{
		{role: enums.UserRoleBuyer, userID: sale.BuyerID},
		{role: enums.UserRoleSeller, userID: sale.SellerID},
	} {
		user, err := d.users.FindByID(ctx, target.userID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("email lookup %s: %w", target.role, err))
			continue
		}
		payload, err := json.Marshal(emailMessage{
			Template:    tmpl,
			RecipientID: user.ID,
			Email:       user.Email,
			Name:        user.DisplayName,
			Data:        data,
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := d.email.Publish(ctx, payload, map[string]string{"template": tmpl}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("email %s: %w", target.role, err))
			continue
		}
		d.metrics.IncNotification(string(target.role), "email")
	}
	return errs
}

// saleTitle derives the bundle-aware display title plus an image snapshot.
func (d *Dispatcher) saleTitle(ctx context.Context, sale *models.Sale) (string, *string) {
	if len(sale.Bundle) > 0 {
		first := sale.Bundle[0]
		if len(sale.Bundle) == 1 {
			return first.Title, first.ImageURL
		}
		return fmt.Sprintf("%s + %d more", first.Title, len(sale.Bundle)-1), first.ImageURL
	}

	if sale.ProductID != nil {
		product, err := d.catalog.FindByID(ctx, *sale.ProductID)
		if err != nil {
			d.logg.Warn(d.logg.WithField(ctx, "product_id", sale.ProductID.String()), "product lookup failed for notification title")
			return fallbackTitle, nil
		}
		return product.Title, product.ImageURL
	}
	return fallbackTitle, nil
}

// productBreakdown snapshots per-product pricing for email rendering.
func productBreakdown(sale *models.Sale) []map[string]string {
	items := make([]map[string]string, 0, len(sale.Bundle))
	for _, item := range sale.Bundle {
		items = append(items, map[string]string{
			"title": item.Title,
			"price": item.Price.StringFixed(2),
		})
	}
	return items
}

// sellerEarnings is the email-facing figure: listed prices less commission,
// less the shipping rate when shipping was included in the price.
func sellerEarnings(sale *models.Sale) decimal.Decimal {
	base := sale.Total
	if len(sale.Bundle) > 0 {
		base = decimal.Zero
		for _, item := range sale.Bundle {
			base = base.Add(item.Price)
		}
	}
	earnings := base.Sub(sale.Commission)
	if sale.ShippingIncluded {
		earnings = earnings.Sub(sale.ShippingRate)
	}
	return earnings
}
